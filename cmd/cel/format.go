package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/sandrolain/gocel/internal/config"
	"github.com/sandrolain/gocel/pkg/types"
)

// autoPrettyWidth is the rendered length above which auto output switches
// lists and maps to the table layout.
const autoPrettyWidth = 100

func red(s string) string   { return "\x1b[31m" + s + "\x1b[0m" }
func green(s string) string { return "\x1b[32m" + s + "\x1b[0m" }

// display renders strings raw and everything else in CEL syntax.
func display(v types.Value) string {
	if s, ok := v.(types.String); ok {
		return string(s)
	}
	return types.Repr(v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// formatValue renders v in one of the output formats.
func formatValue(v types.Value, format string) (string, error) {
	switch format {
	case config.OutputJSON:
		data, err := json.MarshalIndent(types.ToJSONCompatible(v), "", "  ")
		if err != nil {
			return "", fmt.Errorf("cannot render %s as JSON: %w", types.TypeName(v), err)
		}
		return string(data), nil
	case config.OutputPretty:
		return pretty(v), nil
	}
	text := display(v)
	switch v.(type) {
	case types.List, *types.Map:
		if len(text) > autoPrettyWidth {
			return pretty(v), nil
		}
	}
	return text, nil
}

// pretty lays lists and maps out as two-column tables and annotates
// scalars with their type.
func pretty(v types.Value) string {
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	switch x := v.(type) {
	case types.List:
		fmt.Fprintln(tw, "Index\tValue")
		for i, item := range x {
			fmt.Fprintf(tw, "%s\t%s\n", strconv.Itoa(i), display(item))
		}
	case *types.Map:
		fmt.Fprintln(tw, "Key\tValue")
		x.Range(func(k, val types.Value) bool {
			fmt.Fprintf(tw, "%s\t%s\n", display(k), display(val))
			return true
		})
	default:
		return fmt.Sprintf("%s (%s)", display(v), types.TypeName(v))
	}
	tw.Flush()
	return strings.TrimRight(sb.String(), "\n")
}
