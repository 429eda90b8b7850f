// Package extformat provides data-format functions: locale-aware number
// formatting, CSV, JSON, base64 and hex codecs, and {{key}} templates.
//
// Locale-aware formatting uses golang.org/x/text. A locale is a BCP 47 tag
// such as "en-US" or "de"; the default is "en".
package extformat

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/sandrolain/gocel/pkg/ext/extutil"
	"github.com/sandrolain/gocel/pkg/functions"
	"github.com/sandrolain/gocel/pkg/types"
)

const (
	s    = types.KindString
	b    = types.KindBytes
	m    = types.KindMap
	list = types.KindList
	dyn  = types.KindDyn
)

// All returns all format overloads.
func All() []functions.Overload {
	return extutil.Concat(
		FormatNumber(),
		FormatPercent(),
		FormatCurrency(),
		ParseCSV(),
		FormatCSV(),
		Template(),
		JSON(),
		Base64(),
		Hex(),
	)
}

// text renders a value for embedding into text output. Strings and bytes are
// written raw; everything else uses its CEL representation.
func text(v types.Value) string {
	switch x := v.(type) {
	case types.String:
		return string(x)
	case types.Bytes:
		return string(x)
	case types.Null:
		return ""
	}
	return types.Repr(v)
}

func printer(fn string, args []types.Value, at int) (*message.Printer, error) {
	tag := language.English
	if len(args) > at {
		var err error
		tag, err = language.Parse(extutil.Str(args[at]))
		if err != nil {
			return nil, extutil.Errorf(fn, "invalid locale %q", extutil.Str(args[at]))
		}
	}
	return message.NewPrinter(tag), nil
}

func numberFormatter(name, id string, format func(float64) any) []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		v, ok := extutil.ToFloat(args[0])
		if !ok {
			return nil, types.Errorf(types.ErrNoSuchOverload, "%s: expected a number, got %s", name, types.TypeName(args[0])).WithToken(name)
		}
		p, err := printer(name, args, 1)
		if err != nil {
			return nil, err
		}
		return types.String(p.Sprintf("%v", format(v))), nil
	}
	return []functions.Overload{
		extutil.Global(name, id, fn, dyn),
		extutil.Global(name, id+"_locale", fn, dyn, s),
	}
}

// FormatNumber returns the overloads for formatNumber(x [, locale]), e.g.
// formatNumber(1234.5, 'de') == '1.234,5'.
func FormatNumber() []functions.Overload {
	return numberFormatter("formatNumber", "format_number", func(v float64) any {
		return number.Decimal(v)
	})
}

// FormatPercent returns the overloads for formatPercent(x [, locale]), where
// 0.25 renders as 25%.
func FormatPercent() []functions.Overload {
	return numberFormatter("formatPercent", "format_percent", func(v float64) any {
		return number.Percent(v)
	})
}

// FormatCurrency returns the overloads for
// formatCurrency(amount, code [, locale]) with an ISO 4217 currency code.
func FormatCurrency() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		v, ok := extutil.ToFloat(args[0])
		if !ok {
			return nil, types.Errorf(types.ErrNoSuchOverload, "formatCurrency: expected a number, got %s", types.TypeName(args[0])).WithToken("formatCurrency")
		}
		cur, err := currency.ParseISO(extutil.Str(args[1]))
		if err != nil {
			return nil, extutil.Errorf("formatCurrency", "invalid currency code %q", extutil.Str(args[1]))
		}
		p, err := printer("formatCurrency", args, 2)
		if err != nil {
			return nil, err
		}
		return types.String(p.Sprintf("%v", currency.Symbol(cur.Amount(v)))), nil
	}
	return []functions.Overload{
		extutil.Global("formatCurrency", "format_currency", fn, dyn, s),
		extutil.Global("formatCurrency", "format_currency_locale", fn, dyn, s, s),
	}
}

// ParseCSV returns the overloads for csv.parse(str [, options]). The first
// record holds the headers; each following record becomes a map of header to
// field. options may set "separator" and "comment" to single characters.
func ParseCSV() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		r := csv.NewReader(strings.NewReader(extutil.Str(args[0])))
		r.TrimLeadingSpace = true
		r.FieldsPerRecord = -1
		if len(args) == 2 {
			opts := args[1].(*types.Map)
			if sep, ok := opts.Get(types.String("separator")); ok {
				c, err := optionRune("separator", sep)
				if err != nil {
					return nil, err
				}
				r.Comma = c
			}
			if com, ok := opts.Get(types.String("comment")); ok {
				c, err := optionRune("comment", com)
				if err != nil {
					return nil, err
				}
				r.Comment = c
			}
		}

		records, err := r.ReadAll()
		if err != nil {
			return nil, extutil.Errorf("csv.parse", "%v", err).WithCause(err)
		}
		out := types.List{}
		if len(records) < 2 {
			return out, nil
		}
		headers := records[0]
		for _, row := range records[1:] {
			rec := types.NewMap(len(headers))
			for k, h := range headers {
				field := ""
				if k < len(row) {
					field = row[k]
				}
				if err := rec.Set(types.String(h), types.String(field)); err != nil {
					return nil, err
				}
			}
			out = append(out, rec)
		}
		return out, nil
	}
	return []functions.Overload{
		extutil.Global("csv.parse", "csv_parse", fn, s),
		extutil.Global("csv.parse", "csv_parse_options", fn, s, m),
	}
}

func optionRune(name string, v types.Value) (rune, error) {
	str, ok := v.(types.String)
	runes := []rune(string(str))
	if !ok || len(runes) != 1 {
		return 0, extutil.Errorf("csv.parse", "%s must be a single character", name)
	}
	return runes[0], nil
}

// FormatCSV returns the overloads for csv.format(rows [, columns]). rows is a
// list of maps; without columns the keys of the first row are used.
func FormatCSV() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		rows := args[0].(types.List)
		var columns []string
		if len(args) == 2 {
			var err error
			if columns, err = extutil.Strings("csv.format", args[1]); err != nil {
				return nil, err
			}
		} else if len(rows) > 0 {
			if first, ok := rows[0].(*types.Map); ok {
				for _, k := range first.Keys() {
					columns = append(columns, text(k))
				}
			}
		}
		if len(rows) == 0 && len(columns) == 0 {
			return types.String(""), nil
		}
		if len(columns) == 0 {
			return nil, extutil.Errorf("csv.format", "cannot determine columns")
		}

		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		_ = w.Write(columns)
		for k, item := range rows {
			rec, ok := item.(*types.Map)
			if !ok {
				return nil, extutil.Errorf("csv.format", "row %d is %s, not a map", k, types.TypeName(item))
			}
			row := make([]string, len(columns))
			for c, col := range columns {
				if v, found := rec.Get(types.String(col)); found {
					row[c] = text(v)
				}
			}
			_ = w.Write(row)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, extutil.Errorf("csv.format", "%v", err).WithCause(err)
		}
		return types.String(buf.String()), nil
	}
	return []functions.Overload{
		extutil.Global("csv.format", "csv_format", fn, list),
		extutil.Global("csv.format", "csv_format_columns", fn, list, list),
	}
}

var placeholderRe = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// Template returns the overload for str.template(bindings). {{key}}
// placeholders are replaced with the bound values; unknown keys are left as
// they are.
func Template() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		bindings := args[1].(*types.Map)
		out := placeholderRe.ReplaceAllStringFunc(extutil.Str(args[0]), func(match string) string {
			key := placeholderRe.FindStringSubmatch(match)[1]
			if v, ok := bindings.Get(types.String(key)); ok {
				return text(v)
			}
			return match
		})
		return types.String(out), nil
	}
	return []functions.Overload{extutil.Method("template", "string_template", fn, s, m)}
}

// JSON returns the overloads for json.encode(value) and json.decode(str).
// Decoded objects have their keys sorted.
func JSON() []functions.Overload {
	encode := func(_ context.Context, args ...types.Value) (types.Value, error) {
		data, err := json.Marshal(types.ToJSONCompatible(args[0]))
		if err != nil {
			return nil, extutil.Errorf("json.encode", "%v", err).WithCause(err)
		}
		return types.String(data), nil
	}
	decode := func(_ context.Context, args ...types.Value) (types.Value, error) {
		dec := json.NewDecoder(strings.NewReader(extutil.Str(args[0])))
		dec.UseNumber()
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return nil, types.Errorf(types.ErrConversion, "json.decode: %v", err).WithCause(err)
		}
		if dec.More() {
			return nil, types.Errorf(types.ErrConversion, "json.decode: trailing data after value")
		}
		return types.NativeToValue(raw)
	}
	return []functions.Overload{
		extutil.Global("json.encode", "json_encode", encode, dyn),
		extutil.Global("json.decode", "json_decode", decode, s),
	}
}

func codec(name string, encode func([]byte) string, decode func(string) ([]byte, error)) []functions.Overload {
	enc := func(_ context.Context, args ...types.Value) (types.Value, error) {
		raw, _ := extutil.StrOrBytes(args[0])
		return types.String(encode(raw)), nil
	}
	dec := func(_ context.Context, args ...types.Value) (types.Value, error) {
		raw, err := decode(extutil.Str(args[0]))
		if err != nil {
			return nil, types.Errorf(types.ErrConversion, "%s.decode: %v", name, err).WithCause(err)
		}
		return types.Bytes(raw), nil
	}
	return []functions.Overload{
		extutil.Global(name+".encode", name+"_encode_string", enc, s),
		extutil.Global(name+".encode", name+"_encode_bytes", enc, b),
		extutil.Global(name+".decode", name+"_decode", dec, s),
	}
}

// Base64 returns the overloads for base64.encode(string|bytes) and
// base64.decode(string), using standard padded encoding.
func Base64() []functions.Overload {
	return codec("base64", base64.StdEncoding.EncodeToString, base64.StdEncoding.DecodeString)
}

// Hex returns the overloads for hex.encode(string|bytes) and hex.decode(string).
func Hex() []functions.Overload {
	return codec("hex", hex.EncodeToString, hex.DecodeString)
}
