package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sandrolain/gocel/internal/config"
	"github.com/sandrolain/gocel/internal/library"
)

const libUsage = `Usage:
  %[1]s lib add [-d description] [-force] <name> <expression>
  %[1]s lib get <name>
  %[1]s lib list
  %[1]s lib rm <name>
  %[1]s lib run [-c json] [-f file] [-o format] <name>

Every command accepts -lib <path> to select the library database.
`

func runLib(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintf(stderr, libUsage, appName)
		return exitUsage
	}
	cmd := args[0]

	fs := flag.NewFlagSet(appName+" lib "+cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	libPath := fs.String("lib", "", "expression library database `path`")
	desc := fs.String("d", "", "description of the expression")
	force := fs.Bool("force", false, "replace an expression that already exists")
	ctxJSON := fs.String("c", "", "context variables as a JSON object")
	ctxFile := fs.String("f", "", "read context variables from a JSON `file`")
	output := fs.String("o", "", "output `format`: auto, json or pretty")
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", appName, err)
		return exitUsage
	}
	if *libPath != "" {
		cfg.LibraryDB = *libPath
	}
	if *output != "" {
		if cfg.Output, err = config.ParseOutput(*output); err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", appName, err)
			return exitUsage
		}
	}

	want := map[string]int{"add": 2, "get": 1, "list": 0, "rm": 1, "run": 1}
	n, known := want[cmd]
	if !known {
		fmt.Fprintf(stderr, "%s lib: unknown command %q\n", appName, cmd)
		fmt.Fprintf(stderr, libUsage, appName)
		return exitUsage
	}
	rest := fs.Args()
	if len(rest) < n || (n < 2 && len(rest) != n) {
		fmt.Fprintf(stderr, libUsage, appName)
		return exitUsage
	}

	lib, err := library.Open(cfg.LibraryDB)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	defer lib.Close()

	switch cmd {
	case "add":
		entry := library.Entry{Name: rest[0], Description: *desc, Expression: strings.Join(rest[1:], " ")}
		err = lib.Add(ctx, entry)
		if *force && errors.Is(err, library.ErrExists) {
			err = lib.Update(ctx, entry.Name, entry)
		}
		if err == nil {
			fmt.Fprintf(stdout, "Saved %s\n", entry.Name)
		}
	case "get":
		var e library.Entry
		if e, err = lib.Get(ctx, rest[0]); err == nil {
			printEntry(stdout, e)
		}
	case "list":
		var entries []library.Entry
		if entries, err = lib.List(ctx); err == nil {
			printEntries(stdout, entries)
		}
	case "rm":
		if err = lib.Remove(ctx, rest[0]); err == nil {
			fmt.Fprintf(stdout, "Removed %s\n", rest[0])
		}
	case "run":
		var e library.Entry
		if e, err = lib.Get(ctx, rest[0]); err != nil {
			break
		}
		a := newApp(cfg, false, stdin, stdout, stderr)
		if err := a.loadVars(nil, *ctxFile, *ctxJSON); err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", appName, err)
			return exitUsage
		}
		return a.evalOne(ctx, e.Expression)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	return exitOK
}

func printEntry(w io.Writer, e library.Entry) {
	fmt.Fprintf(w, "Name:        %s\n", e.Name)
	fmt.Fprintf(w, "Expression:  %s\n", e.Expression)
	if e.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", e.Description)
	}
	fmt.Fprintf(w, "Created:     %s\n", e.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Updated:     %s\n", e.UpdatedAt.Format(time.RFC3339))
}

func printEntries(w io.Writer, entries []library.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No saved expressions")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Name\tExpression\tDescription")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, truncate(e.Expression, 50), e.Description)
	}
	tw.Flush()
}
