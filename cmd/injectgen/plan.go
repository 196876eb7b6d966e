package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/gocrud/injectgen/config"
	"github.com/gocrud/injectgen/planning"
)

func planCommand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		path      = fs.String("manifest", "", "manifest file to plan")
		container = fs.String("container", "", "plan only this container")
		asJSON    = fs.Bool("json", false, "print the JSON summary instead of the listing")
		level     = fs.String("log-level", "warn", "log level")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *path == "" && fs.NArg() == 1 {
		*path = fs.Arg(0)
	}
	if *path == "" {
		fmt.Fprintln(stderr, "injectgen plan: -manifest is required")
		fs.Usage()
		return 2
	}

	logger, closeLogs, err := newLogger(config.LoggingSettings{Level: *level, Format: "text"}, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "injectgen plan: %v\n", err)
		return 2
	}
	defer closeLogs()

	res, err := planning.NewService(logger, nil, nil).PlanFile(ctx, *path, *container)
	if err != nil {
		fmt.Fprintf(stderr, "injectgen plan: %v\n", err)
		if errors.Is(err, planning.ErrUnknownContainer) {
			return 2
		}
		return 1
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			fmt.Fprintf(stderr, "injectgen plan: %v\n", err)
			return 1
		}
	} else {
		writeText(stdout, res)
	}
	if res.Errors > 0 {
		return 1
	}
	return 0
}

func writeText(w io.Writer, res *planning.Result) {
	for i, c := range res.Containers {
		if i > 0 {
			fmt.Fprintln(w)
		}
		for _, d := range c.Diagnostics {
			fmt.Fprintln(w, d.String())
		}
		fmt.Fprint(w, c.Listing)
	}
}
