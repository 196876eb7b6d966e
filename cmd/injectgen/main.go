// Command injectgen plans dependency injection containers from manifests.
//
//	injectgen plan  -manifest app.yaml [-container App] [-json]
//	injectgen serve [-config injectgen.yaml]
//	injectgen watch [-config injectgen.yaml]
package main

import (
	"context"
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

const usage = `usage: injectgen <command> [flags]

commands:
  plan   plan the containers of a manifest and print them
  serve  run the planning API, and the watcher when watch.dir is set
  watch  re-plan a directory of manifests on a schedule
`

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	switch args[0] {
	case "plan":
		return planCommand(ctx, args[1:], stdout, stderr)
	case "serve":
		return serveCommand(ctx, args[1:], stderr, true)
	case "watch":
		return serveCommand(ctx, args[1:], stderr, false)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	}
	fmt.Fprintf(stderr, "injectgen: unknown command %q\n\n%s", args[0], usage)
	return 2
}
