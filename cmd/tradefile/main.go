// tradefile inspects broker export files from the command line: analyze
// prints the inferred column mappings and readiness verdict, normalize
// prints the typed trades the execute stage would persist. Both run
// offline; ticker validation is reported as unverified.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))

	commander.Register(subcommands.HelpCommand(), "")
	commander.Register(&analyzeCmd{}, "")
	commander.Register(&normalizeCmd{}, "")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
