package main

import (
	"fmt"
	"os"
)

// command is one top-level subcommand: its flag parsing lives in its
// own handler since each subcommand takes a disjoint set of flags
// (grounded on cmd/pdfcpu's per-command prepare*Command split, trimmed
// to a flat map since this engine exposes two commands, submit and
// serve, not seventy; the worker re-exec is intercepted in main before
// dispatch).
type command struct {
	run        func(args []string) int
	usageShort string
}

type registry map[string]*command

func newRegistry() registry {
	return registry{}
}

func (r registry) register(name, usageShort string, run func(args []string) int) {
	r[name] = &command{run: run, usageShort: usageShort}
}

func (r registry) dispatch(name string, args []string) int {
	cmd, ok := r[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "pdfsanitize: unknown command %q\n", name)
		r.printUsage()
		return 1
	}
	return cmd.run(args)
}

func (r registry) printUsage() {
	fmt.Fprintln(os.Stderr, "usage: pdfsanitize <command> [flags]")
	fmt.Fprintln(os.Stderr, "\ncommands:")
	for _, name := range []string{"submit", "serve"} {
		if cmd, ok := r[name]; ok {
			fmt.Fprintf(os.Stderr, "  %-8s %s\n", name, cmd.usageShort)
		}
	}
}
