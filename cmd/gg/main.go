// Package main is the entry point of gg, a command line client for the
// grep.app code search service.
//
// Usage:
//
//	gg PATTERN [flags]
//	gg 'func main' --lang Go --heading
//	gg -r 'TODO\(\w+\)' --json --limit 50
//
// Exit status is 0 on success (including no matches), 1 when the search
// service could not be queried and 2 for invalid invocations.
package main

import (
	"context"
	"grepapp/internal/client/commands"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := commands.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
