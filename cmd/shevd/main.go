// Command shevd is the event-driven shell command executor: a daemon
// (`shevd serve`) plus a thin HTTP client CLI for everything else.
package main

import (
	"fmt"
	"os"
)

var version = "0.1.0-dev"

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(args []string) int {
	if len(args) < 1 {
		printUsage()
		return 1
	}

	noun := args[0]
	rest := args[1:]

	switch noun {
	case "serve":
		return runServe(rest)
	case "handler":
		return runHandlerNoun(rest)
	case "timer":
		return runTimerNoun(rest)
	case "schedule":
		return runScheduleNoun(rest)
	case "job":
		return runJobNoun(rest)
	case "event":
		return runEventNoun(rest)
	case "config":
		return runConfigNoun(rest)
	case "reload":
		return runReload(rest)
	case "watch":
		return runWatch(rest)
	case "doctor":
		return runDoctor(rest)
	case "version":
		fmt.Printf("shevd version %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", noun)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Print(`shevd - event-driven shell command executor

Usage:
  shevd <noun> <action> [flags]

Nouns:
  serve     Run the daemon in the foreground
  handler   Bind a shell command to an event type
  timer     Bind a periodic event producer to an event type
  schedule  Bind an absolute-time event producer to an event type
  job       Inspect and cancel executions
  event     Enqueue an event
  config    Read and write Store config
  reload    Re-read handlers/timers/schedules without restarting
  watch     Stream lifecycle events from a running daemon
  doctor    Validate a bootstrap config and its on-disk state

General:
  version   Show version information
  help      Show this help message

Environment:
  SHEV_DB   SQLite path override for 'serve'
  SHEV_URL  Base URL of a running daemon for all other nouns (default http://127.0.0.1:3000)

Use 'shevd <noun> help' for resource-specific flags.
`)
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}
