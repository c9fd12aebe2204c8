package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/shevd/shevd/internal/model"
)

func runHandlerNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: shevd handler list|create|update|delete [flags]")
		return helpExit(args)
	}
	action, rest := args[0], args[1:]

	switch action {
	case "list":
		var out []model.Handler
		if err := apiRequest("GET", "/handlers", nil, &out); err != nil {
			return fail(err)
		}
		printJSON(out)
		return 0
	case "create", "update":
		fs := flag.NewFlagSet(action, flag.ContinueOnError)
		eventType := fs.String("event-type", "", "event type to bind")
		shell := fs.String("shell", "bash", "shell: bash|sh|pwsh")
		command := fs.String("command", "", "command line to run")
		timeoutSecs := fs.Uint("timeout-secs", 0, "kill the subprocess after N seconds (0 = no timeout)")
		if err := fs.Parse(rest); err != nil {
			return 1
		}
		if *eventType == "" || *command == "" {
			fmt.Fprintln(os.Stderr, "Usage: shevd handler "+action+" --event-type T --command CMD [--shell bash|sh|pwsh] [--timeout-secs N]")
			return 1
		}
		h := model.Handler{EventType: *eventType, Shell: model.Shell(*shell), Command: *command}
		if *timeoutSecs > 0 {
			h.TimeoutSecs = timeoutSecs
		}
		method, path := "POST", "/handlers"
		if action == "update" {
			method, path = "PUT", "/handlers/"+*eventType
		}
		var out model.Handler
		if err := apiRequest(method, path, h, &out); err != nil {
			return fail(err)
		}
		printJSON(out)
		return 0
	case "delete":
		if len(rest) != 1 {
			fmt.Fprintln(os.Stderr, "Usage: shevd handler delete <event_type>")
			return 1
		}
		if err := apiRequest("DELETE", "/handlers/"+rest[0], nil, nil); err != nil {
			return fail(err)
		}
		fmt.Println("deleted")
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown handler action: %s\n", action)
		return 1
	}
}

func runTimerNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: shevd timer list|create|update|delete [flags]")
		return helpExit(args)
	}
	action, rest := args[0], args[1:]

	switch action {
	case "list":
		var out []model.Timer
		if err := apiRequest("GET", "/timers", nil, &out); err != nil {
			return fail(err)
		}
		printJSON(out)
		return 0
	case "create", "update":
		fs := flag.NewFlagSet(action, flag.ContinueOnError)
		eventType := fs.String("event-type", "", "event type to bind")
		context := fs.String("context", "", "context string passed to the handler")
		interval := fs.Uint("interval-secs", 0, "fire every N seconds")
		if err := fs.Parse(rest); err != nil {
			return 1
		}
		if *eventType == "" || *interval == 0 {
			fmt.Fprintln(os.Stderr, "Usage: shevd timer "+action+" --event-type T --interval-secs N [--context C]")
			return 1
		}
		t := model.Timer{EventType: *eventType, Context: *context, IntervalSecs: *interval}
		method, path := "POST", "/timers"
		if action == "update" {
			method, path = "PUT", "/timers/"+*eventType
		}
		var out model.Timer
		if err := apiRequest(method, path, t, &out); err != nil {
			return fail(err)
		}
		printJSON(out)
		return 0
	case "delete":
		if len(rest) != 1 {
			fmt.Fprintln(os.Stderr, "Usage: shevd timer delete <event_type>")
			return 1
		}
		if err := apiRequest("DELETE", "/timers/"+rest[0], nil, nil); err != nil {
			return fail(err)
		}
		fmt.Println("deleted")
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown timer action: %s\n", action)
		return 1
	}
}

func runScheduleNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: shevd schedule list|create|update|delete [flags]")
		return helpExit(args)
	}
	action, rest := args[0], args[1:]

	switch action {
	case "list":
		var out []model.Schedule
		if err := apiRequest("GET", "/schedules", nil, &out); err != nil {
			return fail(err)
		}
		printJSON(out)
		return 0
	case "create", "update":
		fs := flag.NewFlagSet(action, flag.ContinueOnError)
		eventType := fs.String("event-type", "", "event type to bind")
		context := fs.String("context", "", "context string passed to the handler")
		at := fs.String("at", "", "RFC3339 scheduled time")
		periodic := fs.Bool("periodic", false, "re-fire every 24h after the first run")
		if err := fs.Parse(rest); err != nil {
			return 1
		}
		if *eventType == "" || *at == "" {
			fmt.Fprintln(os.Stderr, "Usage: shevd schedule "+action+" --event-type T --at RFC3339 [--context C] [--periodic]")
			return 1
		}
		scheduledTime, err := parseTime(*at)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid --at: %v\n", err)
			return 1
		}
		sc := model.Schedule{EventType: *eventType, Context: *context, ScheduledTime: scheduledTime, Periodic: *periodic}
		method, path := "POST", "/schedules"
		if action == "update" {
			method, path = "PUT", "/schedules/"+*eventType
		}
		var out model.Schedule
		if err := apiRequest(method, path, sc, &out); err != nil {
			return fail(err)
		}
		printJSON(out)
		return 0
	case "delete":
		if len(rest) != 1 {
			fmt.Fprintln(os.Stderr, "Usage: shevd schedule delete <event_type>")
			return 1
		}
		if err := apiRequest("DELETE", "/schedules/"+rest[0], nil, nil); err != nil {
			return fail(err)
		}
		fmt.Println("deleted")
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown schedule action: %s\n", action)
		return 1
	}
}

func helpExit(args []string) int {
	if len(args) > 0 && isHelpToken(args[0]) {
		return 0
	}
	return 1
}

func fail(err error) int {
	fmt.Fprintln(os.Stderr, "error:", err)
	return 1
}
