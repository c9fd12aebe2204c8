package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/shevd/shevd/internal/model"
)

func parseTime(v string) (time.Time, error) {
	return time.Parse(time.RFC3339, v)
}

func runJobNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: shevd job list|get|cancel [flags]")
		return helpExit(args)
	}
	action, rest := args[0], args[1:]

	switch action {
	case "list":
		fs := flag.NewFlagSet("list", flag.ContinueOnError)
		status := fs.String("status", "", "filter by status: pending|running|completed|failed|cancelled")
		limit := fs.Int("limit", 0, "max rows (0 = no limit)")
		if err := fs.Parse(rest); err != nil {
			return 1
		}
		q := url.Values{}
		if *status != "" {
			q.Set("status", *status)
		}
		if *limit > 0 {
			q.Set("limit", fmt.Sprint(*limit))
		}
		path := "/jobs"
		if encoded := q.Encode(); encoded != "" {
			path += "?" + encoded
		}
		var out []model.Job
		if err := apiRequest("GET", path, nil, &out); err != nil {
			return fail(err)
		}
		printJSON(out)
		return 0
	case "get":
		if len(rest) != 1 {
			fmt.Fprintln(os.Stderr, "Usage: shevd job get <job_id>")
			return 1
		}
		var out model.Job
		if err := apiRequest("GET", "/jobs/"+rest[0], nil, &out); err != nil {
			return fail(err)
		}
		printJSON(out)
		return 0
	case "cancel":
		if len(rest) != 1 {
			fmt.Fprintln(os.Stderr, "Usage: shevd job cancel <job_id>")
			return 1
		}
		var out map[string]string
		if err := apiRequest("POST", "/jobs/"+rest[0]+"/cancel", nil, &out); err != nil {
			return fail(err)
		}
		printJSON(out)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown job action: %s\n", action)
		return 1
	}
}

func runEventNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: shevd event create --event-type T [--context C]")
		return helpExit(args)
	}
	action, rest := args[0], args[1:]

	switch action {
	case "create":
		fs := flag.NewFlagSet("create", flag.ContinueOnError)
		eventType := fs.String("event-type", "", "event type to enqueue")
		context := fs.String("context", "", "context string passed to the handler")
		if err := fs.Parse(rest); err != nil {
			return 1
		}
		if *eventType == "" {
			fmt.Fprintln(os.Stderr, "Usage: shevd event create --event-type T [--context C]")
			return 1
		}
		req := map[string]string{"event_type": *eventType, "context": *context}
		var out map[string]any
		if err := apiRequest("POST", "/events", req, &out); err != nil {
			return fail(err)
		}
		printJSON(out)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown event action: %s\n", action)
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: shevd config show|set [flags]")
		return helpExit(args)
	}
	action, rest := args[0], args[1:]

	switch action {
	case "show":
		var out map[string]string
		if err := apiRequest("GET", "/config", nil, &out); err != nil {
			return fail(err)
		}
		printJSON(out)
		return 0
	case "set":
		if len(rest) != 2 {
			fmt.Fprintln(os.Stderr, "Usage: shevd config set <key> <value>")
			return 1
		}
		req := map[string]string{"value": rest[1]}
		var out map[string]string
		if err := apiRequest("PUT", "/config/"+rest[0], req, &out); err != nil {
			return fail(err)
		}
		printJSON(out)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown config action: %s\n", action)
		return 1
	}
}

func runReload(args []string) int {
	if len(args) > 0 && isHelpToken(args[0]) {
		fmt.Println("Usage: shevd reload")
		return 0
	}
	var out map[string]any
	if err := apiRequest("POST", "/reload", nil, &out); err != nil {
		return fail(err)
	}
	printJSON(out)
	return 0
}
