package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
)

// runWatch attaches to /events/stream and prints one line per job
// lifecycle event: job.pending, job.started, and the terminal
// job.completed/job.failed/job.cancelled. Timer ticks, schedule fires and
// reloads are not on the stream. Not a dashboard: no TUI rendering layer,
// just stdout lines.
func runWatch(args []string) int {
	if len(args) > 0 && isHelpToken(args[0]) {
		fmt.Println("Usage: shevd watch")
		return 0
	}

	req, err := http.NewRequest(http.MethodGet, baseURL()+"/events/stream", nil)
	if err != nil {
		return fail(err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fail(fmt.Errorf("GET /events/stream: %d", resp.StatusCode))
	}

	var id int64
	var eventType, data string

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data != "" {
				printWatchLine(id, eventType, data)
				id, eventType, data = 0, "", ""
			}
		case strings.HasPrefix(line, "id: "):
			id, _ = strconv.ParseInt(strings.TrimPrefix(line, "id: "), 10, 64)
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case strings.HasPrefix(line, ":"):
			// keep-alive comment line
		}
	}
	if err := scanner.Err(); err != nil {
		return fail(err)
	}
	return 0
}

func printWatchLine(id int64, eventType, data string) {
	fmt.Fprintf(os.Stdout, "#%d %s %s\n", id, eventType, data)
}
