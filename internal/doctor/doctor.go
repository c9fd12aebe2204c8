// Package doctor validates a bootstrap config, the Store-backed Config
// entity it opens into, and the on-disk state they name, before a serve
// attempt, so a bad db_path or a stale lock surfaces as a readable report
// instead of a failed startup.
package doctor

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/shevd/shevd/internal/bootstrap"
	"github.com/shevd/shevd/internal/model"
	"github.com/shevd/shevd/internal/store"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Field    string `json:"field,omitempty"`
	Message  string `json:"message"`
}

// Doctor validates a loaded bootstrap config and the runtime paths it
// names. storeConfig is the merged Store-backed Config entity
// (port/queue_size/worker_count); nil when the Store could not be opened
// (e.g. a not-yet-initialised db_path), in which case worker/queue/port
// checks are skipped rather than reported as errors.
type Doctor struct {
	cfg         *bootstrap.Config
	storeConfig map[string]string
	configPath  string
}

// New creates a Doctor from a loaded bootstrap config and the Store's
// merged config map. Pass a nil storeConfig when the Store is unavailable.
func New(cfg *bootstrap.Config, storeConfig map[string]string, configPath string) *Doctor {
	return &Doctor{cfg: cfg, storeConfig: storeConfig, configPath: configPath}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateListen(r)
	d.validateAccessLists(r)
	d.validateDBPath(r)
	d.validatePIDLock(r)
	d.validateStoreConfig(r)
	d.warnWideOpenAccess(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateListen(r *Result) {
	if d.cfg.Listen == "" {
		d.addError(r, "config", "listen", "listen is required")
		return
	}
	if _, _, err := net.SplitHostPort(d.cfg.Listen); err != nil {
		d.addError(r, "config", "listen", fmt.Sprintf("invalid listen address %q: %v", d.cfg.Listen, err))
	}
}

func (d *Doctor) validateAccessLists(r *Result) {
	d.validateCIDRList(r, "allow", d.cfg.Allow)
	d.validateCIDRList(r, "allow_write", d.cfg.AllowWrite)
}

func (d *Doctor) validateCIDRList(r *Result, field string, entries []string) {
	for i, e := range entries {
		if _, _, err := net.ParseCIDR(e); err == nil {
			continue
		}
		if ip := net.ParseIP(e); ip != nil {
			continue
		}
		d.addError(r, "access", fmt.Sprintf("%s[%d]", field, i),
			fmt.Sprintf("%q is not a valid IP or CIDR", e))
	}
}

// validateDBPath checks the db_path resolves onto a local filesystem, the
// same check store.Open performs at startup, surfaced here before a real
// attempt to serve.
func (d *Doctor) validateDBPath(r *Result) {
	if d.cfg.DBPath == "" {
		d.addError(r, "store", "db_path", "db_path is required")
		return
	}
	if err := store.ValidateFilesystem(d.cfg.DBPath); err != nil {
		d.addError(r, "store", "db_path", err.Error())
	}
}

// validatePIDLock warns when a PID file exists but names a process that is
// no longer running: a crash left a stale lock behind.
func (d *Doctor) validatePIDLock(r *Result) {
	lockPath := pidLockPath(d.cfg.DBPath)
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		d.addWarning(r, "lock", lockPath, fmt.Sprintf("pid file contains non-numeric content %q", strings.TrimSpace(string(data))))
		return
	}

	if !processAlive(pid) {
		d.addWarning(r, "lock", lockPath,
			fmt.Sprintf("pid file names process %d, which is not running; remove %s before serving", pid, lockPath))
	}
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func pidLockPath(dbPath string) string {
	if dbPath == "" {
		return ""
	}
	dir := dbPath[:strings.LastIndexByte(dbPath, '/')+1]
	base := dbPath[strings.LastIndexByte(dbPath, '/')+1:]
	if dot := strings.LastIndexByte(base, '.'); dot >= 0 {
		base = base[:dot]
	}
	return dir + base + ".pid"
}

// validateStoreConfig checks the Store-backed Config entity's
// port/queue_size/worker_count values, the same values serve reads at
// startup. Skipped (not failed) when the Store could not be opened.
func (d *Doctor) validateStoreConfig(r *Result) {
	if d.storeConfig == nil {
		return
	}

	port, err := strconv.Atoi(d.storeConfig[model.ConfigPort])
	if err != nil || port <= 0 || port > 65535 {
		d.addError(r, "config", "port", fmt.Sprintf("port %q must be a number between 1 and 65535", d.storeConfig[model.ConfigPort]))
	}

	queueSize, err := strconv.Atoi(d.storeConfig[model.ConfigQueueSize])
	if err != nil || queueSize <= 0 {
		d.addError(r, "config", "queue_size", fmt.Sprintf("queue_size %q must be a positive number", d.storeConfig[model.ConfigQueueSize]))
	}

	workerCount, err := strconv.Atoi(d.storeConfig[model.ConfigWorkerCount])
	if err != nil || workerCount <= 0 {
		d.addError(r, "config", "worker_count", fmt.Sprintf("worker_count %q must be a positive number", d.storeConfig[model.ConfigWorkerCount]))
		return
	}
	if queueSize > 0 && workerCount > queueSize {
		d.addWarning(r, "config", "worker_count",
			fmt.Sprintf("worker_count (%d) exceeds queue_size (%d); extra workers will starve", workerCount, queueSize))
	}
}

func (d *Doctor) warnWideOpenAccess(r *Result) {
	for i, e := range d.cfg.AllowWrite {
		if e == "0.0.0.0/0" || e == "::/0" {
			d.addWarning(r, "access", fmt.Sprintf("allow_write[%d]", i),
				fmt.Sprintf("%q grants write access to the entire internet", e))
		}
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	switch {
	case r.Valid && len(r.Warnings) == 0:
		b.WriteString("Configuration valid.\n")
		return b.String()
	case r.Valid:
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	default:
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
