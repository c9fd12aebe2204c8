package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/shevd/shevd/internal/bootstrap"
	"github.com/shevd/shevd/internal/doctor"
	"github.com/shevd/shevd/internal/store"
)

// runDoctor validates a bootstrap config, the Store-backed Config entity,
// and the runtime paths they name, without starting the daemon: bad
// db_path, malformed CIDRs, a stale PID lock left behind by a crash, or
// an invalid worker_count/queue_size/port value (serve rejects a bad port
// and falls back to the default for a bad worker_count or queue_size).
func runDoctor(args []string) int {
	if len(args) > 0 && isHelpToken(args[0]) {
		fmt.Println("Usage: shevd doctor [--config shevd.yaml] [--json]")
		return 0
	}

	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	configPath := fs.String("config", "shevd.yaml", "path to the bootstrap config file")
	jsonOut := fs.Bool("json", false, "emit the report as JSON")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := bootstrap.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	storeConfig := readStoreConfig(cfg.DBPath)

	r := doctor.New(cfg, storeConfig, *configPath).Validate()

	if *jsonOut {
		out, err := doctor.FormatJSON(r)
		if err != nil {
			return fail(err)
		}
		fmt.Println(out)
	} else {
		fmt.Print(doctor.FormatHuman(r))
	}

	if !r.Valid {
		return 1
	}
	return 0
}

// readStoreConfig opens db_path read-only-ish to fetch the Store-backed
// Config entity, returning nil if the Store cannot be opened (e.g. the
// db_path is not yet initialised). A nil result is not an error: doctor
// treats it as "nothing to check yet" rather than a validation failure.
func readStoreConfig(dbPath string) map[string]string {
	ctx := context.Background()
	db, err := store.Open(ctx, dbPath)
	if err != nil {
		return nil
	}
	defer db.Close()

	cfg, err := store.New(db, nil).GetAllConfig(ctx)
	if err != nil {
		return nil
	}
	return cfg
}
