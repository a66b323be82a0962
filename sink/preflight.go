package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// preflightResult reports the outcome of a sqlite preflight check.
type preflightResult struct {
	healthy         bool
	quarantined     bool
	quarantinePath  string
	elapsed         time.Duration
	checkpointError error
	checkError      error
}

// preflight runs a bounded WAL checkpoint + quick_check before the main open
// path. On error it renames the database and sidecars to a timestamped
// quarantine path so the run continues with a fresh file; only a timeout is
// fatal.
func preflight(path, role string, timeout time.Duration, logger Logger) (preflightResult, error) {
	logger = orNop(logger)
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	start := time.Now().UTC()
	res := preflightResult{}

	if strings.TrimSpace(path) == "" {
		return res, errors.New("preflight: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return res, fmt.Errorf("preflight: ensure dir: %w", err)
	}
	existing := collectExisting(path)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return res, fmt.Errorf("preflight: open %s db: %w", role, err)
	}
	defer db.Close()
	// Keep operations serialized and honor busy timeout.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.ExecContext(ctx, fmt.Sprintf("pragma busy_timeout=%d", timeout.Milliseconds())); err != nil {
		return res, fmt.Errorf("preflight: set busy_timeout %s: %w", role, err)
	}

	checkpointErr := runCheckpoint(ctx, db)
	checkErr := quickCheck(ctx, db)
	res.elapsed = time.Since(start)
	res.checkpointError = checkpointErr
	res.checkError = checkErr

	if checkpointErr == nil && checkErr == nil {
		res.healthy = true
		return res, nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return res, fmt.Errorf("preflight: %s db timed out after %s", role, timeout)
	}

	_ = db.Close()
	quarantinePath, quarantineErr := quarantine(path, existing, logger)
	if quarantineErr != nil {
		return res, fmt.Errorf("preflight: %s db quarantine failed: %w (checkpoint=%v, quick_check=%v)", role, quarantineErr, checkpointErr, checkErr)
	}
	res.quarantined = true
	res.quarantinePath = quarantinePath
	if checkpointErr != nil {
		logger.Printf("%s db preflight: checkpoint failed (%v); quarantined to %s; elapsed=%s", role, checkpointErr, quarantinePath, res.elapsed)
	} else {
		logger.Printf("%s db preflight: quick_check failed (%v); quarantined to %s; elapsed=%s", role, checkErr, quarantinePath, res.elapsed)
	}
	return res, nil
}

func runCheckpoint(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "pragma wal_checkpoint(TRUNCATE)")
	return err
}

func quickCheck(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, "pragma quick_check")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		if scanErr := rows.Scan(&status); scanErr != nil {
			return scanErr
		}
		if strings.TrimSpace(status) != "ok" {
			return fmt.Errorf("quick_check reported %q", status)
		}
	}
	return rows.Err()
}

type fileState struct {
	path string
	have bool
}

func collectExisting(path string) []fileState {
	targets := []string{
		path,
		path + "-wal",
		path + "-shm",
		path + "-journal",
	}
	out := make([]fileState, 0, len(targets))
	for _, t := range targets {
		_, err := os.Stat(t)
		out = append(out, fileState{path: t, have: err == nil})
	}
	return out
}

func quarantine(path string, existing []fileState, logger Logger) (string, error) {
	ts := time.Now().UTC().Format("20060102T150405Z")
	quarantinePath := fmt.Sprintf("%s.bad-%s", path, ts)

	if len(existing) == 0 {
		existing = collectExisting(path)
	}

	for _, state := range existing {
		if !state.have {
			continue
		}
		dest := state.path + ".bad-" + ts
		if _, err := os.Stat(state.path); err != nil {
			if os.IsNotExist(err) {
				logger.Printf("preflight: expected %s but it was missing during quarantine", state.path)
				continue
			}
			return "", err
		}
		if err := os.Rename(state.path, dest); err != nil {
			return "", err
		}
	}

	// The open or checkpoint can materialize sidecars that were absent at
	// the initial scan; they belong with the quarantined database.
	for _, state := range existing {
		if state.have {
			continue
		}
		if _, err := os.Stat(state.path); err == nil {
			if err := os.Rename(state.path, state.path+".bad-"+ts); err != nil {
				return "", err
			}
			logger.Printf("preflight: quarantined late sidecar %s", state.path)
		}
	}
	return quarantinePath, nil
}
