package replica

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Diagnostics is the per-replica "<id>.log" trace sink from spec.md §6.
// Content is unspecified beyond "one message per line"; every line is
// tagged with a per-process run id so traces from replicas that share a
// working directory across restarts stay distinguishable when grepped
// together.
type Diagnostics struct {
	file  *os.File
	inner *log.Logger
	runID string
}

// NewFileDiagnostics opens dir/<id>.log for append and returns a sink whose
// Printf calls are prefixed with the replica id and this run's id.
func NewFileDiagnostics(dir, id string) (*Diagnostics, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("diagnostics: create log dir: %w", err)
	}

	path := filepath.Join(dir, id+".log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: open %s: %w", path, err)
	}

	runID := uuid.NewString()
	return &Diagnostics{
		file:  f,
		inner: log.New(f, fmt.Sprintf("[%s/%s] ", id, runID[:8]), log.LstdFlags|log.Lmicroseconds),
		runID: runID,
	}, nil
}

// NewDiscardDiagnostics is used by tests and any caller that wants the
// replica's logf calls to go nowhere.
func NewDiscardDiagnostics() *Diagnostics {
	return &Diagnostics{inner: log.New(io.Discard, "", 0)}
}

func (d *Diagnostics) Printf(format string, args ...any) {
	d.inner.Printf(format, args...)
}

func (d *Diagnostics) Close() error {
	if d.file == nil {
		return nil
	}
	return d.file.Close()
}
