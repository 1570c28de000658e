// Package walk implements the producer stage of the copy pipeline: the
// per-item treewalk callback that classifies a source object and derives
// further work items from it. Directories expand into one TREEWALK item
// per child, regular files split into fixed-size COPY byte ranges. The
// walker holds no cross-item state; everything a worker needs rides on
// the Operation itself.
package walk

import (
	"fmt"
	"log/slog"

	"github.com/swarmcp/swarmcp/internal/fsys"
	"github.com/swarmcp/swarmcp/internal/op"
	"github.com/swarmcp/swarmcp/internal/stats"
)

// Enqueuer is the append-only sink side of the work queue. Enqueue
// transfers ownership of one encoded item into the work pool; it may be
// called any number of times per callback, including zero.
type Enqueuer interface {
	Enqueue(item []byte) error
}

// Config carries the process-wide settings shared by every item of a run.
// It is read-only and threaded explicitly through the walker.
type Config struct {
	// DestRoot is the destination root path.
	DestRoot string

	// ChunkSize is the byte granularity for splitting files into COPY
	// items. Must be positive.
	ChunkSize int64

	// Reliable selects fatal-abort over infinite-retry on I/O error.
	Reliable bool

	// Filters optionally excludes children during directory expansion.
	Filters *RuleChain

	// Stats receives progress counters. A fresh collector is used when
	// nil.
	Stats *stats.Collector
}

// Walker turns one dequeued TREEWALK operation into derived work items.
// It is safe for concurrent use; each Process call is independent.
type Walker struct {
	cfg Config
}

// New validates cfg and returns a Walker.
func New(cfg Config) (*Walker, error) {
	if cfg.DestRoot == "" {
		return nil, fmt.Errorf("walk: destination root is required")
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("walk: chunk size must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}
	return &Walker{cfg: cfg}, nil
}

// Stats returns the collector the walker reports into.
func (w *Walker) Stats() *stats.Collector {
	return w.cfg.Stats
}

// FatalError aborts the whole run. Library code returns it instead of
// terminating the process; the CLI exits non-zero when one surfaces.
type FatalError struct {
	Err    error
	Path   string
	Reason string
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %q: %v", e.Reason, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %q", e.Reason, e.Path)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Process handles one dequeued TREEWALK operation: stat the operand, then
// expand a directory or chunk a regular file. Anything else, symlinks
// included, is unsupported and falls to the retry-or-fatal policy.
func (w *Walker) Process(o op.Operation, q Enqueuer) error {
	if o.Kind != op.Treewalk {
		return &FatalError{Path: o.Operand, Reason: fmt.Sprintf("unexpected %s operation", o.Kind)}
	}

	class, size, err := fsys.Classify(o.Operand)
	if err != nil {
		return w.retryOrFatal(o, q, "stat", err)
	}

	switch class {
	case fsys.ClassDir:
		return w.expandDir(o, q)
	case fsys.ClassRegular:
		return w.chunkFile(o, size, q)
	default:
		slog.Debug("unsupported file type", "path", o.Operand)
		return w.retryOrFatal(o, q, "unsupported file type", nil)
	}
}

// retryOrFatal implements the filesystem reliability policy. On a
// reliable filesystem the run fails; on an unreliable one the identical
// TREEWALK item is resubmitted, unconditionally and without backoff, on
// the assumption that the condition is transient.
func (w *Walker) retryOrFatal(o op.Operation, q Enqueuer, reason string, cause error) error {
	if w.cfg.Reliable {
		return &FatalError{Path: o.Operand, Reason: reason, Err: cause}
	}

	slog.Warn("retrying treewalk", "path", o.Operand, "reason", reason, "error", cause)

	item, err := op.Encode(o)
	if err != nil {
		return &FatalError{Path: o.Operand, Reason: "re-encode for retry", Err: err}
	}
	if err := q.Enqueue(item); err != nil {
		return &FatalError{Path: o.Operand, Reason: "requeue", Err: err}
	}
	w.cfg.Stats.AddRetries(1)
	return nil
}

// emit encodes one derived operation and hands it to the queue. Encode or
// enqueue failures are defects, never retried.
func (w *Walker) emit(q Enqueuer, derived op.Operation) error {
	item, err := op.Encode(derived)
	if err != nil {
		return &FatalError{Path: derived.Operand, Reason: "encode", Err: err}
	}
	if err := q.Enqueue(item); err != nil {
		return &FatalError{Path: derived.Operand, Reason: "enqueue", Err: err}
	}
	return nil
}
