package walk

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/swarmcp/swarmcp/internal/op"
)

// DestPath returns the mirrored destination path for an operation:
// destination root + optional appendix + the operand with its leading
// SourceBaseOffset bytes stripped. Join cleans duplicate separators.
func DestPath(destRoot string, o op.Operation) string {
	rel := o.Operand
	if n := int(o.SourceBaseOffset); n <= len(rel) {
		rel = rel[n:]
	}
	return filepath.Join(destRoot, o.DestBaseAppendix, rel)
}

// expandDir mirrors a source directory under the destination root and
// emits one TREEWALK item per child entry. Children become independent,
// uncorrelated queue items: no ordering, aggregation, or completion
// signal exists across them.
func (w *Walker) expandDir(o op.Operation, q Enqueuer) error {
	dst := DestPath(w.cfg.DestRoot, o)

	// MkdirAll is idempotent, so concurrent expansion retries racing on
	// the same destination path are safe.
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return w.retryOrFatal(o, q, "create destination directory", err)
	}

	entries, err := os.ReadDir(o.Operand)
	if err != nil {
		// Whole-directory granularity: the entire expansion is
		// resubmitted, not individual entries.
		return w.retryOrFatal(o, q, "open directory", err)
	}

	slog.Debug("expanding directory", "path", o.Operand, "dest", dst, "entries", len(entries))

	for _, entry := range entries {
		// ReadDir never reports "." or "..".
		child := filepath.Join(o.Operand, entry.Name())

		if w.cfg.Filters != nil {
			rel := relChild(child, int(o.SourceBaseOffset))
			if !w.cfg.Filters.Match(rel, entry.IsDir()) {
				w.cfg.Stats.AddFiltered(1)
				continue
			}
		}

		derived := o
		derived.Chunk = 0
		derived.Operand = child
		// SourceBaseOffset, DestBaseAppendix and FileSize ride through
		// unchanged.
		if err := w.emit(q, derived); err != nil {
			return err
		}
		w.cfg.Stats.AddEntriesFound(1)
	}

	w.cfg.Stats.AddDirsExpanded(1)
	return nil
}

// relChild is the child path relative to the walk root, used for filter
// matching.
func relChild(child string, baseOffset int) string {
	if baseOffset > len(child) {
		baseOffset = len(child)
	}
	return strings.TrimPrefix(child[baseOffset:], string(filepath.Separator))
}
