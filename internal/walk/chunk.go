package walk

import (
	"log/slog"

	"github.com/swarmcp/swarmcp/internal/op"
)

// NumChunks returns the number of COPY items a file of the given size
// splits into: ceil(fileSize/chunkSize). A zero-length file needs none.
func NumChunks(fileSize uint64, chunkSize int64) uint64 {
	n := fileSize / uint64(chunkSize)
	if n*uint64(chunkSize) < fileSize {
		n++
	}
	return n
}

// chunkFile splits a regular file into one COPY operation per fixed-size
// byte range. Every item carries the full file size, not its own range
// length; the copy stage derives the range from the chunk index. A
// zero-length file emits nothing, leaving the empty destination file to
// the cleanup stage.
func (w *Walker) chunkFile(o op.Operation, fileSize uint64, q Enqueuer) error {
	total := NumChunks(fileSize, w.cfg.ChunkSize)

	slog.Debug("chunking file", "path", o.Operand, "size", fileSize, "chunks", total)

	for idx := uint64(0); idx < total; idx++ {
		derived := op.Operation{
			Kind:             op.Copy,
			Chunk:            uint32(idx),
			Operand:          o.Operand,
			SourceBaseOffset: o.SourceBaseOffset,
			DestBaseAppendix: o.DestBaseAppendix,
			FileSize:         fileSize,
		}
		if err := w.emit(q, derived); err != nil {
			return err
		}
	}

	w.cfg.Stats.AddFilesChunked(1)
	w.cfg.Stats.AddChunksEmitted(int64(total))
	w.cfg.Stats.AddBytesPlanned(int64(fileSize))
	if fileSize == 0 {
		w.cfg.Stats.AddEmptyFiles(1)
	}
	return nil
}
