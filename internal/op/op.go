// Package op defines the work item carried on the distributed copy queue
// and its wire codec. An Operation is a self-contained value: workers on
// different machines exchange nothing but encoded Operations.
package op

import "fmt"

// Kind identifies what a dequeued Operation asks a worker to do.
type Kind byte

const (
	// Treewalk classifies the operand and expands it (directories) or
	// splits it into copy ranges (regular files).
	Treewalk Kind = 0x01
	// Copy instructs the copy stage to transfer one byte range of the
	// operand to its mirrored destination path.
	Copy Kind = 0x02
)

func (k Kind) String() string {
	switch k {
	case Treewalk:
		return "treewalk"
	case Copy:
		return "copy"
	}
	return fmt.Sprintf("kind(0x%02x)", byte(k))
}

// Operation is one work item. Values are never mutated after creation;
// derived items are new values.
type Operation struct {
	// Operand is the absolute source path the item refers to.
	Operand string

	// DestBaseAppendix is an optional sub-path inserted between the
	// destination root and the relative path. Empty means absent.
	DestBaseAppendix string

	// FileSize is the total size in bytes of the file the item belongs
	// to. Carried but unused for directories.
	FileSize uint64

	// Chunk is the byte-range index for Copy items, 0 for Treewalk.
	Chunk uint32

	// SourceBaseOffset is the count of leading bytes of Operand that make
	// up the original source root. It is copied unchanged into every
	// derived item, so stripping it yields the path relative to the copy
	// root anywhere in the subtree.
	SourceBaseOffset uint32

	Kind Kind
}

// ByteRange returns the byte range a Copy operation covers for the given
// chunk size: [Chunk*chunkSize, min((Chunk+1)*chunkSize, FileSize)).
func (o Operation) ByteRange(chunkSize int64) (offset, length int64) {
	offset = int64(o.Chunk) * chunkSize
	length = chunkSize
	if rem := int64(o.FileSize) - offset; rem < length {
		length = rem
	}
	if length < 0 {
		length = 0
	}
	return offset, length
}
