package walk_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmcp/swarmcp/internal/op"
	"github.com/swarmcp/swarmcp/internal/stats"
	"github.com/swarmcp/swarmcp/internal/walk"
)

func TestExpandDir_OneItemPerEntry(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.Mkdir(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "b"), []byte("b"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(src, "sub"), 0o755))

	parent := op.Operation{
		Kind:             op.Treewalk,
		Operand:          src,
		SourceBaseOffset: uint32(len(src)),
		DestBaseAppendix: "base",
		FileSize:         99, // carried through even though unused for dirs
	}

	w := newWalker(t, dst, false)
	q := &captureQueue{}
	require.NoError(t, w.Process(parent, q))

	ops := q.decoded(t)
	require.Len(t, ops, 3, "one TREEWALK item per child, self/parent excluded")

	seen := map[string]bool{}
	for _, o := range ops {
		assert.Equal(t, op.Treewalk, o.Kind)
		assert.EqualValues(t, 0, o.Chunk)
		assert.Equal(t, parent.SourceBaseOffset, o.SourceBaseOffset)
		assert.Equal(t, parent.DestBaseAppendix, o.DestBaseAppendix)
		assert.Equal(t, parent.FileSize, o.FileSize)
		assert.False(t, seen[o.Operand], "duplicate child %s", o.Operand)
		seen[o.Operand] = true
	}
	assert.True(t, seen[filepath.Join(src, "a")])
	assert.True(t, seen[filepath.Join(src, "b")])
	assert.True(t, seen[filepath.Join(src, "sub")])

	// The mirrored destination directory exists.
	info, err := os.Stat(filepath.Join(dst, "base"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestExpandDir_DestinationAlreadyExists(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.Mkdir(src, 0o755))
	require.NoError(t, os.MkdirAll(dst, 0o755))

	w := newWalker(t, dst, true)
	q := &captureQueue{}

	// Idempotent create: a pre-existing directory is not an error, even
	// in reliable mode.
	require.NoError(t, w.Process(op.Operation{
		Kind:             op.Treewalk,
		Operand:          src,
		SourceBaseOffset: uint32(len(src)),
	}, q))
	assert.Empty(t, q.items, "empty directory expands to nothing")
}

func TestExpandDir_OpenFailurePolicy(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "locked")
	require.NoError(t, os.Mkdir(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "child"), nil, 0o644))
	require.NoError(t, os.Chmod(src, 0o000))
	t.Cleanup(func() { _ = os.Chmod(src, 0o755) })

	orig := op.Operation{Kind: op.Treewalk, Operand: src, SourceBaseOffset: uint32(len(src))}

	// Unreliable: the whole directory operation is resubmitted, not
	// individual entries.
	w := newWalker(t, filepath.Join(dir, "dst"), false)
	q := &captureQueue{}
	require.NoError(t, w.Process(orig, q))
	require.Len(t, q.items, 1)
	got, err := op.Decode(q.items[0])
	require.NoError(t, err)
	assert.Equal(t, orig, got)

	// Reliable: fatal.
	w = newWalker(t, filepath.Join(dir, "dst2"), true)
	q = &captureQueue{}
	err = w.Process(orig, q)
	var fatal *walk.FatalError
	require.ErrorAs(t, err, &fatal)
}

func TestExpandDir_Filters(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.Mkdir(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "keep.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "skip.log"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(src, ".git"), 0o755))

	chain := walk.NewRuleChain()
	require.NoError(t, chain.AddExclude("*.log"))
	require.NoError(t, chain.AddExclude(".git/"))

	collector := stats.NewCollector()
	w, err := walk.New(walk.Config{
		DestRoot:  filepath.Join(dir, "dst"),
		ChunkSize: testChunkSize,
		Filters:   chain,
		Stats:     collector,
	})
	require.NoError(t, err)

	q := &captureQueue{}
	require.NoError(t, w.Process(op.Operation{
		Kind:             op.Treewalk,
		Operand:          src,
		SourceBaseOffset: uint32(len(src)),
	}, q))

	ops := q.decoded(t)
	require.Len(t, ops, 1)
	assert.Equal(t, filepath.Join(src, "keep.txt"), ops[0].Operand)
	assert.EqualValues(t, 2, collector.Snapshot().Filtered)
}

// drain processes TREEWALK items breadth-first until only COPY items
// remain, standing in for the queue engine.
func drain(t *testing.T, w *walk.Walker, seed op.Operation) []op.Operation {
	t.Helper()
	pending := []op.Operation{seed}
	var copies []op.Operation
	for len(pending) > 0 {
		o := pending[0]
		pending = pending[1:]
		q := &captureQueue{}
		require.NoError(t, w.Process(o, q))
		for _, derived := range q.decoded(t) {
			if derived.Kind == op.Copy {
				copies = append(copies, derived)
			} else {
				pending = append(pending, derived)
			}
		}
	}
	return copies
}

func TestScenario_MixedDirectory(t *testing.T) {
	const c = testChunkSize

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.Mkdir(src, 0o755))
	writeFileOfSize(t, filepath.Join(src, "a"), 0)
	writeFileOfSize(t, filepath.Join(src, "b"), 2*c)
	writeFileOfSize(t, filepath.Join(src, "c"), 2*c+100)

	w := newWalker(t, dst, true)
	copies := drain(t, w, op.Operation{
		Kind:             op.Treewalk,
		Operand:          src,
		SourceBaseOffset: uint32(len(src)),
	})

	byFile := map[string][]uint32{}
	for _, o := range copies {
		byFile[filepath.Base(o.Operand)] = append(byFile[filepath.Base(o.Operand)], o.Chunk)
	}

	assert.Empty(t, byFile["a"], "zero-byte file emits no COPY items")
	assert.ElementsMatch(t, []uint32{0, 1}, byFile["b"])
	assert.ElementsMatch(t, []uint32{0, 1, 2}, byFile["c"])
}

func TestScenario_NestedOffsetPreserved(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o755))
	writeFileOfSize(t, filepath.Join(src, "sub", "d"), 10)

	w := newWalker(t, dst, true)
	copies := drain(t, w, op.Operation{
		Kind:             op.Treewalk,
		Operand:          src,
		SourceBaseOffset: uint32(len(src)),
	})

	require.Len(t, copies, 1)
	got := copies[0]

	// The base offset survived two expansions unchanged, so the derived
	// destination is destRoot + "/sub/d".
	assert.EqualValues(t, len(src), got.SourceBaseOffset)
	assert.Equal(t, filepath.Join(dst, "sub", "d"), walk.DestPath(dst, got))

	// Both intermediate destination directories were created.
	info, err := os.Stat(filepath.Join(dst, "sub"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
