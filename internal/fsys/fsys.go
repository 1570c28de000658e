//go:build unix

// Package fsys classifies filesystem objects for the treewalk stage. All
// lookups use lstat so the final symbolic link of a path is never
// followed: a symlink is neither a directory nor a regular file here,
// whatever it points at.
package fsys

import (
	"log/slog"
	"os"

	"golang.org/x/sys/unix"
)

// Class is the object classification the walker branches on.
type Class int

const (
	// ClassOther covers symlinks, devices, sockets, fifos and anything
	// else this stage does not traverse or chunk.
	ClassOther Class = iota
	ClassDir
	ClassRegular
)

func (c Class) String() string {
	switch c {
	case ClassDir:
		return "directory"
	case ClassRegular:
		return "regular file"
	}
	return "other"
}

// Classify looks up path metadata with a single lstat and returns the
// object's class and size in bytes.
func Classify(path string) (Class, uint64, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return ClassOther, 0, &os.PathError{Op: "lstat", Path: path, Err: err}
	}

	size := uint64(st.Size)
	switch st.Mode & unix.S_IFMT {
	case unix.S_IFDIR:
		return ClassDir, size, nil
	case unix.S_IFREG:
		return ClassRegular, size, nil
	}
	return ClassOther, size, nil
}

// IsDirectory reports whether path names a directory that is not itself a
// symbolic link. Lookup failures are logged and reported as false; the
// retry-or-fatal policy lives in the walker, not here.
func IsDirectory(path string) bool {
	c, _, err := Classify(path)
	if err != nil {
		slog.Error("could not get info", "path", path, "error", err)
		return false
	}
	return c == ClassDir
}

// IsRegularFile reports whether path names a regular file that is not
// itself a symbolic link. Lookup failures are logged and reported as
// false.
func IsRegularFile(path string) bool {
	c, _, err := Classify(path)
	if err != nil {
		slog.Error("could not get info", "path", path, "error", err)
		return false
	}
	return c == ClassRegular
}
