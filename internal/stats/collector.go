// Package stats tracks producer-stage progress counters.
package stats

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Collector tracks traversal statistics using lock-free atomic counters.
// One Collector is shared by every worker in a run.
type Collector struct {
	dirsExpanded  atomic.Int64
	entriesFound  atomic.Int64
	filesChunked  atomic.Int64
	emptyFiles    atomic.Int64
	chunksEmitted atomic.Int64
	bytesPlanned  atomic.Int64
	retries       atomic.Int64
	filtered      atomic.Int64
	startTime     time.Time
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

func (c *Collector) AddDirsExpanded(n int64)  { c.dirsExpanded.Add(n) }
func (c *Collector) AddEntriesFound(n int64)  { c.entriesFound.Add(n) }
func (c *Collector) AddFilesChunked(n int64)  { c.filesChunked.Add(n) }
func (c *Collector) AddEmptyFiles(n int64)    { c.emptyFiles.Add(n) }
func (c *Collector) AddChunksEmitted(n int64) { c.chunksEmitted.Add(n) }
func (c *Collector) AddBytesPlanned(n int64)  { c.bytesPlanned.Add(n) }
func (c *Collector) AddRetries(n int64)       { c.retries.Add(n) }
func (c *Collector) AddFiltered(n int64)      { c.filtered.Add(n) }

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	DirsExpanded  int64
	EntriesFound  int64
	FilesChunked  int64
	EmptyFiles    int64
	ChunksEmitted int64
	BytesPlanned  int64
	Retries       int64
	Filtered      int64
	Elapsed       time.Duration
}

// Snapshot returns a consistent point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		DirsExpanded:  c.dirsExpanded.Load(),
		EntriesFound:  c.entriesFound.Load(),
		FilesChunked:  c.filesChunked.Load(),
		EmptyFiles:    c.emptyFiles.Load(),
		ChunksEmitted: c.chunksEmitted.Load(),
		BytesPlanned:  c.bytesPlanned.Load(),
		Retries:       c.retries.Load(),
		Filtered:      c.filtered.Load(),
		Elapsed:       time.Since(c.startTime),
	}
}

// String renders a one-line summary suitable for the CLI.
func (s Snapshot) String() string {
	out := fmt.Sprintf("%d dirs, %d files, %d chunks (%s planned) in %s",
		s.DirsExpanded, s.FilesChunked, s.ChunksEmitted,
		formatBytes(s.BytesPlanned), s.Elapsed.Round(time.Millisecond))
	if s.Retries > 0 {
		out += fmt.Sprintf(", %d retries", s.Retries)
	}
	if s.Filtered > 0 {
		out += fmt.Sprintf(", %d filtered", s.Filtered)
	}
	return out
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
