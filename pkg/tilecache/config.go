package tilecache

import "time"

// DefaultMemCapacity is the fallback memory capacity: 64 MiB.
const DefaultMemCapacity int64 = 64 * 1024 * 1024

// DefaultAutoFlushInterval is the fallback auto-flush idle window.
const DefaultAutoFlushInterval = 2500 * time.Millisecond

// Options configures a Cache at construction time. All fields are
// optional; a zero Options is valid and uses the package defaults. Unknown
// keys in an external, string-keyed configuration source are ignored by
// the parser that builds an Options value (rejection of unknown keys
// belongs to that parser, not here).
type Options struct {
	// MemCapacity is the initial memory capacity in bytes. Zero or a
	// negative value means DefaultMemCapacity; call
	// Cache.SetMemoryCapacity(0) after construction if a zero-capacity cache
	// (disk-only) is actually wanted.
	MemCapacity int64
	// MemThreshold is the fraction of MemCapacity retained by
	// memoryControl. Any value outside (0,1], including zero, means the
	// default of 1.0 (no trimming beyond capacity itself).
	MemThreshold float64
	// DiskCache, when true, writes tiles through to disk at Add time.
	DiskCache bool
	// EnableAutoFlush, when true, starts the AutoFlushScheduler.
	EnableAutoFlush bool
	// AutoFlushInterval is the scheduler's period and idle window. Zero
	// means DefaultAutoFlushInterval.
	AutoFlushInterval time.Duration

	// Dir is the directory spilled tiles are written under. Defaults to
	// os.TempDir() if empty.
	Dir string
	// Serializer performs the actual tile payload I/O. Required for
	// DiskCache, write-back, and rehydration to do anything; a nil
	// Serializer degrades gracefully to a memory-only cache (writes and
	// reads are no-ops, so evicted, non-writable-equivalent tiles are
	// simply lost, matching the "non-writable" eviction path).
	Serializer DiskSerializer
	// Logger receives the "logged, not thrown" diagnostics from Add,
	// Remove, memoryControl, and SetMemoryCapacity. Defaults to the
	// standard library's default logger.
	Logger Logger
	// Clock abstracts time for tests; defaults to the real wall clock.
	Clock Clock
}

// Logger is the minimal logging capability the cache needs.
type Logger interface {
	Printf(format string, args ...interface{})
}

func (o Options) normalized() Options {
	if o.MemCapacity <= 0 {
		o.MemCapacity = DefaultMemCapacity
	}
	if o.MemThreshold <= 0 || o.MemThreshold > 1 {
		o.MemThreshold = 1.0
	}
	if o.AutoFlushInterval <= 0 {
		o.AutoFlushInterval = DefaultAutoFlushInterval
	}
	if o.Clock == nil {
		o.Clock = realClock{}
	}
	return o
}
