// Package queue implements the WorkQueue contract (spec §4.2): a tube
// is a named FIFO-ish lease queue that a Worker reserves bodies from.
package queue

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

import (
	"context"
	"time"
)

//counterfeiter:generate . Queue

// TubeStats reports what a Worker needs to know about a single reserved
// job: how many times it has been reserved, timed out, and released.
type TubeStats struct {
	Reserves int
	Timeouts int
	Releases int
	State    string
}

// Queue is the WorkQueue contract shared by every broker adapter.
type Queue interface {
	// Put enqueues body on tube, returning the broker-assigned id.
	// delay defers visibility; ttr is the lease duration.
	Put(ctx context.Context, tube string, body []byte, delay, ttr time.Duration) (id uint64, err error)

	// Reserve blocks (up to the context deadline) for a body on any
	// watched tube, returning its id, body, and current stats.
	Reserve(ctx context.Context) (id uint64, body []byte, stats TubeStats, err error)

	// Release returns a reserved id to its tube after at least delay.
	Release(ctx context.Context, id uint64, delay time.Duration) error

	// Delete consumes a reserved id.
	Delete(ctx context.Context, id uint64) error

	// Bury sidelines a reserved id out of the ready queue.
	Bury(ctx context.Context, id uint64) error

	// ListTubes returns every known tube name.
	ListTubes(ctx context.Context) ([]string, error)

	// TubeStats reports current-watching for tube.
	TubeStats(ctx context.Context, tube string) (watching int, err error)

	// Watch adds tube to the set this Queue reserves from.
	Watch(ctx context.Context, tube string) error

	// Ignore removes tube from the watched set.
	Ignore(ctx context.Context, tube string) error

	// Use records tube as the current use tube. Put names its tube
	// explicitly, so Use does not change where Put enqueues.
	Use(ctx context.Context, tube string) error

	// Close releases broker resources.
	Close() error
}
