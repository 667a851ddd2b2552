package queue

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/kr/beanstalk"

	zgerrors "github.com/tiptapinc/zerog-go/pkg/errors"
)

// reconnectAttempts is the spec §4.2 "bounded retries" count: after the
// initial attempt fails with a socket error, try to reconnect this many
// times before surfacing errors.ErrSocketError.
const reconnectAttempts = 2

// reconnectBackoff is the pause between reconnect attempts.
const reconnectBackoff = 1 * time.Second

// BeanstalkdQueue is a Queue backed by a real beanstalkd broker,
// grounded on the original's attach/detach/do_bean retry loop: a socket
// error triggers make_connection + attach and a bounded number of
// retries before giving up.
type BeanstalkdQueue struct {
	mu       sync.Mutex
	host     string
	port     int
	conn     *beanstalk.Conn
	tubeSet  *beanstalk.TubeSet
	watching map[string]bool
	useTube  string
}

// NewBeanstalkdQueue dials host:port and watches no tubes beyond
// "default" until Watch/Use are called.
func NewBeanstalkdQueue(host string, port int) (*BeanstalkdQueue, error) {
	q := &BeanstalkdQueue{host: host, port: port, watching: map[string]bool{"default": true}, useTube: "default"}
	if err := q.connect(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *BeanstalkdQueue) connect() error {
	conn, err := beanstalk.Dial("tcp", fmt.Sprintf("%s:%d", q.host, q.port))
	if err != nil {
		return zgerrors.Wrap(zgerrors.KindSocketError, "failed to dial beanstalkd", err)
	}
	q.conn = conn
	q.tubeSet = beanstalk.NewTubeSet(conn, tubeNames(q.watching)...)
	return nil
}

func tubeNames(watching map[string]bool) []string {
	names := make([]string, 0, len(watching))
	for name := range watching {
		names = append(names, name)
	}
	return names
}

// withReconnect runs op; on a socket error it reconnects and retries up
// to reconnectAttempts times before returning errors.ErrSocketError.
func (q *BeanstalkdQueue) withReconnect(op func() error) error {
	err := op()
	if err == nil || !isConnError(err) {
		return err
	}

	for i := 0; i < reconnectAttempts; i++ {
		time.Sleep(reconnectBackoff)
		if connErr := q.connect(); connErr != nil {
			continue
		}
		if err = op(); err == nil || !isConnError(err) {
			return err
		}
	}

	return zgerrors.Wrap(zgerrors.KindSocketError, "beanstalkd connection lost", err)
}

func isConnError(err error) bool {
	_, ok := err.(beanstalk.ConnError)
	return ok
}

func (q *BeanstalkdQueue) Put(ctx context.Context, tube string, body []byte, delay, ttr time.Duration) (uint64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var id uint64
	err := q.withReconnect(func() error {
		t := &beanstalk.Tube{Conn: q.conn, Name: tube}
		raw, putErr := t.Put(body, 1, delay, ttr)
		id = raw
		return putErr
	})
	return id, err
}

func (q *BeanstalkdQueue) Reserve(ctx context.Context) (uint64, []byte, TubeStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var id uint64
	var body []byte
	err := q.withReconnect(func() error {
		timeout := 5 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			if d := time.Until(deadline); d > 0 && d < timeout {
				timeout = d
			}
		}
		rid, rbody, rerr := q.tubeSet.Reserve(timeout)
		id, body = rid, rbody
		return rerr
	})
	if err != nil {
		return 0, nil, TubeStats{}, err
	}

	stats, err := q.statsJob(id)
	return id, body, stats, err
}

func (q *BeanstalkdQueue) statsJob(id uint64) (TubeStats, error) {
	var stats TubeStats
	err := q.withReconnect(func() error {
		raw, statErr := q.conn.StatsJob(id)
		if statErr != nil {
			return statErr
		}
		stats.Reserves = atoiOr(raw["reserves"], 0)
		stats.Timeouts = atoiOr(raw["timeouts"], 0)
		stats.Releases = atoiOr(raw["releases"], 0)
		stats.State = raw["state"]
		return nil
	})
	return stats, err
}

func atoiOr(s string, fallback int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}

func (q *BeanstalkdQueue) Release(ctx context.Context, id uint64, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.withReconnect(func() error {
		return q.conn.Release(id, 1, delay)
	})
}

func (q *BeanstalkdQueue) Delete(ctx context.Context, id uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.withReconnect(func() error {
		return q.conn.Delete(id)
	})
}

func (q *BeanstalkdQueue) Bury(ctx context.Context, id uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.withReconnect(func() error {
		return q.conn.Bury(id, 1)
	})
}

func (q *BeanstalkdQueue) ListTubes(ctx context.Context) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var tubes []string
	err := q.withReconnect(func() error {
		list, listErr := q.conn.ListTubes()
		tubes = list
		return listErr
	})
	return tubes, err
}

func (q *BeanstalkdQueue) TubeStats(ctx context.Context, tube string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	watching := 0
	err := q.withReconnect(func() error {
		t := &beanstalk.Tube{Conn: q.conn, Name: tube}
		raw, statErr := t.Stats()
		if statErr != nil {
			return statErr
		}
		watching = atoiOr(raw["current-watching"], 0)
		return nil
	})
	return watching, err
}

func (q *BeanstalkdQueue) Watch(ctx context.Context, tube string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	err := q.withReconnect(func() error {
		_, watchErr := q.tubeSet.Conn.Watch(tube)
		return watchErr
	})
	if err == nil {
		q.watching[tube] = true
	}
	return err
}

func (q *BeanstalkdQueue) Ignore(ctx context.Context, tube string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	err := q.withReconnect(func() error {
		_, ignoreErr := q.tubeSet.Conn.Ignore(tube)
		return ignoreErr
	})
	if err == nil {
		delete(q.watching, tube)
	}
	return err
}

// Use records which tube subsequent Put calls default to; Put here
// always takes its tube explicitly, so this only affects bookkeeping
// (each Tube.Put issues its own "use" against the target tube).
func (q *BeanstalkdQueue) Use(ctx context.Context, tube string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.useTube = tube
	return nil
}

func (q *BeanstalkdQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}
