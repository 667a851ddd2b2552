// Package mgmt implements the management-plane envelope protocol (spec
// §4.7) and the operator-side fleet aggregator (spec §4.8).
package mgmt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tiptapinc/zerog-go/internal/zerog/domain"
	"github.com/tiptapinc/zerog-go/internal/zerog/queue"
	"github.com/tiptapinc/zerog-go/pkg/logger"
)

// Channel is a tube bound with use (produce) and watch (consume) for
// typed control and update messages.
type Channel struct {
	que      queue.Queue
	tube     string
	attached bool
}

// NewChannel creates a Channel over tube. It is not attached until
// Attach is called.
func NewChannel(que queue.Queue, tube string) *Channel {
	return &Channel{que: que, tube: tube}
}

// Attach watches and uses the channel's tube.
func (c *Channel) Attach(ctx context.Context) error {
	if err := c.que.Watch(ctx, c.tube); err != nil {
		return err
	}
	if err := c.que.Use(ctx, c.tube); err != nil {
		return err
	}
	c.attached = true
	return nil
}

// Detach releases the tube's watch/use sets so the broker can garbage
// collect it once nothing else references it.
func (c *Channel) Detach(ctx context.Context) error {
	if !c.attached {
		return nil
	}
	if err := c.que.Ignore(ctx, c.tube); err != nil {
		return err
	}
	c.attached = false
	return nil
}

// SendMsg JSON-encodes msg and puts it on the channel's tube.
func (c *Channel) SendMsg(ctx context.Context, msg domain.Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = c.que.Put(ctx, c.tube, body, 0, domain.DefaultTTR)
	return err
}

// GetMsg does a non-blocking reserve on the channel's tube, decodes and
// deletes one message, or returns ok=false if none is ready. Malformed
// bodies and unknown msgtypes are logged and dropped without aborting
// the caller.
func (c *Channel) GetMsg(ctx context.Context) (domain.Message, bool) {
	rctx, cancel := context.WithTimeout(ctx, time.Millisecond)
	defer cancel()

	id, body, _, err := c.que.Reserve(rctx)
	if err != nil {
		return domain.Message{}, false
	}
	defer func() {
		if delErr := c.que.Delete(ctx, id); delErr != nil {
			logger.Warn("mgmt channel: failed to delete consumed message", "tube", c.tube, "err", delErr)
		}
	}()

	var msg domain.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		logger.Warn("mgmt channel: dropping malformed message", "tube", c.tube, "err", err)
		return domain.Message{}, false
	}

	msg.Msgtype = domain.NormalizeMsgtype(msg.Msgtype)
	if !domain.KnownMsgtype(msg.Msgtype) {
		logger.Warn("mgmt channel: dropping unknown msgtype", "tube", c.tube, "msgtype", msg.Msgtype)
		return domain.Message{}, false
	}

	return msg, true
}

// ListAllQueues returns every tube name known to the broker.
func (c *Channel) ListAllQueues(ctx context.Context) ([]string, error) {
	return c.que.ListTubes(ctx)
}

// GetNamedQueueWatchers returns the given tube's current watcher count.
func (c *Channel) GetNamedQueueWatchers(ctx context.Context, tube string) (int, error) {
	return c.que.TubeStats(ctx, tube)
}
