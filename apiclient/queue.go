package apiclient

import (
	"context"

	"github.com/gaborage/dashclient/internal/tracking"
	"github.com/gaborage/dashclient/offline"
)

func (c *client) enqueue(ctx context.Context, req Request) {
	item, evicted := c.queue.Enqueue(req)
	tracking.RecordEnqueued(ctx, req.Method)
	c.logger.Info().
		Str("id", item.ID.String()).
		Str("method", req.Method).
		Str("path", req.Path).
		Int("queued", c.queue.Len()).
		Msg("offline, request queued")

	if evicted != nil {
		c.drop(ctx, *evicted, offline.DropOverflow)
	}
}

func (c *client) drop(ctx context.Context, item QueuedRequest, reason offline.DropReason) {
	tracking.RecordDropped(ctx, string(reason))
	c.logger.Warn().
		Str("id", item.ID.String()).
		Str("method", item.Request.Method).
		Str("path", item.Request.Path).
		Int("retry_count", item.RetryCount).
		Str("reason", string(reason)).
		Msg("queued request dropped")
	if c.onDropped != nil {
		c.onDropped(item, reason)
	}
}

// onConnectivity drains the queue in the background on every transition to Online
func (c *client) onConnectivity(s offline.Status) {
	if s != offline.Online {
		return
	}
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return
	}
	c.flushes.Add(1)
	go func() {
		defer c.flushes.Done()
		c.Flush(context.Background())
	}()
}

// Flush replays a snapshot of the queue in FIFO order. Items queued while it
// runs wait for the next flush. Failed replays go back to the queue until
// they exhaust their replays.
func (c *client) Flush(ctx context.Context) FlushReport {
	var report FlushReport
	items := c.queue.Drain()
	if len(items) == 0 {
		return report
	}
	c.logger.Info().Int("items", len(items)).Msg("replaying offline queue")

	for _, item := range items {
		if _, err := c.execute(ctx, item.Request); err == nil {
			report.Replayed++
			continue
		}

		requeued, evicted, ok := c.queue.Requeue(item)
		if !ok {
			report.Dropped++
			c.drop(ctx, item, offline.DropExhausted)
			continue
		}
		report.Requeued++
		c.logger.Debug().
			Str("id", requeued.ID.String()).
			Int("retry_count", requeued.RetryCount).
			Msg("queued request requeued")
		if evicted != nil {
			report.Dropped++
			c.drop(ctx, *evicted, offline.DropOverflow)
		}
	}

	c.logger.Info().
		Int("replayed", report.Replayed).
		Int("requeued", report.Requeued).
		Int("dropped", report.Dropped).
		Msg("offline queue replay finished")
	return report
}
