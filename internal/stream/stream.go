// Package stream decodes the inference endpoint's newline-delimited
// frame stream into cumulative assistant-content snapshots.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
)

const framePrefix = "data: "

// DefaultInterval is the minimum gap between emitted snapshots. Deltas
// accumulate immediately; the UI only needs to see them this often.
const DefaultInterval = 100 * time.Millisecond

type frame struct {
	Content string `json:"content"`
}

// Consumer turns a live byte stream into a finite, non-restartable
// sequence of snapshots. Each snapshot is the full accumulated content,
// so lengths are monotonically non-decreasing for a given turn.
type Consumer struct {
	log      *zap.Logger
	interval time.Duration
	now      func() time.Time
}

func NewConsumer(log *zap.Logger) *Consumer {
	return &Consumer{log: log, interval: DefaultInterval, now: time.Now}
}

// SetFlushInterval overrides the snapshot throttle. Zero emits a
// snapshot for every decoded frame.
func (c *Consumer) SetFlushInterval(d time.Duration) {
	c.interval = d
}

// Run reads frames from body until the stream ends or ctx is
// cancelled, calling emit with throttled snapshots along the way. The
// final snapshot is flushed unconditionally when the stream completes.
// The accumulated content is always returned, paired with ctx.Err() on
// cancellation so the caller can decide whether to persist the partial
// result. Malformed frames are logged and skipped.
func (c *Consumer) Run(ctx context.Context, body io.Reader, emit func(snapshot string)) (string, error) {
	reader := bufio.NewReader(body)
	var acc strings.Builder
	last := c.now()

	for {
		if err := ctx.Err(); err != nil {
			return acc.String(), err
		}

		line, err := reader.ReadString('\n')
		if trimmed := strings.TrimSpace(line); strings.HasPrefix(trimmed, framePrefix) {
			payload := strings.TrimPrefix(trimmed, framePrefix)
			var f frame
			if jerr := json.Unmarshal([]byte(payload), &f); jerr != nil {
				c.log.Warn("skipping malformed stream frame", zap.Error(jerr))
			} else {
				acc.WriteString(f.Content)
				if now := c.now(); now.Sub(last) >= c.interval {
					emit(acc.String())
					last = now
				}
			}
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			// A cancelled request surfaces as a read error on the
			// closed body; report it as cancellation, not failure.
			if cerr := ctx.Err(); cerr != nil {
				return acc.String(), cerr
			}
			return acc.String(), fmt.Errorf("reading stream: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return acc.String(), err
	}
	emit(acc.String())
	return acc.String(), nil
}
