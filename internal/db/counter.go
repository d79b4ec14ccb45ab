package db

import (
	"context"
	"fmt"
	"time"
)

type windowCount struct {
	Count     int64     `json:"count"`
	WindowEnd time.Time `json:"window_end"`
}

// Incr bumps the fixed-window counter for key and returns the new count and
// the time the current window closes. An expired window restarts at one.
func (c *Client) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	row, err := queryOne[windowCount](ctx, c, `
		UPSERT type::record("window_counter", $key) SET
			count = IF window_end AND window_end > time::now() THEN count + 1 ELSE 1 END,
			window_end = IF window_end AND window_end > time::now() THEN window_end ELSE time::now() + <duration>$window END
		RETURN count, window_end`,
		map[string]any{
			"key":    key,
			"window": fmt.Sprintf("%dms", window.Milliseconds()),
		})
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("incr %s: %w", key, err)
	}
	if row == nil {
		return 0, time.Time{}, fmt.Errorf("incr %s: %w", key, ErrNoResult)
	}
	return row.Count, row.WindowEnd, nil
}
