package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const DefaultStream = "stream:amazonlight_failures"

// RedisClient is the subset of *redis.Client used for publishing.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

// StreamReporter appends failures to a Redis stream for whoever maintains
// the documents.
type StreamReporter struct {
	redis  RedisClient
	stream string
	maxLen int64
	logger *slog.Logger
}

func NewStreamReporter(client RedisClient, stream string, logger *slog.Logger) *StreamReporter {
	if stream == "" {
		stream = DefaultStream
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamReporter{
		redis:  client,
		stream: stream,
		maxLen: 10000,
		logger: logger.With("component", "stream_reporter"),
	}
}

func (r *StreamReporter) Report(ctx context.Context, f Failure) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal failure: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data":      string(data),
			"id":        f.ID.String(),
			"asin":      f.ProductID,
			"country":   f.Country,
			"stage":     f.Stage,
			"kind":      f.Kind,
			"timestamp": fmt.Sprintf("%d", f.Timestamp.UnixNano()),
		},
	}

	entryID, err := r.redis.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	r.logger.Debug("failure report published", "stream", r.stream, "entry_id", entryID, "report_id", f.ID)
	return nil
}

func (r *StreamReporter) Close() error {
	return r.redis.Close()
}
