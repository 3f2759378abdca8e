// Package report tells the document author why a directive rendered as a
// plain link. Reporting never affects what the reader sees.
package report

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Stages at which a pipeline run can fall back.
const (
	StageParse   = "parse"
	StageFetch   = "fetch"
	StageExtract = "extract"
	StageRender  = "render"
)

// Failure describes one directive that degraded to the fallback link.
type Failure struct {
	ID        uuid.UUID `json:"id"`
	Token     string    `json:"token"`
	ProductID string    `json:"product_id"`
	Country   string    `json:"country"`
	Stage     string    `json:"stage"`
	Kind      string    `json:"kind"`
	Reason    string    `json:"reason"`
	Attempts  int       `json:"attempts"`
	Timestamp time.Time `json:"timestamp"`
}

// NewFailure stamps a failure with a fresh id and the current time.
func NewFailure(stage, reason string) Failure {
	return Failure{
		ID:        uuid.New(),
		Stage:     stage,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
}

type Reporter interface {
	Report(ctx context.Context, f Failure) error
}

// LogReporter writes failures to the structured log.
type LogReporter struct {
	logger *slog.Logger
}

func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{logger: logger.With("component", "failure_report")}
}

func (r *LogReporter) Report(_ context.Context, f Failure) error {
	r.logger.Warn("directive rendered as fallback link",
		"report_id", f.ID,
		"asin", f.ProductID,
		"country", f.Country,
		"stage", f.Stage,
		"kind", f.Kind,
		"reason", f.Reason,
		"attempts", f.Attempts,
	)
	return nil
}

// Multi fans a failure out to several reporters and joins their errors.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, f Failure) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Report(ctx, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every failure.
type Discard struct{}

func (Discard) Report(context.Context, Failure) error { return nil }
