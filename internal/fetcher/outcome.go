package fetcher

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrFetchFailed         = errors.New("fetch failed")
	ErrAntiBot             = errors.New("anti-bot triggered")
	ErrDelegateUnavailable = errors.New("delegate unavailable")
)

// Reasons carried by failed outcomes.
const (
	ReasonFetchFailed         = "fetch failed"
	ReasonAntiBot             = "anti-bot triggered"
	ReasonDelegateUnavailable = "delegate unavailable"
	ReasonCanceled            = "canceled"
)

type Status int

const (
	StatusSuccess Status = iota
	StatusTransient
	StatusTerminal
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusTransient:
		return "transient"
	case StatusTerminal:
		return "terminal"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the result of one Fetch call. Source names the fetcher that
// produced the HTML so the caller can pick the matching extraction table.
type Outcome struct {
	Status     Status
	HTML       string
	Reason     string
	Source     string
	Attempts   int
	StatusCode int
	cause      error
}

func Success(source, html string, attempts int) Outcome {
	return Outcome{Status: StatusSuccess, HTML: html, Source: source, Attempts: attempts}
}

func Transient(source, reason string, cause error) Outcome {
	return Outcome{Status: StatusTransient, Reason: reason, Source: source, cause: cause}
}

func Terminal(source, reason string, attempts int, cause error) Outcome {
	return Outcome{Status: StatusTerminal, Reason: reason, Source: source, Attempts: attempts, cause: cause}
}

func (o Outcome) OK() bool {
	return o.Status == StatusSuccess
}

// Err returns nil for a success and otherwise an error matching one of the
// package sentinels through errors.Is.
func (o Outcome) Err() error {
	if o.OK() {
		return nil
	}

	sentinel := ErrFetchFailed
	switch o.Reason {
	case ReasonAntiBot:
		sentinel = ErrAntiBot
	case ReasonDelegateUnavailable:
		sentinel = ErrDelegateUnavailable
	}

	switch {
	case o.cause == nil:
		return fmt.Errorf("%s after %d attempts: %w", o.Status, o.Attempts, sentinel)
	case errors.Is(o.cause, sentinel):
		return fmt.Errorf("%s after %d attempts: %w", o.Status, o.Attempts, o.cause)
	default:
		return fmt.Errorf("%s after %d attempts: %w: %w", o.Status, o.Attempts, sentinel, o.cause)
	}
}

// ErrorLabel classifies err into a short label for metrics and failure reports.
func ErrorLabel(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrAntiBot):
		return "anti_bot"
	case errors.Is(err, ErrDelegateUnavailable):
		return "delegate_unavailable"
	case errors.Is(err, ErrFetchFailed):
		return "fetch_failed"
	default:
		return "other"
	}
}
