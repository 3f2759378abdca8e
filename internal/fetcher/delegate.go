package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maltedev/amazonlight/internal/models"
)

// DelegatingFetcher hands the request to another registered fetcher, looked
// up by name on every call so the sibling can be registered later.
type DelegatingFetcher struct {
	target   string
	registry *Registry
	logger   *slog.Logger
}

func NewDelegatingFetcher(target string, registry *Registry, logger *slog.Logger) *DelegatingFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &DelegatingFetcher{
		target:   target,
		registry: registry,
		logger:   logger.With("component", "delegating_fetcher"),
	}
}

func (f *DelegatingFetcher) Fetch(ctx context.Context, req models.FetchRequest) Outcome {
	var delegate Fetcher
	ok := false
	if f.registry != nil {
		delegate, ok = f.registry.Lookup(f.target)
	}
	if !ok || delegate == f {
		f.logger.Error("delegate not registered", "target", f.target, "asin", req.ProductID)
		return Terminal(SourceDelegate, ReasonDelegateUnavailable, 0,
			fmt.Errorf("%w: %q", ErrDelegateUnavailable, f.target))
	}

	return delegate.Fetch(ctx, req)
}
