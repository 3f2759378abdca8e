package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/maltedev/amazonlight/internal/marketplace"
	"github.com/maltedev/amazonlight/internal/models"
)

// PageFetcher scrapes the public product page. It optionally loads the
// storefront root first so the product request carries session cookies.
type PageFetcher struct {
	sessions Sessions
	retry    *retrier
	warmUp   bool
	header   http.Header
	logger   *slog.Logger
}

func NewPageFetcher(sessions Sessions, opts Options) *PageFetcher {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Logger = opts.Logger.With("component", "page_fetcher")

	return &PageFetcher{
		sessions: sessions,
		retry:    newRetrier(SourcePage, opts),
		warmUp:   opts.WarmUp,
		header:   BrowserHeaders(opts.UserAgent, opts.AcceptLanguage),
		logger:   opts.Logger,
	}
}

// PageURL is the product page for id on host.
func PageURL(host, productID string) string {
	return fmt.Sprintf("https://%s/dp/%s", host, url.PathEscape(productID))
}

func (f *PageFetcher) Fetch(ctx context.Context, req models.FetchRequest) Outcome {
	host := marketplace.HostFor(req.Country)

	session, err := f.sessions.NewSession(ctx)
	if err != nil {
		f.logger.Error("failed to open session", "asin", req.ProductID, "error", err)
		return f.retry.finish(Terminal(SourcePage, ReasonFetchFailed, 0, err), 0)
	}
	defer session.Close()

	if f.warmUp {
		root := fmt.Sprintf("https://%s/", host)
		if _, err := session.Get(ctx, root, f.header); err != nil {
			f.logger.Debug("warm-up request failed", "url", root, "error", err)
		}
	}

	pageURL := PageURL(host, req.ProductID)
	f.logger.Info("fetching product page", "asin", req.ProductID, "country", req.Country, "url", pageURL)

	return f.retry.run(ctx, func(ctx context.Context) (*Response, error) {
		return session.Get(ctx, pageURL, f.header)
	})
}
