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

// PartnerFunc returns the affiliate tracking id for a country, or "".
type PartnerFunc func(ctx context.Context, country string) string

// WidgetFetcher loads the legacy ad-system product widget instead of the
// product page. The widget HTML is small and rarely guarded by captchas, but
// it carries no ISBN.
type WidgetFetcher struct {
	sessions Sessions
	retry    *retrier
	partner  PartnerFunc
	header   http.Header
	logger   *slog.Logger
}

func NewWidgetFetcher(sessions Sessions, partner PartnerFunc, opts Options) *WidgetFetcher {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Logger = opts.Logger.With("component", "widget_fetcher")

	return &WidgetFetcher{
		sessions: sessions,
		retry:    newRetrier(SourceWidget, opts),
		partner:  partner,
		header:   BrowserHeaders(opts.UserAgent, opts.AcceptLanguage),
		logger:   opts.Logger,
	}
}

// WidgetURL builds the legacy widget request for one product.
func WidgetURL(entry marketplace.Entry, productID, partner string) string {
	if partner == "" {
		partner = "none"
	}

	q := url.Values{}
	q.Set("ServiceVersion", "20070822")
	q.Set("OneJS", "1")
	q.Set("Operation", "GetAdHtml")
	q.Set("MarketPlace", entry.Region)
	q.Set("source", "ss")
	q.Set("ref", "as_ss_li_til")
	q.Set("ad_type", "product_link")
	q.Set("tracking_id", partner)
	q.Set("marketplace", "amazon")
	q.Set("region", entry.Region)
	q.Set("placement", productID)
	q.Set("asins", productID)
	q.Set("show_border", "false")
	q.Set("link_opens_in_new_window", "true")

	return fmt.Sprintf("https://%s/widgets/q?%s", entry.WidgetHost, q.Encode())
}

func (f *WidgetFetcher) Fetch(ctx context.Context, req models.FetchRequest) Outcome {
	entry := marketplace.Lookup(req.Country)

	partner := ""
	if f.partner != nil {
		partner = f.partner(ctx, req.Country)
	}

	session, err := f.sessions.NewSession(ctx)
	if err != nil {
		f.logger.Error("failed to open session", "asin", req.ProductID, "error", err)
		return f.retry.finish(Terminal(SourceWidget, ReasonFetchFailed, 0, err), 0)
	}
	defer session.Close()

	widgetURL := WidgetURL(entry, req.ProductID, partner)
	f.logger.Info("fetching product widget", "asin", req.ProductID, "country", req.Country)

	return f.retry.run(ctx, func(ctx context.Context) (*Response, error) {
		return session.Get(ctx, widgetURL, f.header)
	})
}
