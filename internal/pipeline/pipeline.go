// Package pipeline runs one directive through parse, fetch, extract and
// render. A run always produces markup; failures degrade to the plain link
// and are handed to a report.Reporter.
package pipeline

import (
	"context"
	"html/template"
	"log/slog"

	"github.com/maltedev/amazonlight/internal/directive"
	"github.com/maltedev/amazonlight/internal/fetcher"
	"github.com/maltedev/amazonlight/internal/marketplace"
	"github.com/maltedev/amazonlight/internal/metrics"
	"github.com/maltedev/amazonlight/internal/models"
	"github.com/maltedev/amazonlight/internal/parser"
	"github.com/maltedev/amazonlight/internal/render"
	"github.com/maltedev/amazonlight/internal/report"
)

// Render kinds recorded in metrics.
const (
	KindWidget   = "widget"
	KindFallback = "fallback"
	KindInvalid  = "invalid"
)

// Settings is satisfied by config.Resolver.
type Settings interface {
	directive.Settings
	String(ctx context.Context, key, defaultValue string) string
}

type Options struct {
	Settings Settings
	Fetcher  fetcher.Fetcher
	Renderer *render.Renderer
	Reporter report.Reporter
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

type Pipeline struct {
	settings Settings
	fetcher  fetcher.Fetcher
	renderer *render.Renderer
	reporter report.Reporter
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func New(opts Options) *Pipeline {
	if opts.Renderer == nil {
		opts.Renderer = render.NewRenderer(render.Options{})
	}
	if opts.Reporter == nil {
		opts.Reporter = report.Discard{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pipeline{
		settings: opts.Settings,
		fetcher:  opts.Fetcher,
		renderer: opts.Renderer,
		reporter: opts.Reporter,
		metrics:  opts.Metrics,
		logger:   opts.Logger.With("component", "pipeline"),
	}
}

// Result is the rendered markup for one directive. Record is nil when the
// directive fell back to the plain link.
type Result struct {
	HTML     string                `json:"html"`
	Fallback bool                  `json:"fallback"`
	Request  models.FetchRequest   `json:"request"`
	Record   *models.ProductRecord `json:"record,omitempty"`
	Stage    string                `json:"stage,omitempty"`
	Reason   string                `json:"reason,omitempty"`
}

// Partner returns the affiliate id configured for country, or "".
func (p *Pipeline) Partner(ctx context.Context, country string) string {
	if p.settings == nil {
		return ""
	}
	return p.settings.String(ctx, "partner_"+country, "")
}

// Defaults returns the directive defaults currently in effect.
func (p *Pipeline) Defaults(ctx context.Context) directive.Defaults {
	return directive.ResolveDefaults(ctx, p.settings)
}

// Render expands a single directive token, with or without its braces.
func (p *Pipeline) Render(ctx context.Context, token string) Result {
	req, err := directive.Parse(token, p.Defaults(ctx))
	if err != nil {
		p.logger.Warn("invalid directive", "token", token, "error", err)
		p.metrics.IncRender(KindInvalid)
		p.report(ctx, token, req, report.StageParse, err.Error(), "invalid", 0)
		return Result{
			HTML:     template.HTMLEscapeString(token),
			Fallback: true,
			Stage:    report.StageParse,
			Reason:   err.Error(),
		}
	}

	partner := p.Partner(ctx, req.Country)
	logger := p.logger.With("asin", req.ProductID, "country", req.Country)

	outcome := p.fetch(ctx, req)
	if !outcome.OK() {
		err := outcome.Err()
		logger.Error("fetch failed, rendering fallback link",
			"source", outcome.Source,
			"reason", outcome.Reason,
			"attempts", outcome.Attempts,
			"error", err)
		p.report(ctx, token, req, report.StageFetch, outcome.Reason, fetcher.ErrorLabel(err), outcome.Attempts)
		return p.fallback(req, partner, report.StageFetch, outcome.Reason)
	}

	record, err := parser.NewExtractor(parser.TableFor(outcome.Source)).Extract(outcome.HTML, parser.Target{
		ProductID:  req.ProductID,
		ProductURL: marketplace.ProductURL(req.Country, req.ProductID, partner),
	})
	if err != nil {
		logger.Error("extraction failed, rendering fallback link", "source", outcome.Source, "error", err)
		p.report(ctx, token, req, report.StageExtract, err.Error(), "extraction", outcome.Attempts)
		return p.fallback(req, partner, report.StageExtract, err.Error())
	}

	out, err := p.renderer.Render(record, req)
	if err != nil || out.Fallback {
		reason := "no record"
		if err != nil {
			reason = err.Error()
		}
		logger.Error("render failed, rendering fallback link", "reason", reason)
		p.report(ctx, token, req, report.StageRender, reason, "render", outcome.Attempts)
		return p.fallback(req, partner, report.StageRender, reason)
	}

	logger.Debug("widget rendered", "source", outcome.Source, "attempts", outcome.Attempts)
	p.metrics.IncRender(KindWidget)

	return Result{HTML: out.HTML, Request: req, Record: record}
}

// ExpandDocument replaces every directive in doc with its rendered markup.
// Occurrences are rendered one after another and never deduplicated.
func (p *Pipeline) ExpandDocument(ctx context.Context, doc string) string {
	return directive.ReplaceAll(doc, func(token string) string {
		return p.Render(ctx, token).HTML
	})
}

func (p *Pipeline) fetch(ctx context.Context, req models.FetchRequest) fetcher.Outcome {
	if p.fetcher == nil {
		return fetcher.Terminal("", fetcher.ReasonFetchFailed, 0, nil)
	}
	return p.fetcher.Fetch(ctx, req)
}

func (p *Pipeline) fallback(req models.FetchRequest, partner, stage, reason string) Result {
	p.metrics.IncRender(KindFallback)
	return Result{
		HTML:     p.renderer.Fallback(req, partner),
		Fallback: true,
		Request:  req,
		Stage:    stage,
		Reason:   reason,
	}
}

func (p *Pipeline) report(ctx context.Context, token string, req models.FetchRequest, stage, reason, kind string, attempts int) {
	f := report.NewFailure(stage, reason)
	f.Token = token
	f.ProductID = req.ProductID
	f.Country = req.Country
	f.Kind = kind
	f.Attempts = attempts

	if err := p.reporter.Report(ctx, f); err != nil {
		p.logger.Warn("failed to report directive failure", "report_id", f.ID, "error", err)
	}
}
