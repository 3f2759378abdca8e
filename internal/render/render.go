// Package render turns a ProductRecord into the product widget markup, or
// into a plain marketplace link when no record could be obtained.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/maltedev/amazonlight/internal/marketplace"
	"github.com/maltedev/amazonlight/internal/models"
)

// ErrInvalidRecord is returned for a record that lacks a title or link.
var ErrInvalidRecord = errors.New("invalid product record")

var widgetTemplate = template.Must(template.New("widget").Parse(
	`<div class="amazon">` +
		`<a href="{{.URL}}"{{if .Target}} target="{{.Target}}" rel="noopener"{{end}}>` +
		`<img src="{{.Image}}" width="{{.Width}}" height="{{.Height}}" alt="" />` +
		`</a>` +
		`<div class="amazon_title"><a href="{{.URL}}"{{if .Target}} target="{{.Target}}" rel="noopener"{{end}}>{{.Title}}</a></div>` +
		`{{if .Author}}<div class="amazon_author">{{.Author}}</div>{{end}}` +
		`{{if .ISBN}}<div class="amazon_isbn">{{.ISBN}}</div>{{end}}` +
		`{{if .Price}}<div class="amazon_price">{{.Price}}</div>{{end}}` +
		`</div>`))

var fallbackTemplate = template.Must(template.New("fallback").Parse(
	`<a href="{{.URL}}" class="interwiki {{.Class}}" title="{{.URL}}"` +
		`{{if .Target}} target="{{.Target}}" rel="noopener"{{end}}>{{.Label}}</a>`))

// Outcome is either widget markup or a request to render the fallback link.
type Outcome struct {
	Fallback bool
	HTML     string
}

type Options struct {
	LinkTarget string
	Images     ImageURLBuilder
}

type Renderer struct {
	linkTarget string
	images     ImageURLBuilder
}

func NewRenderer(opts Options) *Renderer {
	images := opts.Images
	if images == nil {
		images = DirectImages{}
	}
	return &Renderer{
		linkTarget: strings.TrimSpace(opts.LinkTarget),
		images:     images,
	}
}

type widgetData struct {
	URL    string
	Target string
	Image  string
	Width  int
	Height int
	Title  string
	Author string
	ISBN   string
	Price  string
}

// Render builds the widget for record. A nil record yields a fallback
// Outcome with no markup, and a record failing Validate yields a fallback
// Outcome with ErrInvalidRecord. The price line is present only when the request
// asks for it and the record has one.
func (r *Renderer) Render(record *models.ProductRecord, req models.FetchRequest) (Outcome, error) {
	if record == nil {
		return Outcome{Fallback: true}, nil
	}
	if problems := record.Validate(); len(problems) > 0 {
		return Outcome{Fallback: true}, fmt.Errorf("%w: %s", ErrInvalidRecord, strings.Join(problems, ", "))
	}

	data := widgetData{
		URL:    record.ProductURL,
		Target: r.linkTarget,
		Image:  r.images.ImageURL(record.ImageURL, req.ImageWidth, req.ImageHeight),
		Width:  req.ImageWidth,
		Height: req.ImageHeight,
		Title:  record.Title,
		Author: record.Author,
		ISBN:   record.ISBN,
	}
	if req.ShowPrice && record.HasPrice() {
		data.Price = record.Price
	}

	var buf bytes.Buffer
	if err := widgetTemplate.Execute(&buf, data); err != nil {
		return Outcome{Fallback: true}, fmt.Errorf("failed to render widget: %w", err)
	}

	return Outcome{HTML: buf.String()}, nil
}

// Fallback renders the plain marketplace link built only from the request.
func (r *Renderer) Fallback(req models.FetchRequest, partner string) string {
	entry := marketplace.Lookup(marketplace.Normalize(req.Country))

	class := "iw_amazon"
	if entry.Country == "de" {
		class = "iw_amazon_de"
	}

	var buf bytes.Buffer
	err := fallbackTemplate.Execute(&buf, struct {
		URL    string
		Class  string
		Target string
		Label  string
	}{
		URL:    marketplace.ProductURL(entry.Country, req.ProductID, partner),
		Class:  class,
		Target: r.linkTarget,
		Label:  entry.LinkLabel,
	})
	if err != nil {
		return template.HTMLEscapeString(entry.LinkLabel)
	}
	return buf.String()
}
