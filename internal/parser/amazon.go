package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/amazonlight/internal/models"
)

// ErrNoTitle is the only hard extraction failure.
var ErrNoTitle = errors.New("no title")

var isbnLike = regexp.MustCompile(`^\d{10,13}$`)

// Target carries the values that come from the request rather than the page.
type Target struct {
	ProductID  string
	ProductURL string
}

// Extractor turns fetched HTML into a ProductRecord using one Table.
type Extractor struct {
	table Table
}

func NewExtractor(table Table) *Extractor {
	return &Extractor{table: table}
}

// Extract parses html and fills every field the table finds. Missing optional
// fields stay empty. It returns ErrNoTitle when neither the title selectors
// nor the fallback yield text.
func (e *Extractor) Extract(html string, target Target) (*models.ProductRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	record := &models.ProductRecord{
		ProductID:  target.ProductID,
		ProductURL: target.ProductURL,
	}

	record.Title = extractField(doc, e.table.Title)
	if record.Title == "" {
		record.Title = extractField(doc, e.table.TitleFallback)
	}
	if record.Title == "" {
		return nil, fmt.Errorf("%s table: %w", e.table.Name, ErrNoTitle)
	}

	record.Author = extractField(doc, e.table.Author)
	record.Price = extractField(doc, e.table.Price)
	record.Rating = extractField(doc, e.table.Rating)
	record.ImageURL = extractField(doc, e.table.Image)

	if len(e.table.ISBN.Selectors) == 0 {
		if isbnLike.MatchString(target.ProductID) {
			record.ISBN = target.ProductID
		}
	} else {
		record.ISBN = extractField(doc, e.table.ISBN)
	}

	return record, nil
}

func extractField(doc *goquery.Document, field Field) string {
	for _, selector := range field.Selectors {
		selection := doc.Find(selector).First()
		if selection.Length() == 0 {
			continue
		}

		var value string
		if field.Attr != "" {
			value, _ = selection.Attr(field.Attr)
		} else {
			value = selection.Text()
		}

		if value = collapseSpace(value); value != "" {
			return value
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
