// Package directive turns the compact inline syntax
//
//	{{amazon>[country:]productId[ WxH][ noprice|price]}}
//
// into a models.FetchRequest.
package directive

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/maltedev/amazonlight/internal/marketplace"
	"github.com/maltedev/amazonlight/internal/models"
)

var ErrEmptyProductID = errors.New("directive has no product id")

// Built-in defaults used when no settings source has a value.
const (
	DefaultImageWidth  = 120
	DefaultImageHeight = 160
	DefaultShowPrice   = true
)

var (
	// Pattern matches one directive occurrence inside a document.
	Pattern = regexp.MustCompile(`\{\{amazon>([\w:\- =]+)\}\}`)

	sizePattern      = regexp.MustCompile(`(?i)(\d+)x(\d+)`)
	noPricePattern   = regexp.MustCompile(`(?i)noprice`)
	showPricePattern = regexp.MustCompile(`(?i)(show)?price`)
)

// Defaults are the per-site values a directive can override.
type Defaults struct {
	ImageWidth  int
	ImageHeight int
	ShowPrice   bool
}

// Settings is satisfied by config.Resolver.
type Settings interface {
	Int(ctx context.Context, key string, defaultValue int) int
	Bool(ctx context.Context, key string, defaultValue bool) bool
}

// ResolveDefaults reads imgw, imgh and showprice from s, falling back to the
// built-in values for anything missing or invalid.
func ResolveDefaults(ctx context.Context, s Settings) Defaults {
	d := Defaults{
		ImageWidth:  DefaultImageWidth,
		ImageHeight: DefaultImageHeight,
		ShowPrice:   DefaultShowPrice,
	}
	if s == nil {
		return d
	}

	if w := s.Int(ctx, "imgw", d.ImageWidth); w > 0 {
		d.ImageWidth = w
	}
	if h := s.Int(ctx, "imgh", d.ImageHeight); h > 0 {
		d.ImageHeight = h
	}
	d.ShowPrice = s.Bool(ctx, "showprice", d.ShowPrice)

	return d
}

// Parse builds a FetchRequest from the inside of a directive, e.g.
// "de:B001 400x300 noprice". The country is always normalized, never rejected.
func Parse(token string, defaults Defaults) (models.FetchRequest, error) {
	token = strings.TrimSpace(Strip(token))

	head, more := cut(token)
	country, productID, found := strings.Cut(head, ":")
	if !found || productID == "" {
		productID = country
		country = marketplace.DefaultCountry
	}

	if productID == "" {
		return models.FetchRequest{}, ErrEmptyProductID
	}

	req := models.FetchRequest{
		Country:     marketplace.Normalize(country),
		ProductID:   productID,
		ImageWidth:  defaults.ImageWidth,
		ImageHeight: defaults.ImageHeight,
		ShowPrice:   defaults.ShowPrice,
	}

	applyModifiers(&req, more)

	return req, nil
}

// applyModifiers checks noprice before (show)price, so a remainder containing
// both resolves to the first match. "noprice" also contains "price"; the order
// is what makes it win.
func applyModifiers(req *models.FetchRequest, more string) {
	if more == "" {
		return
	}

	if m := sizePattern.FindStringSubmatch(more); m != nil {
		w, errW := strconv.Atoi(m[1])
		h, errH := strconv.Atoi(m[2])
		if errW == nil && errH == nil && w > 0 && h > 0 {
			req.ImageWidth = w
			req.ImageHeight = h
		}
	}

	if noPricePattern.MatchString(more) {
		req.ShowPrice = false
	} else if showPricePattern.MatchString(more) {
		req.ShowPrice = true
	}
}

// Strip removes the {{amazon> ... }} wrapper if present.
func Strip(s string) string {
	s = strings.TrimSpace(s)
	if m := Pattern.FindStringSubmatch(s); m != nil && m[0] == s {
		return m[1]
	}
	return strings.TrimPrefix(s, "amazon>")
}

// ReplaceAll calls fn for every directive in doc, in document order, and
// substitutes its result. Repeated directives are expanded independently.
func ReplaceAll(doc string, fn func(token string) string) string {
	return Pattern.ReplaceAllStringFunc(doc, func(match string) string {
		return fn(Pattern.FindStringSubmatch(match)[1])
	})
}

// cut splits at the first run of whitespace.
func cut(s string) (string, string) {
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}
