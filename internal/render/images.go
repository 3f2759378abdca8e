package render

import (
	"net/url"
	"strconv"
	"strings"
)

// ImageURLBuilder turns a scraped image URL into the URL embedded in the
// widget. Implementations may route it through a resizing proxy.
type ImageURLBuilder interface {
	ImageURL(src string, width, height int) string
}

// ImageURLFunc adapts a function to ImageURLBuilder.
type ImageURLFunc func(src string, width, height int) string

func (f ImageURLFunc) ImageURL(src string, width, height int) string {
	return f(src, width, height)
}

// DirectImages embeds the scraped URL unchanged.
type DirectImages struct{}

func (DirectImages) ImageURL(src string, _, _ int) string {
	return src
}

// ProxyImages rewrites images to a host-side resize endpoint of the form
// base?w=W&h=H&media=<escaped source>.
type ProxyImages struct {
	Base string
}

func (p ProxyImages) ImageURL(src string, width, height int) string {
	if src == "" {
		return ""
	}

	q := url.Values{}
	q.Set("w", strconv.Itoa(width))
	q.Set("h", strconv.Itoa(height))
	q.Set("media", src)

	sep := "?"
	if strings.Contains(p.Base, "?") {
		sep = "&"
	}
	return p.Base + sep + q.Encode()
}

// ImagesFor returns ProxyImages for a non-empty proxy base and DirectImages
// otherwise.
func ImagesFor(proxyBase string) ImageURLBuilder {
	if proxyBase == "" {
		return DirectImages{}
	}
	return ProxyImages{Base: proxyBase}
}
