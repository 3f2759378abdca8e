package marketplace

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultCountry is used whenever a directive names no country or an unsupported one.
const DefaultCountry = "us"

// Entry describes one Amazon storefront.
type Entry struct {
	Country    string
	Host       string
	Region     string
	WidgetHost string
	LinkLabel  string
}

var entries = map[string]Entry{
	"us": {Country: "us", Host: "www.amazon.com", Region: "US", WidgetHost: "ws-na.amazon-adsystem.com", LinkLabel: "Amazon"},
	"ca": {Country: "ca", Host: "www.amazon.ca", Region: "CA", WidgetHost: "ws-na.amazon-adsystem.com", LinkLabel: "Amazon"},
	"de": {Country: "de", Host: "www.amazon.de", Region: "DE", WidgetHost: "ws-eu.amazon-adsystem.com", LinkLabel: "Amazon.de"},
	"gb": {Country: "gb", Host: "www.amazon.co.uk", Region: "GB", WidgetHost: "ws-eu.amazon-adsystem.com", LinkLabel: "Amazon"},
	"fr": {Country: "fr", Host: "www.amazon.fr", Region: "FR", WidgetHost: "ws-eu.amazon-adsystem.com", LinkLabel: "Amazon"},
	"jp": {Country: "jp", Host: "www.amazon.co.jp", Region: "JP", WidgetHost: "ws-fe.amazon-adsystem.com", LinkLabel: "Amazon"},
}

// order keeps Countries stable for callers that iterate the registry.
var order = []string{"us", "ca", "de", "gb", "fr", "jp"}

// Aliases maps legacy country codes to their canonical registry key.
var Aliases = map[string]string{
	"uk": "gb",
}

// Countries returns the supported country codes.
func Countries() []string {
	out := make([]string, len(order))
	copy(out, order)
	return out
}

// Supported reports whether code is a canonical registry key.
func Supported(code string) bool {
	_, ok := entries[code]
	return ok
}

// Normalize maps any input to a supported country. It never fails: aliases are
// resolved and unknown codes collapse to DefaultCountry.
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if canonical, ok := Aliases[code]; ok {
		code = canonical
	}
	if !Supported(code) {
		return DefaultCountry
	}
	return code
}

// Lookup returns the entry for a normalized country code.
// Calling it with an unsupported code is a programming error and panics.
func Lookup(code string) Entry {
	e, ok := entries[code]
	if !ok {
		panic(fmt.Sprintf("marketplace: unsupported country %q", code))
	}
	return e
}

// HostFor returns the storefront host for a normalized country code.
func HostFor(code string) string {
	return Lookup(code).Host
}

// ProductURL builds the public product link carrying the partner tag.
// An empty partner id is replaced by the literal "none".
func ProductURL(code, productID, partner string) string {
	if partner == "" {
		partner = "none"
	}
	return fmt.Sprintf("https://%s/dp/%s?tag=%s", HostFor(code), url.PathEscape(productID), url.QueryEscape(partner))
}
