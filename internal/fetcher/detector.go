package fetcher

import "strings"

// Detector recognises captcha and block pages by substring. Matching is
// case-insensitive; the list is configuration, not code.
type Detector struct {
	indicators []string
}

func NewDetector(indicators []string) *Detector {
	d := &Detector{}
	for _, indicator := range indicators {
		indicator = strings.ToLower(strings.TrimSpace(indicator))
		if indicator != "" {
			d.indicators = append(d.indicators, indicator)
		}
	}
	return d
}

// Detect returns the first indicator found in body.
func (d *Detector) Detect(body string) (string, bool) {
	if d == nil || len(d.indicators) == 0 || body == "" {
		return "", false
	}

	lower := strings.ToLower(body)
	for _, indicator := range d.indicators {
		if strings.Contains(lower, indicator) {
			return indicator, true
		}
	}
	return "", false
}
