package extracthtml

import (
	"fmt"
	"net/url"
	"strings"

	"statscrape/internal/dataset"
)

// ResolveHref resolves href against base, returning an absolute URL string.
// If href is invalid, it is returned unchanged.
func ResolveHref(base *url.URL, href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}

// ResolveLinks reads the string column field of ds and resolves every
// non-empty value against baseURL, preserving row order. It is how a pipeline
// follows per-row links (a player's scouting page from a comparison table).
func ResolveLinks(ds *dataset.Dataset, field, baseURL string) ([]string, error) {
	hrefs, err := ds.Strings(field)
	if err != nil {
		return nil, err
	}

	var base *url.URL
	if strings.TrimSpace(baseURL) != "" {
		base, err = url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
		}
	}

	out := make([]string, 0, len(hrefs))
	for _, h := range hrefs {
		if strings.TrimSpace(h) == "" {
			continue
		}
		out = append(out, ResolveHref(base, h))
	}
	return out, nil
}
