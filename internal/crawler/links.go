package crawler

import (
	"net/url"
	"regexp"
)

var anchorHref = regexp.MustCompile(`(?i)<a\s+[^>]*href\s*=\s*["']([^"'#]+)["']`)

// extractLinks pulls absolute, same-origin href targets out of raw HTML.
// base resolves relative links; cross-origin links are dropped since the
// crawler's BFS is same-origin only (spec §4.F).
func extractLinks(html string, base *url.URL) []string {
	if base == nil {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, m := range anchorHref.FindAllStringSubmatch(html, -1) {
		ref, err := url.Parse(m[1])
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		if abs.Host != base.Host {
			continue
		}
		normalized, err := NormalizeURL(abs.String())
		if err != nil {
			continue
		}
		if !seen[normalized] {
			seen[normalized] = true
			out = append(out, normalized)
		}
	}
	return out
}
