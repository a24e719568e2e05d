package history

import (
	"net/url"
	"sort"
	"strings"
)

// Normalize reduces each URL to its origin (scheme and host, no path or
// query), drops entries that do not parse to an absolute URL, and returns the
// result sorted and de-duplicated.
func Normalize(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || u.Scheme == "" || u.Hostname() == "" {
			continue
		}
		origin := strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
		if _, ok := seen[origin]; ok {
			continue
		}
		seen[origin] = struct{}{}
		out = append(out, origin)
	}
	sort.Strings(out)
	return out
}
