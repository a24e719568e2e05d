package antitargeting

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// SiteLookup answers which sites are anti-targeted for a creative set.
// Implementations return nil for unknown ids and never fail.
type SiteLookup interface {
	GetSites(creativeSetID string) []string
}

// siteKey holds the lower-cased host of a URL and its registrable domain.
type siteKey struct {
	host   string
	domain string
}

func parseSite(raw string) (siteKey, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return siteKey{}, false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return siteKey{}, false
	}
	domain := host
	if net.ParseIP(host) == nil {
		if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
			domain = d
		}
	}
	return siteKey{host: host, domain: domain}, true
}

// SameDomainOrHost reports whether a and b share a host or a registrable
// domain, ignoring case. URLs without a host never match.
func SameDomainOrHost(a, b string) bool {
	ka, ok := parseSite(a)
	if !ok {
		return false
	}
	kb, ok := parseSite(b)
	if !ok {
		return false
	}
	return ka.host == kb.host || ka.domain == kb.domain
}

// HasVisitedAntiTargetedSites reports whether any URL in history matches any
// anti-targeted site by SameDomainOrHost. Either list being empty means no match.
func HasVisitedAntiTargetedSites(history, sites []string) bool {
	if len(history) == 0 || len(sites) == 0 {
		return false
	}

	index := make(map[string]struct{}, len(sites)*2)
	for _, s := range sites {
		k, ok := parseSite(s)
		if !ok {
			continue
		}
		index[k.host] = struct{}{}
		index[k.domain] = struct{}{}
	}
	if len(index) == 0 {
		return false
	}

	for _, h := range history {
		k, ok := parseSite(h)
		if !ok {
			continue
		}
		if _, hit := index[k.host]; hit {
			return true
		}
		if _, hit := index[k.domain]; hit {
			return true
		}
	}
	return false
}
