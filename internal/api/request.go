package api

import (
	"net"
	"net/http"
	"strings"

	"github.com/avct/uasurfer"

	"github.com/patrickwarner/eligibleads/internal/engine"
)

// clientIP prefers the first X-Forwarded-For hop and falls back to RemoteAddr.
func clientIP(r *http.Request) net.IP {
	ipStr := r.Header.Get("X-Forwarded-For")
	if ipStr == "" {
		ipStr = r.RemoteAddr
		if host, _, err := net.SplitHostPort(ipStr); err == nil {
			ipStr = host
		}
	} else if idx := strings.Index(ipStr, ","); idx != -1 {
		ipStr = ipStr[:idx]
	}
	return net.ParseIP(strings.TrimSpace(ipStr))
}

// isBot reports whether the User-Agent belongs to a crawler.
func isBot(r *http.Request) bool {
	ua := r.Header.Get("User-Agent")
	if ua == "" {
		return false
	}
	return uasurfer.Parse(ua).IsBot()
}

// resolveLocation fills a missing country and region from the client IP.
// A region is only taken from GeoIP together with its country.
func (s *Server) resolveLocation(r *http.Request, req *engine.ServeRequest) {
	if s.GeoIP == nil || req.UserModel.Country != "" {
		return
	}
	loc := s.GeoIP.Lookup(clientIP(r))
	req.UserModel.Country = loc.Country
	if req.UserModel.Region == "" {
		req.UserModel.Region = loc.Region
	}
}
