// Package geoip resolves a client IP to the country and subdivision used by
// subdivision targeting.
package geoip

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// Location is an ISO 3166 country and the ISO 3166-2 subdivision suffix
// (e.g. "US" and "CA"). Either may be empty.
type Location struct {
	Country string `json:"country,omitempty"`
	Region  string `json:"region,omitempty"`
}

// Resolver is implemented by GeoIP and by test doubles.
type Resolver interface {
	Lookup(ip net.IP) Location
}

// GeoIP looks up locations in a MaxMind City/Country DB or a JSON CIDR list.
type GeoIP struct {
	db       *geoip2.Reader
	fallback []record
}

type record struct {
	net *net.IPNet
	loc Location
}

// Init opens the database at path. Files that are not MaxMind databases are
// parsed as a JSON array of {"net","country","region"} entries.
func Init(path string) (*GeoIP, error) {
	db, err := geoip2.Open(path)
	if err == nil {
		return &GeoIP{db: db}, nil
	}

	data, rerr := os.ReadFile(path)
	if rerr != nil {
		return nil, fmt.Errorf("open geoip db: %w", err)
	}
	g, jerr := FromJSON(data)
	if jerr != nil {
		return nil, fmt.Errorf("open geoip db: %w", err)
	}
	return g, nil
}

// FromJSON builds a resolver from a JSON CIDR list. Unparseable networks are skipped.
func FromJSON(data []byte) (*GeoIP, error) {
	var entries []struct {
		Net     string `json:"net"`
		Country string `json:"country"`
		Region  string `json:"region"`
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	g := &GeoIP{}
	for _, e := range entries {
		if _, n, perr := net.ParseCIDR(e.Net); perr == nil {
			g.fallback = append(g.fallback, record{net: n, loc: Location{
				Country: strings.ToUpper(e.Country),
				Region:  strings.ToUpper(e.Region),
			}})
		}
	}
	return g, nil
}

// Lookup returns the location for ip, or a zero Location when unknown.
func (g *GeoIP) Lookup(ip net.IP) Location {
	if g == nil || ip == nil {
		return Location{}
	}
	if g.db != nil {
		if rec, err := g.db.City(ip); err == nil && rec.Country.IsoCode != "" {
			loc := Location{Country: rec.Country.IsoCode}
			if len(rec.Subdivisions) > 0 {
				loc.Region = rec.Subdivisions[0].IsoCode
			}
			return loc
		}
		// Country-only databases reject City lookups.
		if rec, err := g.db.Country(ip); err == nil {
			return Location{Country: rec.Country.IsoCode}
		}
	}
	for _, r := range g.fallback {
		if r.net.Contains(ip) {
			return r.loc
		}
	}
	return Location{}
}

// Close releases resources associated with the database.
func (g *GeoIP) Close() error {
	if g != nil && g.db != nil {
		return g.db.Close()
	}
	return nil
}
