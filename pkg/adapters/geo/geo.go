// Package geo provides GeoLocator implementations backed by a static
// CIDR-to-country table.
package geo

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/netip"
	"os"
	"sort"
	"strings"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/ports"
)

type entry struct {
	prefix  netip.Prefix
	country string
}

// CIDRTable answers lookups from an in-memory list of prefixes. The most
// specific matching prefix wins.
type CIDRTable struct {
	entries []entry
}

// LoadFile reads a table of "cidr,country" lines. Blank lines and lines
// starting with '#' are skipped.
func LoadFile(path string) (*CIDRTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

func Parse(r io.Reader) (*CIDRTable, error) {
	t := &CIDRTable{}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		cidr, country, ok := strings.Cut(text, ",")
		if !ok {
			return nil, fmt.Errorf("geo table line %d: expected cidr,country", line)
		}
		prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("geo table line %d: %w", line, err)
		}
		country = strings.ToUpper(strings.TrimSpace(country))
		if len(country) != 2 {
			return nil, fmt.Errorf("geo table line %d: bad country %q", line, country)
		}
		t.entries = append(t.entries, entry{prefix: prefix.Masked(), country: country})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(t.entries, func(i, j int) bool {
		return t.entries[i].prefix.Bits() > t.entries[j].prefix.Bits()
	})
	return t, nil
}

// Len returns the number of prefixes loaded.
func (t *CIDRTable) Len() int { return len(t.entries) }

func (t *CIDRTable) Country(ctx context.Context, ip string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return "", fmt.Errorf("parse ip: %w", err)
	}
	addr = addr.Unmap()
	for _, e := range t.entries {
		if e.prefix.Contains(addr) {
			return e.country, nil
		}
	}
	return "", nil
}

// Noop never resolves a country; classification falls back to edge hints.
type Noop struct{}

func (Noop) Country(context.Context, string) (string, error) { return "", nil }

var (
	_ ports.GeoLocator = (*CIDRTable)(nil)
	_ ports.GeoLocator = Noop{}
)
