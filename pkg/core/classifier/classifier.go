// Package classifier derives the analytics dimensions of a redirect event.
// Classification never fails: anything that cannot be derived degrades to
// domain.UnknownCountry, domain.DirectReferrer or domain.DeviceOther.
package classifier

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/ports"
)

// DefaultGeoTimeout bounds a single geolocation lookup.
const DefaultGeoTimeout = 50 * time.Millisecond

type Classifier struct {
	geo     ports.GeoLocator
	timeout time.Duration
	logger  *slog.Logger
}

// New returns a Classifier. geo may be nil, in which case only the
// country hint of a click is used.
func New(geo ports.GeoLocator, timeout time.Duration, logger *slog.Logger) *Classifier {
	if timeout <= 0 {
		timeout = DefaultGeoTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{geo: geo, timeout: timeout, logger: logger}
}

// Classify implements ports.Classifier.
func (c *Classifier) Classify(ctx context.Context, raw domain.RawClick) domain.ClassifiedClick {
	at := raw.At
	if at.IsZero() {
		at = time.Now()
	}
	return domain.ClassifiedClick{
		Day:          domain.TruncateDay(at),
		Country:      c.country(ctx, raw),
		ReferrerHost: ReferrerHost(raw.Referer),
		Device:       DeviceClass(raw.UserAgent),
	}
}

func (c *Classifier) country(ctx context.Context, raw domain.RawClick) string {
	if code, ok := normalizeCountry(raw.CountryHint); ok {
		return code
	}
	if c.geo == nil || raw.IP == "" {
		return domain.UnknownCountry
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		code string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		code, err := c.geo.Country(ctx, raw.IP)
		ch <- result{code, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			c.logger.Debug("geo lookup failed", "ip", raw.IP, "error", res.err)
			return domain.UnknownCountry
		}
		if code, ok := normalizeCountry(res.code); ok {
			return code
		}
		return domain.UnknownCountry
	case <-ctx.Done():
		c.logger.Warn("geo lookup timed out", "ip", raw.IP, "timeout", c.timeout)
		return domain.UnknownCountry
	}
}

// normalizeCountry accepts two ASCII letters. Cloudflare's XX (unknown)
// and T1 (Tor) are not countries.
func normalizeCountry(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 || code == "XX" {
		return "", false
	}
	for i := 0; i < 2; i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return "", false
		}
	}
	return code, true
}

// ReferrerHost reduces a Referer header to its lowercase hostname.
func ReferrerHost(referer string) string {
	referer = strings.TrimSpace(referer)
	if referer == "" {
		return domain.DirectReferrer
	}
	if !strings.Contains(referer, "://") {
		referer = "http://" + strings.TrimPrefix(referer, "//")
	}
	u, err := url.Parse(referer)
	if err != nil {
		return domain.DirectReferrer
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return domain.DirectReferrer
	}
	return host
}
