package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Device is the fixed device category of a click.
type Device string

const (
	DeviceDesktop Device = "desktop"
	DeviceMobile  Device = "mobile"
	DeviceTablet  Device = "tablet"
	DeviceBot     Device = "bot"
	DeviceOther   Device = "other"
)

// Devices lists every device category in storage column order.
var Devices = []Device{DeviceDesktop, DeviceMobile, DeviceTablet, DeviceBot, DeviceOther}

// Valid reports whether d is one of the fixed categories.
func (d Device) Valid() bool {
	for _, v := range Devices {
		if d == v {
			return true
		}
	}
	return false
}

// Dimension is an axis clicks are broken down along.
type Dimension string

const (
	DimensionCountry  Dimension = "country"
	DimensionReferrer Dimension = "referrer"
	DimensionDevice   Dimension = "device"
)

// ParseDimension validates a dimension name. An empty name means country.
func ParseDimension(s string) (Dimension, error) {
	switch d := Dimension(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DimensionCountry, nil
	case DimensionCountry, DimensionReferrer, DimensionDevice:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDimension, s)
	}
}

// Safe defaults used when a click attribute cannot be derived.
const (
	UnknownCountry = "UNK"
	DirectReferrer = "direct"
	// OverflowLabel absorbs labels beyond a bucket's cardinality cap.
	OverflowLabel = "(other)"
)

// DayLayout is the wire and storage format of a bucket day.
const DayLayout = "2006-01-02"

// TruncateDay returns 00:00:00 UTC of t's UTC date.
func TruncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// RawClick is a redirect event before classification.
type RawClick struct {
	LinkID      string
	Slug        string
	At          time.Time
	IP          string
	Referer     string
	UserAgent   string
	CountryHint string // edge-provided ISO code, e.g. CF-IPCountry
}

// ClassifiedClick carries the dimension values of one click.
type ClassifiedClick struct {
	Day          time.Time
	Country      string
	ReferrerHost string
	Device       Device
}

// Label returns the click's label along dim.
func (c ClassifiedClick) Label(dim Dimension) string {
	switch dim {
	case DimensionCountry:
		return c.Country
	case DimensionReferrer:
		return c.ReferrerHost
	default:
		return string(c.Device)
	}
}

// DayTotal is one point of a daily series.
type DayTotal struct {
	Day   time.Time `json:"-"`
	Total int64     `json:"total"`
}

func (d DayTotal) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Day   string `json:"day"`
		Total int64  `json:"total"`
	}{d.Day.Format(DayLayout), d.Total})
}

// LabelCount is one row of a breakdown.
type LabelCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// DateRange is an inclusive range of UTC days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Days returns the number of buckets in the range.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

func (r DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		From string `json:"from"`
		To   string `json:"to"`
	}{r.Start.Format(DayLayout), r.End.Format(DayLayout)})
}

// RangeQuery is an optional [From, To] window; nil bounds take defaults.
type RangeQuery struct {
	From *time.Time
	To   *time.Time
}

// BreakdownQuery selects a dimension and row limit over a range.
type BreakdownQuery struct {
	RangeQuery
	Dimension string
	Limit     int
}

// Timeseries is the dense daily series of a link over a range.
type Timeseries struct {
	LinkID string     `json:"link_id"`
	Range  DateRange  `json:"range"`
	Series []DayTotal `json:"series"`
	Total  int64      `json:"total"`
}

// Breakdown is the top-N labels of one dimension over a range.
type Breakdown struct {
	LinkID    string       `json:"link_id"`
	Dimension Dimension    `json:"dimension"`
	Range     DateRange    `json:"range"`
	Rows      []LabelCount `json:"rows"`
}

// RankLabels orders label counts by count descending then label ascending,
// dropping zero counts. A positive limit truncates the result.
func RankLabels(counts map[string]int64, limit int) []LabelCount {
	rows := make([]LabelCount, 0, len(counts))
	for label, n := range counts {
		if n > 0 {
			rows = append(rows, LabelCount{Label: label, Count: n})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Label < rows[j].Label
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}
