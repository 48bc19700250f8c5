package vmsg

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTimestamp wraps every failure of ParseTimestamp.
var ErrInvalidTimestamp = errors.New("vmsg: invalid timestamp")

// TimestampFormat selects one of the legacy date layouts found in .vmg files.
type TimestampFormat int

const (
	// FormatCompact is the X-NOK-DT layout, e.g. 20120306T173732Z.
	FormatCompact TimestampFormat = iota
	// FormatDotted is the VBODY Date: layout, e.g. 06.03.2012 17:37:32.
	FormatDotted
)

const (
	compactBase   = "20060102T150405"
	dottedLayout  = "02.01.2006 15:04:05"
	utcOffsetZone = "+0000"
)

var compactZoneLayouts = []string{
	compactBase + "-0700",
	compactBase + "-07:00",
	compactBase + "-07",
}

func (f TimestampFormat) String() string {
	switch f {
	case FormatCompact:
		return "compact"
	case FormatDotted:
		return "dotted"
	}
	return "unknown"
}

// ParseTimestamp normalizes value under format. loc applies to layouts
// without a zone and defaults to time.Local when nil.
func ParseTimestamp(value string, format TimestampFormat, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty %s value", ErrInvalidTimestamp, format)
	}
	if loc == nil {
		loc = time.Local
	}

	switch format {
	case FormatCompact:
		return parseCompact(value)
	case FormatDotted:
		t, err := time.ParseInLocation(dottedLayout, value, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidTimestamp, value, err)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: unsupported format %d", ErrInvalidTimestamp, int(format))
}

func parseCompact(value string) (time.Time, error) {
	if len(value) <= len(compactBase) {
		return time.Time{}, fmt.Errorf("%w: %q has no zone", ErrInvalidTimestamp, value)
	}
	clock, zone := value[:len(compactBase)], value[len(compactBase):]
	zone = normalizeZone(zone)

	var lastErr error
	for _, layout := range compactZoneLayouts {
		t, err := time.Parse(layout, clock+zone)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidTimestamp, value, lastErr)
}

// normalizeZone maps the legacy zone spellings onto a numeric offset.
func normalizeZone(zone string) string {
	zone = strings.TrimSpace(zone)
	if zone == "Z" {
		return utcOffsetZone
	}
	for _, prefix := range []string{"GMT", "UTC"} {
		if rest, ok := strings.CutPrefix(zone, prefix); ok {
			if rest == "" {
				return utcOffsetZone
			}
			return rest
		}
	}
	return zone
}
