package plan

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// localLayouts are accepted without a zone and read in the caller's location.
var localLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// ParseDate reads a timestamp in one of the accepted forms:
//
//	2024-03-01T12:00:00+01:00   RFC 3339
//	2024-03-01 12:00:00         local time in loc
//	@1709290800                 epoch seconds
//	@1709290800 +0100           epoch seconds with a zone offset
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if loc == nil {
		loc = time.Local
	}

	if strings.HasPrefix(s, "@") {
		return parseEpoch(s[1:])
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q (use RFC 3339, \"2006-01-02 15:04:05\" or @<epoch>)", s)
}

func parseEpoch(s string) (time.Time, error) {
	secs, zone, hasZone := strings.Cut(s, " ")
	n, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch %q", secs)
	}
	t := time.Unix(n, 0)
	if !hasZone {
		return t.UTC(), nil
	}

	offset, err := time.Parse("-0700", strings.TrimSpace(zone))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid zone offset %q", zone)
	}
	_, secsEast := offset.Zone()
	return t.In(time.FixedZone("", secsEast)), nil
}
