package bizhours

import (
	"strings"
	"time"
)

// Outbound calls are only permitted during the customer's local daytime.
// Regions map to IANA zones; customers we can't place default to Eastern.

const DefaultZone = "America/New_York"

// DefaultWindow is 9 AM (inclusive) to 8 PM (exclusive) local time.
var DefaultWindow = Window{OpenHour: 9, CloseHour: 20}

// Window is a daily local-time range during which calls may be placed.
type Window struct {
	OpenHour  int
	CloseHour int
}

// stateZones maps US state/DC codes to IANA timezone identifiers.
var stateZones = map[string]string{
	// Eastern
	"CT": "America/New_York", "DE": "America/New_York", "FL": "America/New_York",
	"GA": "America/New_York", "IN": "America/New_York", "KY": "America/New_York",
	"ME": "America/New_York", "MD": "America/New_York", "MA": "America/New_York",
	"MI": "America/New_York", "NH": "America/New_York", "NJ": "America/New_York",
	"NY": "America/New_York", "NC": "America/New_York", "OH": "America/New_York",
	"PA": "America/New_York", "RI": "America/New_York", "SC": "America/New_York",
	"VT": "America/New_York", "VA": "America/New_York", "WV": "America/New_York",
	"DC": "America/New_York",
	// Central
	"AL": "America/Chicago", "AR": "America/Chicago", "IL": "America/Chicago",
	"IA": "America/Chicago", "KS": "America/Chicago", "LA": "America/Chicago",
	"MN": "America/Chicago", "MS": "America/Chicago", "MO": "America/Chicago",
	"NE": "America/Chicago", "ND": "America/Chicago", "OK": "America/Chicago",
	"SD": "America/Chicago", "TN": "America/Chicago", "TX": "America/Chicago",
	"WI": "America/Chicago",
	// Mountain (AZ does not observe DST)
	"AZ": "America/Phoenix", "CO": "America/Denver", "ID": "America/Boise",
	"MT": "America/Denver", "NM": "America/Denver", "UT": "America/Denver",
	"WY": "America/Denver",
	// Pacific
	"CA": "America/Los_Angeles", "NV": "America/Los_Angeles",
	"OR": "America/Los_Angeles", "WA": "America/Los_Angeles",
	// Other
	"AK": "America/Anchorage", "HI": "Pacific/Honolulu",
}

// ZoneForRegion maps a US state/province code to an IANA timezone.
// Unknown or empty regions fall back to DefaultZone. Never fails.
func ZoneForRegion(region string) string {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		return DefaultZone
	}
	if zone, ok := stateZones[region]; ok {
		return zone
	}
	return DefaultZone
}

// Zones returns a copy of the region table, for diagnostics and tests.
func Zones() map[string]string {
	out := make(map[string]string, len(stateZones))
	for k, v := range stateZones {
		out[k] = v
	}
	return out
}

// loadZone resolves an IANA zone name, falling back to DefaultZone and
// finally UTC so callers never have to handle a load failure.
func loadZone(zone string) *time.Location {
	if loc, err := time.LoadLocation(zone); err == nil {
		return loc
	}
	if loc, err := time.LoadLocation(DefaultZone); err == nil {
		return loc
	}
	return time.UTC
}

// Within reports whether now falls inside the calling window in the given
// zone. Open is inclusive, close exclusive.
func (w Window) Within(zone string, now time.Time) bool {
	hour := now.In(loadZone(zone)).Hour()
	return hour >= w.OpenHour && hour < w.CloseHour
}

// NextStart returns the next instant the calling window opens in the given
// zone: today's open hour if now is before it, otherwise tomorrow's.
// Computed with wall-clock values in the target location so DST transitions
// land on the real local open hour.
func (w Window) NextStart(zone string, now time.Time) time.Time {
	loc := loadZone(zone)
	local := now.In(loc)

	next := time.Date(local.Year(), local.Month(), local.Day(), w.OpenHour, 0, 0, 0, loc)
	if local.Hour() >= w.OpenHour {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
