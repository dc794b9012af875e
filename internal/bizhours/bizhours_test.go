package bizhours

import (
	"testing"
	"time"
)

func TestZoneForRegion_KnownStates(t *testing.T) {
	cases := map[string]string{
		"CA": "America/Los_Angeles",
		"NY": "America/New_York",
		"TX": "America/Chicago",
		"CO": "America/Denver",
		"AZ": "America/Phoenix",
		"AK": "America/Anchorage",
		"HI": "Pacific/Honolulu",
	}
	for region, want := range cases {
		if got := ZoneForRegion(region); got != want {
			t.Fatalf("ZoneForRegion(%q) = %q, want %q", region, got, want)
		}
	}
}

func TestZoneForRegion_WholeTableResolves(t *testing.T) {
	for region, want := range Zones() {
		if got := ZoneForRegion(region); got != want {
			t.Fatalf("ZoneForRegion(%q) = %q, want %q", region, got, want)
		}
		if _, err := time.LoadLocation(want); err != nil {
			t.Fatalf("zone %q for region %q does not load: %v", want, region, err)
		}
	}
}

func TestZoneForRegion_UnknownAndEmpty(t *testing.T) {
	if got := ZoneForRegion("XX"); got != DefaultZone {
		t.Fatalf("unknown region: got %q", got)
	}
	if got := ZoneForRegion(""); got != DefaultZone {
		t.Fatalf("empty region: got %q", got)
	}
	if got := ZoneForRegion(" zz "); got != DefaultZone {
		t.Fatalf("garbage region: got %q", got)
	}
}

func TestZoneForRegion_CaseInsensitive(t *testing.T) {
	if got := ZoneForRegion("ca"); got != "America/Los_Angeles" {
		t.Fatalf("got %q", got)
	}
}

// localTime builds an instant whose wall clock in zone reads the given hour.
func localTime(t *testing.T, zone string, hour int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation(zone)
	if err != nil {
		t.Fatalf("load %q: %v", zone, err)
	}
	return time.Date(2025, time.March, 3, hour, 30, 0, 0, loc)
}

func TestWindow_Within_Boundaries(t *testing.T) {
	w := DefaultWindow
	zone := "America/Chicago"

	cases := []struct {
		hour int
		want bool
	}{
		{8, false},
		{9, true}, // open is inclusive
		{19, true},
		{20, false}, // close is exclusive
		{23, false},
		{0, false},
	}
	for _, tc := range cases {
		if got := w.Within(zone, localTime(t, zone, tc.hour)); got != tc.want {
			t.Fatalf("Within at local hour %d = %v, want %v", tc.hour, got, tc.want)
		}
	}
}

func TestWindow_Within_UsesTargetZoneNotProcessZone(t *testing.T) {
	// 14:30 in New York is 11:30 in Los Angeles; both inside the window,
	// but 03:30 UTC the same instant is far outside it. The check must be
	// anchored to the requested zone.
	ny := localTime(t, "America/New_York", 21) // 21:30 ET = 18:30 PT
	if DefaultWindow.Within("America/New_York", ny) {
		t.Fatalf("21:30 ET should be outside the window")
	}
	if !DefaultWindow.Within("America/Los_Angeles", ny) {
		t.Fatalf("18:30 PT should be inside the window")
	}
}

func TestWindow_NextStart_BeforeOpen(t *testing.T) {
	zone := "America/New_York"
	now := localTime(t, zone, 3)

	next := DefaultWindow.NextStart(zone, now)
	loc, _ := time.LoadLocation(zone)
	local := next.In(loc)

	if local.Hour() != 9 {
		t.Fatalf("expected local hour 9, got %d", local.Hour())
	}
	if local.Day() != now.In(loc).Day() {
		t.Fatalf("expected same day, got %v", local)
	}
	if !next.After(now) {
		t.Fatalf("next start must be in the future")
	}
}

func TestWindow_NextStart_AfterClose(t *testing.T) {
	zone := "America/Los_Angeles"
	now := localTime(t, zone, 22)

	next := DefaultWindow.NextStart(zone, now)
	loc, _ := time.LoadLocation(zone)
	local := next.In(loc)

	if local.Hour() != 9 {
		t.Fatalf("expected local hour 9, got %d", local.Hour())
	}
	wantDay := now.In(loc).AddDate(0, 0, 1).Day()
	if local.Day() != wantDay {
		t.Fatalf("expected following day %d, got %d", wantDay, local.Day())
	}
}

func TestWindow_NextStart_MidWindowRollsToTomorrow(t *testing.T) {
	zone := "America/Chicago"
	now := localTime(t, zone, 12)

	next := DefaultWindow.NextStart(zone, now)
	loc, _ := time.LoadLocation(zone)
	if h := next.In(loc).Hour(); h != 9 {
		t.Fatalf("expected local hour 9, got %d", h)
	}
	if !next.After(now.Add(12 * time.Hour)) {
		t.Fatalf("mid-window next start should be tomorrow, got %v", next)
	}
}

func TestWindow_NextStart_BogusZoneFallsBack(t *testing.T) {
	now := time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC) // 03:00 ET
	next := DefaultWindow.NextStart("Not/AZone", now)
	loc, _ := time.LoadLocation(DefaultZone)
	if h := next.In(loc).Hour(); h != 9 {
		t.Fatalf("expected fallback-zone local hour 9, got %d", h)
	}
}
