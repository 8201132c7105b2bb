package incidents

import (
	"encoding/csv"
	"strings"
	"testing"

	"video-incident-service/models"
)

func sampleIncidents() []models.Incident {
	return []models.Incident{
		{ID: "a", Timestamp: "00:45", Seconds: 45, Severity: models.SeverityHigh, Description: "weapon drawn"},
		{ID: "b", Timestamp: "00:10", Seconds: 10, Severity: models.SeverityLow, Description: "shouting"},
		{ID: "c", Timestamp: "00:30", Seconds: 30, Severity: models.SeverityMedium, Description: "pushing"},
		{ID: "d", Timestamp: "00:10", Seconds: 10, Severity: models.SeverityHigh, Description: "second event at same time"},
	}
}

func TestFilteredAllCombinations(t *testing.T) {
	incidents := sampleIncidents()

	for mask := 0; mask < 8; mask++ {
		filters := models.FilterState{
			models.SeverityLow:    mask&1 != 0,
			models.SeverityMedium: mask&2 != 0,
			models.SeverityHigh:   mask&4 != 0,
		}

		got := Filtered(incidents, filters)

		// Every returned incident passes its filter and comes from the input set
		byID := map[string]models.Incident{}
		for _, inc := range incidents {
			byID[inc.ID] = inc
		}
		want := 0
		for _, inc := range incidents {
			if filters[inc.Severity] {
				want++
			}
		}
		if len(got) != want {
			t.Errorf("mask %d: got %d incidents, want %d", mask, len(got), want)
		}
		for _, inc := range got {
			if _, ok := byID[inc.ID]; !ok {
				t.Errorf("mask %d: incident %s not in original set", mask, inc.ID)
			}
			if !filters[inc.Severity] {
				t.Errorf("mask %d: incident %s severity %s should be filtered out", mask, inc.ID, inc.Severity)
			}
		}
	}
}

func TestFilteredSortedAndStable(t *testing.T) {
	got := Filtered(sampleIncidents(), models.DefaultFilters())

	for i := 1; i < len(got); i++ {
		if got[i].Seconds < got[i-1].Seconds {
			t.Fatalf("not sorted: %d before %d", got[i-1].Seconds, got[i].Seconds)
		}
	}

	// "b" and "d" share seconds=10; insertion order must survive the sort
	if got[0].ID != "b" || got[1].ID != "d" {
		t.Errorf("tie not stable: got %s, %s; want b, d", got[0].ID, got[1].ID)
	}
}

func TestActiveWindow(t *testing.T) {
	incidents := []models.Incident{
		{ID: "x", Seconds: 30, Severity: models.SeverityHigh},
	}

	cases := []struct {
		currentTime float64
		wantActive  bool
	}{
		{30, true},
		{32, true},
		{32.9, true},
		{33, false}, // boundary at exactly 3 is exclusive
		{34, false},
		{27.5, true},
		{27, false},
	}

	for _, tc := range cases {
		got := Active(incidents, tc.currentTime, 3)
		if (got != nil) != tc.wantActive {
			t.Errorf("currentTime %.1f: active=%v, want %v", tc.currentTime, got != nil, tc.wantActive)
		}
	}
}

func TestActiveIgnoresFiltersAndPicksFirstInOriginalOrder(t *testing.T) {
	incidents := []models.Incident{
		{ID: "later", Seconds: 31, Severity: models.SeverityLow},
		{ID: "closer", Seconds: 30, Severity: models.SeverityHigh},
	}

	// currentTime 30: both are in the window; "later" is first in the
	// original order even though "closer" is nearer.
	got := Active(incidents, 30, 3)
	if got == nil || got.ID != "later" {
		t.Fatalf("got %v, want first incident in original order", got)
	}
}

func TestActiveEmptySet(t *testing.T) {
	if got := Active(nil, 10, 3); got != nil {
		t.Fatalf("expected nil for empty set, got %v", got)
	}
}

func TestCSVRoundTrip(t *testing.T) {
	filtered := Filtered(sampleIncidents(), models.DefaultFilters())
	out := CSV(filtered)

	reader := csv.NewReader(strings.NewReader(out))
	rows, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("exported CSV does not parse: %v", err)
	}

	if len(rows) != len(filtered)+1 {
		t.Fatalf("got %d rows, want %d", len(rows), len(filtered)+1)
	}
	header := rows[0]
	if header[0] != "Timestamp" || header[1] != "Severity" || header[2] != "Description" {
		t.Fatalf("unexpected header: %v", header)
	}

	for i, inc := range filtered {
		row := rows[i+1]
		if row[0] != inc.Timestamp || row[1] != string(inc.Severity) || row[2] != inc.Description {
			t.Errorf("row %d: got %v, want (%s, %s, %s)", i, row, inc.Timestamp, inc.Severity, inc.Description)
		}
	}
}

func TestCSVQuotesDescriptions(t *testing.T) {
	out := CSV([]models.Incident{
		{Timestamp: "00:05", Seconds: 5, Severity: models.SeverityHigh, Description: `said "move" loudly`},
	})

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[1] != `00:05,High,"said ""move"" loudly"` {
		t.Errorf("unexpected row: %s", lines[1])
	}
}

func TestClipboardText(t *testing.T) {
	filtered := []models.Incident{
		{Timestamp: "00:10", Seconds: 10, Severity: models.SeverityLow, Description: "shouting"},
		{Timestamp: "00:45", Seconds: 45, Severity: models.SeverityHigh, Description: "weapon drawn"},
	}

	got := ClipboardText(filtered)
	want := "[Low] 00:10: shouting\n[High] 00:45: weapon drawn"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestClipboardTextEmpty(t *testing.T) {
	if got := ClipboardText(nil); got != "" {
		t.Errorf("got %q, want empty string", got)
	}
}
