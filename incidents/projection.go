// Package incidents derives the visible incident list and the active
// incident from the full set, the severity filters, and the playback
// position. Everything here is a pure function recomputed from scratch
// on every call; there is no cached incremental state to go stale.
package incidents

import (
	"math"
	"sort"
	"strings"

	"video-incident-service/models"
)

// CSVFilename is the fixed download name for CSV exports.
const CSVFilename = "incident-report.csv"

// Filtered returns the incidents whose severity is mapped to true,
// sorted by Seconds ascending. The sort is stable so incidents with
// equal Seconds keep their original relative order.
func Filtered(incidents []models.Incident, filters models.FilterState) []models.Incident {
	out := make([]models.Incident, 0, len(incidents))
	for _, inc := range incidents {
		if filters[inc.Severity] {
			out = append(out, inc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Seconds < out[j].Seconds
	})
	return out
}

// Active returns the first incident in the original, unfiltered order
// whose offset lies strictly within the window of the current playback
// time, or nil. "First" means first encountered, not nearest; if
// several incidents share the window the pick is arbitrary. Filter
// state does not apply: a hidden incident can still be active.
func Active(incidents []models.Incident, currentTime, window float64) *models.Incident {
	for i := range incidents {
		if math.Abs(currentTime-float64(incidents[i].Seconds)) < window {
			return &incidents[i]
		}
	}
	return nil
}

// ClipboardText renders the filtered incidents one per line in the
// form "[Severity] MM:SS: description".
func ClipboardText(filtered []models.Incident) string {
	var b strings.Builder
	for i, inc := range filtered {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("[")
		b.WriteString(string(inc.Severity))
		b.WriteString("] ")
		b.WriteString(inc.Timestamp)
		b.WriteString(": ")
		b.WriteString(inc.Description)
	}
	return b.String()
}

// CSV renders the filtered incidents as comma-separated rows under a
// Timestamp,Severity,Description header. The description field is
// always double-quoted with internal quotes doubled.
func CSV(filtered []models.Incident) string {
	var b strings.Builder
	b.WriteString("Timestamp,Severity,Description\n")
	for _, inc := range filtered {
		b.WriteString(inc.Timestamp)
		b.WriteString(",")
		b.WriteString(string(inc.Severity))
		b.WriteString(",\"")
		b.WriteString(strings.ReplaceAll(inc.Description, "\"", "\"\""))
		b.WriteString("\"\n")
	}
	return b.String()
}
