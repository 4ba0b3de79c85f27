package report

import (
	"strings"
	"testing"

	"github.com/rishikeshs/trashbot/engine/domain"
)

func TestFactLine_FullRow(t *testing.T) {
	s := domain.DailyStat{
		Date:            "2026-08-20",
		VehicleNumber:   "MH08AP1894",
		FirstHouseScan:  "06:12:03",
		LastHouseScan:   "13:45:10",
		TotalHouseCount: 412,
		TotalDumpTrip:   3,
		DutyOnTime:      "06:00:00",
		DutyOffTime:     "14:05:00",
	}

	got := FactLine(s)
	want := "On 2026-08-20 vehicle MH08AP1894. scanned 412 houses. and did 3 dump trips. " +
		"first scan at 06:12:03. last scan at 13:45:10. duty 06:00:00 - 14:05:00."
	if got != want {
		t.Errorf("FactLine:\n got %q\nwant %q", got, want)
	}
}

func TestFactLine_SparseRowOmitsNulls(t *testing.T) {
	s := domain.DailyStat{
		Date:          "2026-08-21",
		VehicleNumber: "MH08AP1894",
	}

	got := FactLine(s)
	if strings.Contains(got, "first scan") || strings.Contains(got, "last scan") || strings.Contains(got, "duty") {
		t.Errorf("null times must be omitted, got %q", got)
	}
	if !strings.Contains(got, "scanned 0 houses") || !strings.Contains(got, "did 0 dump trips") {
		t.Errorf("counts must still render when zero, got %q", got)
	}
}

func TestFactLine_PartialDutyOmitted(t *testing.T) {
	s := domain.DailyStat{
		Date:          "2026-08-22",
		VehicleNumber: "MH08AP1894",
		DutyOnTime:    "06:00:00",
	}
	if got := FactLine(s); strings.Contains(got, "duty") {
		t.Errorf("duty must render only with both ends, got %q", got)
	}
}

func TestFactLines(t *testing.T) {
	stats := []domain.DailyStat{
		{Date: "2026-08-20", VehicleNumber: "A"},
		{Date: "2026-08-21", VehicleNumber: "A"},
	}
	got := FactLines(stats)
	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d:\n%s", len(lines), got)
	}
	if !strings.HasPrefix(lines[0], "On 2026-08-20") || !strings.HasPrefix(lines[1], "On 2026-08-21") {
		t.Errorf("unexpected lines: %v", lines)
	}

	if FactLines(nil) != "" {
		t.Error("no rows must render as an empty string")
	}
}
