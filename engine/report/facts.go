package report

import (
	"fmt"
	"strings"

	"github.com/rishikeshs/trashbot/engine/domain"
)

// FactLine renders one report row as an English sentence suitable for
// re-ingestion into the retrieval corpus.
func FactLine(s domain.DailyStat) string {
	parts := []string{
		fmt.Sprintf("On %s vehicle %s", s.Date, s.VehicleNumber),
		fmt.Sprintf("scanned %d houses", s.TotalHouseCount),
		fmt.Sprintf("and did %d dump trips", s.TotalDumpTrip),
	}
	if s.FirstHouseScan != "" {
		parts = append(parts, fmt.Sprintf("first scan at %s", s.FirstHouseScan))
	}
	if s.LastHouseScan != "" {
		parts = append(parts, fmt.Sprintf("last scan at %s", s.LastHouseScan))
	}
	if s.DutyOnTime != "" && s.DutyOffTime != "" {
		parts = append(parts, fmt.Sprintf("duty %s - %s", s.DutyOnTime, s.DutyOffTime))
	}
	return strings.Join(parts, ". ") + "."
}

// FactLines renders all rows, one sentence per line.
func FactLines(stats []domain.DailyStat) string {
	lines := make([]string, len(stats))
	for i, s := range stats {
		lines[i] = FactLine(s)
	}
	return strings.Join(lines, "\n")
}
