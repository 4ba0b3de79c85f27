// Package domain defines the core types shared across the trashbot engine:
// the chunks that make up the retrieval corpus, retrieval results, and the
// rows of the vehicle duty/scan report.
package domain

// Record is one source row destined for the index: free text plus the
// identifier that chunk IDs are derived from.
type Record struct {
	ID   string
	Text string
}

// Chunk is a bounded-length piece of a record's text. ID is
// "<record_id>-<chunk_index>" with a zero-based chunk index.
type Chunk struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// RetrievalResult is one matched chunk with its inner-product similarity
// score. Results travel in descending-score order as returned by the index
// and are never re-sorted locally.
type RetrievalResult struct {
	Text  string  `json:"text"`
	Score float32 `json:"score"`
}

// DailyStat is one (date, vehicle) row of the duty/scan report. Time fields
// are "HH:MM:SS" strings and empty when no matching scan exists for the day;
// count fields are always non-negative.
type DailyStat struct {
	Date            string `json:"date"`
	VehicleNumber   string `json:"vehicle_number"`
	FirstHouseScan  string `json:"first_house_scan,omitempty"`
	LastHouseScan   string `json:"last_house_scan,omitempty"`
	TotalHouseCount int    `json:"total_house_count"`
	LastDumpScan    string `json:"last_dump_scan,omitempty"`
	TotalDumpTrip   int    `json:"total_dump_trip"`
	DutyOnTime      string `json:"duty_on_time,omitempty"`
	DutyOffTime     string `json:"duty_off_time,omitempty"`
}
