package ingest

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rishikeshs/trashbot/engine/domain"

	_ "github.com/microsoft/go-mssqldb"
)

// attendanceColumns are the fields of the daily attendance export. When the
// CSV carries them, record text is composed as a readable per-row summary
// instead of taking a single column.
var attendanceColumns = []string{
	"Date", "EmployeeName", "emp_id", "vehicleNumber", "Target",
	"mixed_waste", "segregate_waste", "TotalHouseCount", "Not_collected",
	"duty_on_time", "duty_off_time", "working_time",
	"FirstHouseScan", "LastHouseScan",
}

// LoadCSV reads records from a CSV file. If textColumn exists in the header
// it is used directly, with the row number as the record ID. Otherwise, if
// the file is a daily attendance export, each row is composed into a text
// summary. Anything else is an error.
func LoadCSV(path, textColumn string) ([]domain.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ingest: read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}

	if idx, ok := col[textColumn]; ok {
		records := make([]domain.Record, 0, len(rows)-1)
		for i, row := range rows[1:] {
			if idx >= len(row) {
				continue
			}
			records = append(records, domain.Record{
				ID:   fmt.Sprintf("%d", i),
				Text: row[idx],
			})
		}
		return records, nil
	}

	if hasAttendanceColumns(col) {
		records := make([]domain.Record, 0, len(rows)-1)
		for i, row := range rows[1:] {
			records = append(records, domain.Record{
				ID:   fmt.Sprintf("%d", i),
				Text: composeAttendanceText(col, row),
			})
		}
		return records, nil
	}

	return nil, fmt.Errorf("ingest: column %q not found in %s", textColumn, path)
}

func hasAttendanceColumns(col map[string]int) bool {
	for _, name := range attendanceColumns {
		if _, ok := col[name]; !ok {
			return false
		}
	}
	return true
}

func composeAttendanceText(col map[string]int, row []string) string {
	get := func(name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\n", get("Date"))
	fmt.Fprintf(&b, "Employee: %s (ID: %s)\n", get("EmployeeName"), get("emp_id"))
	fmt.Fprintf(&b, "Vehicle: %s\n", get("vehicleNumber"))
	fmt.Fprintf(&b, "Target: %s\n", get("Target"))
	fmt.Fprintf(&b, "Waste Collection: Mixed=%s, Segregated=%s\n", get("mixed_waste"), get("segregate_waste"))
	fmt.Fprintf(&b, "Houses: Total=%s, Not Collected=%s\n", get("TotalHouseCount"), get("Not_collected"))
	fmt.Fprintf(&b, "Duty: %s to %s (%s)\n", get("duty_on_time"), get("duty_off_time"), get("working_time"))
	fmt.Fprintf(&b, "First Scan: %s, Last Scan: %s", get("FirstHouseScan"), get("LastHouseScan"))
	return b.String()
}

// LoadSQL reads records from the operational database: one row per record,
// with designated id and text columns.
func LoadSQL(ctx context.Context, connString, query, idColumn, textColumn string) ([]domain.Record, error) {
	db, err := sql.Open("sqlserver", connString)
	if err != nil {
		return nil, fmt.Errorf("ingest: open db: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ingest: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("ingest: columns: %w", err)
	}
	idIdx, textIdx := -1, -1
	for i, c := range cols {
		switch {
		case strings.EqualFold(c, idColumn):
			idIdx = i
		case strings.EqualFold(c, textColumn):
			textIdx = i
		}
	}
	if idIdx < 0 || textIdx < 0 {
		return nil, fmt.Errorf("ingest: query must return %q and %q columns", idColumn, textColumn)
	}

	var records []domain.Record
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("ingest: scan: %w", err)
		}
		records = append(records, domain.Record{
			ID:   asString(vals[idIdx]),
			Text: asString(vals[textIdx]),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ingest: rows: %w", err)
	}
	return records, nil
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(t)
	}
}
