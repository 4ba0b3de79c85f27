// Package report runs the read-only vehicle duty/scan aggregation against
// the operational SQL Server database. One query per request; the connection
// is opened for the request and closed unconditionally when it finishes.
package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/rishikeshs/trashbot/engine/domain"
	"github.com/rishikeshs/trashbot/pkg/vehicle"

	_ "github.com/microsoft/go-mssqldb"
)

var (
	// ErrMissingConfig means one or more of server/database/user/password
	// is unset. Raised before any network call.
	ErrMissingConfig = errors.New("report: DB_SERVER, DB_NAME, DB_USER and DB_PASS must all be set")
	// ErrVehicleRequired means the request carried no vehicle number.
	ErrVehicleRequired = errors.New("report: vehicle number required")
	// ErrInvalidDate means a date parameter is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("report: dates must be YYYY-MM-DD")
)

// DefaultQueryTimeout bounds the report round-trip.
const DefaultQueryTimeout = 30 * time.Second

// Config holds the report database connection parameters.
type Config struct {
	Server   string
	Database string
	User     string
	Password string
	// QueryTimeout defaults to DefaultQueryTimeout when zero.
	QueryTimeout time.Duration
}

func (c Config) validate() error {
	if c.Server == "" || c.Database == "" || c.User == "" || c.Password == "" {
		return ErrMissingConfig
	}
	return nil
}

func (c Config) dsn() string {
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Server, "1433"),
		RawQuery: url.Values{"database": {c.Database}}.Encode(),
	}
	return u.String()
}

// Params identifies one report request. ZoneID/PanelID zero means "no
// filter on this dimension" — a sentinel, not a real id.
type Params struct {
	Vehicle string
	From    string // YYYY-MM-DD, inclusive
	To      string // YYYY-MM-DD, inclusive
	ZoneID  int
	PanelID int
}

func (p Params) validate() error {
	if vehicle.Normalize(p.Vehicle) == "" {
		return ErrVehicleRequired
	}
	for _, d := range []string{p.From, p.To} {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidDate, d)
		}
	}
	return nil
}

// The aggregation unions the scanned and not-scanned event streams (tagged
// with isNotScan so provenance survives), restricts them by zone/panel,
// and left-joins onto attendance so days with attendance but zero scans
// still produce a row. Times are converted to varchar in SQL so rows scan
// uniformly as nullable strings.
const dailyStatsQuery = `
WITH vqr AS (
    SELECT vqrId, VehicalNumber
    FROM Vehical_QR_Master WITH (NOLOCK)
    WHERE VehicalNumber = @vehicle
),
gc_union AS (
    SELECT gcDate, vehicleNumber, houseId, gcType, 0 AS isNotScan
    FROM GarbageCollectionDetails WITH (NOLOCK)
    WHERE CAST(gcDate AS DATE) BETWEEN @from AND @to

    UNION ALL

    SELECT gcDate, vehicleNumber, houseId, gcType, 1 AS isNotScan
    FROM GarbageCollection_NotScan WITH (NOLOCK)
    WHERE CAST(gcDate AS DATE) BETWEEN @from AND @to
),
filtered_gc AS (
    SELECT G.*, hm.ZoneId, wd.PanelId
    FROM gc_union G
    LEFT JOIN HouseMaster hm ON hm.houseId = G.houseId
    LEFT JOIN WardNumber wd ON hm.WardNo = wd.Id
    WHERE (@zone = 0 OR hm.ZoneId = @zone)
      AND (@panel = 0 OR wd.PanelId = @panel)
      AND G.vehicleNumber = @vehicle
),
attendance AS (
    SELECT CAST(DA.daDate AS DATE) AS dt,
           DA.daID,
           DA.VQRId,
           DA.startTime,
           DA.endTime
    FROM Daily_Attendance DA WITH (NOLOCK)
    WHERE CAST(DA.daDate AS DATE) BETWEEN @from AND @to
      AND DA.VQRId = (SELECT vqrId FROM vqr)
)
SELECT
    CONVERT(varchar(10), A.dt, 23) AS Date,
    V.VehicalNumber AS VehicleNumber,
    CONVERT(varchar(8), MIN(CASE WHEN G.gcType = 1 THEN CAST(G.gcDate AS TIME) END)) AS FirstHouseScan,
    CONVERT(varchar(8), MAX(CASE WHEN G.gcType = 1 THEN CAST(G.gcDate AS TIME) END)) AS LastHouseScan,
    SUM(CASE WHEN G.gcType = 1 THEN 1 ELSE 0 END) AS TotalHouseCount,
    CONVERT(varchar(8), MAX(CASE WHEN G.gcType = 3 THEN CAST(G.gcDate AS TIME) END)) AS LastDumpScan,
    SUM(CASE WHEN G.gcType = 3 THEN 1 ELSE 0 END) AS TotalDumpTrip,
    CONVERT(varchar(8), MIN(A.startTime)) AS DutyOnTime,
    CONVERT(varchar(8), MAX(A.endTime)) AS DutyOffTime
FROM attendance A
LEFT JOIN vqr V ON V.vqrId = A.VQRId
LEFT JOIN filtered_gc G ON CAST(G.gcDate AS DATE) = A.dt AND G.vehicleNumber = V.VehicalNumber
GROUP BY A.dt, V.VehicalNumber
ORDER BY A.dt ASC;`

// DailyStats returns one row per day with attendance for the vehicle in the
// date range. An empty result is ([]domain.DailyStat{}, nil) — "no data" is
// an outcome, not an error, and stays distinguishable from connection or
// credential failures, which propagate.
func DailyStats(ctx context.Context, cfg Config, p Params) ([]domain.DailyStat, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	v := vehicle.Normalize(p.Vehicle)

	db, err := sql.Open("sqlserver", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("report: open: %w", err)
	}
	defer db.Close()

	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := db.QueryContext(qctx, dailyStatsQuery,
		sql.Named("vehicle", v),
		sql.Named("from", p.From),
		sql.Named("to", p.To),
		sql.Named("zone", p.ZoneID),
		sql.Named("panel", p.PanelID),
	)
	if err != nil {
		return nil, fmt.Errorf("report: query: %w", err)
	}
	defer rows.Close()

	stats := []domain.DailyStat{}
	for rows.Next() {
		var (
			date, veh                          sql.NullString
			first, last, dump, dutyOn, dutyOff sql.NullString
			houses, trips                      sql.NullInt64
		)
		if err := rows.Scan(&date, &veh, &first, &last, &houses, &dump, &trips, &dutyOn, &dutyOff); err != nil {
			return nil, fmt.Errorf("report: scan: %w", err)
		}
		stats = append(stats, domain.DailyStat{
			Date:            date.String,
			VehicleNumber:   veh.String,
			FirstHouseScan:  first.String,
			LastHouseScan:   last.String,
			TotalHouseCount: clampCount(houses),
			LastDumpScan:    dump.String,
			TotalDumpTrip:   clampCount(trips),
			DutyOnTime:      dutyOn.String,
			DutyOffTime:     dutyOff.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("report: rows: %w", err)
	}
	return stats, nil
}

// clampCount coerces a nullable count to a non-negative int; NULL and
// negative values map to 0.
func clampCount(n sql.NullInt64) int {
	if !n.Valid || n.Int64 < 0 {
		return 0
	}
	return int(n.Int64)
}
