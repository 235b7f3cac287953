package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/redeclipse/stats-api/internal/models"
)

// ClickHouseActivity reads game activity from an analytics mirror of the
// games table. Large installations point the activity histograms here so the
// full-window scans stay off the primary database.
type ClickHouseActivity struct {
	ch driver.Conn
}

// NewClickHouseActivity wraps an open ClickHouse connection.
func NewClickHouseActivity(ch driver.Conn) *ClickHouseActivity {
	return &ClickHouseActivity{ch: ch}
}

// OpenClickHouse connects to a ClickHouse DSN.
func OpenClickHouse(ctx context.Context, dsn string) (driver.Conn, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse clickhouse url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// ActivityRows returns the end time, duration and player count of every game
// that ended at or after since.
func (c *ClickHouseActivity) ActivityRows(ctx context.Context, since int64) ([]models.ActivityRow, error) {
	rows, err := c.ch.Query(ctx, `
		SELECT toInt64(time), toInt64(timeplayed), toInt64(uniqueplayers)
		FROM games
		WHERE time >= ?
		ORDER BY time
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	out := []models.ActivityRow{}
	for rows.Next() {
		var end, played, players int64
		if err := rows.Scan(&end, &played, &players); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		out = append(out, models.ActivityRow{Time: end, TimePlayed: played, UniquePlayers: int(players)})
	}
	return out, rows.Err()
}

// Ping checks the ClickHouse connection.
func (c *ClickHouseActivity) Ping(ctx context.Context) error {
	return c.ch.Ping(ctx)
}
