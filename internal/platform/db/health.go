package db

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats is the pool snapshot reported by /health/db.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

func GetPoolStats(pool *pgxpool.Pool) PoolStats {
	stat := pool.Stat()
	return PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// LoadState summarises what `healthdash load` has written. Migrated is false
// until `migrate up` has created load_batches.
type LoadState struct {
	Migrated   bool       `json:"migrated"`
	Batches    int64      `json:"batches"`
	LastSeed   *int64     `json:"last_seed,omitempty"`
	LastLoaded *time.Time `json:"last_loaded_at,omitempty"`
}

const loadStateQuery = `
SELECT count(*) OVER (), seed, loaded_at
FROM load_batches
ORDER BY loaded_at DESC
LIMIT 1`

// GetLoadState reads the newest batch from load_batches.
func GetLoadState(ctx context.Context, pool *pgxpool.Pool) (LoadState, error) {
	var exists bool
	if err := pool.QueryRow(ctx, `SELECT to_regclass('load_batches') IS NOT NULL`).Scan(&exists); err != nil {
		return LoadState{}, err
	}
	if !exists {
		return LoadState{}, nil
	}

	st := LoadState{Migrated: true}
	var (
		seed     int64
		loadedAt time.Time
	)
	err := pool.QueryRow(ctx, loadStateQuery).Scan(&st.Batches, &seed, &loadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return st, err
	}
	st.LastSeed, st.LastLoaded = &seed, &loadedAt
	return st, nil
}

// HealthReport is the /health/db response body.
type HealthReport struct {
	Status string     `json:"status"`
	Error  string     `json:"error,omitempty"`
	Pool   PoolStats  `json:"pool"`
	Load   *LoadState `json:"load,omitempty"`
}

// HealthHandler pings the database and reports the pool and the loaded
// datasets. An unreachable database answers 503.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		report := HealthReport{Status: "ok", Pool: GetPoolStats(pool)}
		if err := pool.Ping(ctx); err != nil {
			report.Status, report.Error = "unavailable", err.Error()
			return c.JSON(http.StatusServiceUnavailable, report)
		}

		st, err := GetLoadState(ctx, pool)
		if err != nil {
			report.Status, report.Error = "degraded", "read load_batches: "+err.Error()
			return c.JSON(http.StatusOK, report)
		}
		report.Load = &st
		return c.JSON(http.StatusOK, report)
	}
}
