package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hirepath/searchpulse/internal/telemetry"
)

const insertAlert = `
INSERT INTO alerts (
	date, severity, category, title, description, metric,
	entity_type, entity, current_value, previous_value, change_percent
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// DeleteAlertsForDate removes every alert for the date.
func (s *Store) DeleteAlertsForDate(ctx context.Context, date time.Time) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM alerts WHERE date = $1`, telemetry.Day(date)); err != nil {
		return fmt.Errorf("delete alerts: %w", err)
	}
	return nil
}

// InsertAlerts appends alerts.
func (s *Store) InsertAlerts(ctx context.Context, alerts []telemetry.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, a := range alerts {
		var entity any
		if a.Entity != "" {
			entity = a.Entity
		}
		batch.Queue(insertAlert,
			telemetry.Day(a.Date),
			string(a.Severity),
			string(a.Category),
			a.Title,
			a.Description,
			a.Metric,
			string(a.EntityType),
			entity,
			a.CurrentValue,
			a.PreviousValue,
			a.ChangePercent,
		)
	}
	if err := s.sendBatch(ctx, batch); err != nil {
		return fmt.Errorf("insert alerts: %w", err)
	}
	return nil
}

// AlertsForDate returns the date's alerts ordered by severity then category.
func (s *Store) AlertsForDate(ctx context.Context, date time.Time) ([]telemetry.Alert, error) {
	query := `
SELECT date, severity, category, title, description, metric,
	entity_type, COALESCE(entity, ''), current_value, previous_value, change_percent
FROM alerts
WHERE date = $1
ORDER BY severity ASC, category ASC, COALESCE(entity, '') ASC`
	rows, err := s.db.Query(ctx, query, telemetry.Day(date))
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []telemetry.Alert
	for rows.Next() {
		var a telemetry.Alert
		var severity, category, entityType string
		err := rows.Scan(
			&a.Date,
			&severity,
			&category,
			&a.Title,
			&a.Description,
			&a.Metric,
			&entityType,
			&a.Entity,
			&a.CurrentValue,
			&a.PreviousValue,
			&a.ChangePercent,
		)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Severity = telemetry.Severity(severity)
		a.Category = telemetry.Category(category)
		a.EntityType = telemetry.EntityType(entityType)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}
	return out, nil
}
