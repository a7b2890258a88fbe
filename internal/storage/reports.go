package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/exportops/tradewatch/internal/common"
	"github.com/exportops/tradewatch/internal/model"
	"github.com/exportops/tradewatch/internal/pipeline"
)

// RunSummary is one row of run history.
type RunSummary struct {
	GeneratedAt    time.Time     `json:"generated_at"`
	ID             string        `json:"id"`
	Duration       time.Duration `json:"duration"`
	TotalAnomalies int           `json:"total_anomalies"`
	LLMCalls       int           `json:"llm_calls"`
}

// SaveReport persists a finished run and all its findings atomically.
func (s *SQLiteStorage) SaveReport(ctx context.Context, report *pipeline.Report) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if report == nil || report.ID == "" {
		return fmt.Errorf("%w: report id", common.ErrInvalidConfig)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, generated_at, duration_ms, llm_calls, tokens_input, tokens_output, total_anomalies, executive_summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID,
		report.GeneratedAt,
		report.Duration.Milliseconds(),
		report.LLMCalls,
		report.Tokens.Input,
		report.Tokens.Output,
		len(report.Anomalies),
		report.ExecutiveSummary,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("%w: run %s", common.ErrDuplicateEntry, report.ID)
		}
		return fmt.Errorf("failed to save run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO anomalies (run_id, position, anomaly_type, layer, severity, shipment_id, buyer_id, shipment_ids, confidence, impact, recommendation, evidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare anomaly insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, a := range report.Anomalies {
		var shipmentIDs []byte
		if len(a.ShipmentIDs) > 0 {
			if shipmentIDs, err = json.Marshal(a.ShipmentIDs); err != nil {
				return fmt.Errorf("failed to encode shipment ids: %w", err)
			}
		}
		var evidence []byte
		if a.Evidence != nil {
			if evidence, err = json.Marshal(a.Evidence); err != nil {
				return fmt.Errorf("failed to encode evidence: %w", err)
			}
		}

		if _, err = stmt.ExecContext(ctx, report.ID, i, string(a.Type), a.Layer, string(a.Severity),
			nullableInt(a.ShipmentID), nullableInt(a.BuyerID), nullableBytes(shipmentIDs),
			nullableFloat(a.Confidence), a.Impact, a.Recommendation, nullableBytes(evidence)); err != nil {
			return fmt.Errorf("failed to save anomaly: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit report: %w", err)
	}
	return nil
}

// GetReport loads a previously saved run, findings in their original order.
// Evidence comes back as RawEvidence; the concrete structs are not rebuilt.
func (s *SQLiteStorage) GetReport(ctx context.Context, id string) (*pipeline.Report, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	report := &pipeline.Report{ID: id}
	var durationMS int64
	var summary sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT generated_at, duration_ms, llm_calls, tokens_input, tokens_output, executive_summary
		FROM runs WHERE id = ?`, id).
		Scan(&report.GeneratedAt, &durationMS, &report.LLMCalls, &report.Tokens.Input, &report.Tokens.Output, &summary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	report.Duration = time.Duration(durationMS) * time.Millisecond
	report.ExecutiveSummary = summary.String

	rows, err := s.db.QueryContext(ctx, `
		SELECT anomaly_type, layer, severity, shipment_id, buyer_id, shipment_ids, confidence, impact, recommendation, evidence
		FROM anomalies WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load anomalies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var a model.Anomaly
		var typ, severity string
		var shipmentID, buyerID sql.NullInt64
		var confidence sql.NullFloat64
		var shipmentIDs, evidence, impact, recommendation sql.NullString

		if err := rows.Scan(&typ, &a.Layer, &severity, &shipmentID, &buyerID, &shipmentIDs,
			&confidence, &impact, &recommendation, &evidence); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrMalformedRow, err)
		}

		a.Type = model.AnomalyType(typ)
		a.Severity = model.Severity(severity)
		a.ShipmentID = int(shipmentID.Int64)
		a.BuyerID = int(buyerID.Int64)
		a.Confidence = confidence.Float64
		a.Impact = impact.String
		a.Recommendation = recommendation.String
		if shipmentIDs.Valid && shipmentIDs.String != "" {
			if err := json.Unmarshal([]byte(shipmentIDs.String), &a.ShipmentIDs); err != nil {
				return nil, fmt.Errorf("%w: shipment ids: %v", common.ErrMalformedRow, err)
			}
		}
		if evidence.Valid && evidence.String != "" {
			a.Evidence = model.RawEvidence{Type: a.Type, Data: json.RawMessage(evidence.String)}
		}

		report.Anomalies = append(report.Anomalies, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate anomalies: %w", err)
	}

	return report, nil
}

// ListRuns returns run history, newest first.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, generated_at, duration_ms, llm_calls, total_anomalies
		FROM runs ORDER BY generated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var durationMS int64
		if err := rows.Scan(&r.ID, &r.GeneratedAt, &durationMS, &r.LLMCalls, &r.TotalAnomalies); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrMalformedRow, err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

func nullableInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullableFloat(v float64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
