package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/loc-core/loc/internal/agent"
)

// SaveSnapshot upserts one agent/domain performance record. Idempotent:
// re-saving the same (agentID, domain) overwrites the prior snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, agentID, domain string, dp agent.DomainPerf) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO agent_domain_performance
			(agent_id, domain, tasks_completed, success_rate, average_impact, uncertainty, confidence, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(agent_id, domain) DO UPDATE SET
			tasks_completed = excluded.tasks_completed,
			success_rate    = excluded.success_rate,
			average_impact  = excluded.average_impact,
			uncertainty     = excluded.uncertainty,
			confidence      = excluded.confidence,
			updated_at      = CURRENT_TIMESTAMP
	`, agentID, domain, dp.TasksCompleted, dp.SuccessRate, dp.AverageImpact, dp.Uncertainty, dp.Confidence)
	if err != nil {
		return fmt.Errorf("failed to upsert performance snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadDomainStats returns every persisted domain performance record for
// agentID, keyed by domain.
func (s *Store) LoadDomainStats(ctx context.Context, agentID string) (map[string]*agent.DomainPerf, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT domain, tasks_completed, success_rate, average_impact, uncertainty, confidence
		FROM agent_domain_performance
		WHERE agent_id = ?
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query performance snapshots: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*agent.DomainPerf)
	for rows.Next() {
		var domain string
		dp := &agent.DomainPerf{}
		if err := rows.Scan(&domain, &dp.TasksCompleted, &dp.SuccessRate, &dp.AverageImpact, &dp.Uncertainty, &dp.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan performance snapshot: %w", err)
		}
		out[domain] = dp
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating performance snapshots: %w", err)
	}
	return out, nil
}
