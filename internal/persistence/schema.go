package persistence

import "context"

// initSchema creates the performance-snapshot table if it doesn't exist.
func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS agent_domain_performance (
		agent_id        TEXT NOT NULL,
		domain          TEXT NOT NULL,
		tasks_completed INTEGER NOT NULL DEFAULT 0,
		success_rate    REAL NOT NULL DEFAULT 0.5,
		average_impact  REAL NOT NULL DEFAULT 0,
		uncertainty     REAL NOT NULL DEFAULT 1.0,
		confidence      REAL NOT NULL DEFAULT 0,
		updated_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (agent_id, domain)
	);

	CREATE INDEX IF NOT EXISTS idx_agent_domain_performance_agent
		ON agent_domain_performance(agent_id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
