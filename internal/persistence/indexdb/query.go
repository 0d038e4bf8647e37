package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"beltway.ai/internal/sim/world"
)

// TickDigest returns the recorded digest of a tick, or "" if it was never indexed.
func (s *SQLiteIndex) TickDigest(ctx context.Context, tick uint64) (string, error) {
	var d string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM ticks WHERE tick = ?`, int64(tick)).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return d, err
}

// NodeAudits lists audit entries for one node id in tick order, newest last.
func (s *SQLiteIndex) NodeAudits(ctx context.Context, node string, limit int) ([]world.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT raw_json FROM audits WHERE node = ? ORDER BY tick, seq LIMIT ?`, node, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []world.AuditEntry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var e world.AuditEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) CatalogDigest(ctx context.Context, name string) (string, error) {
	var d string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM catalogs WHERE name = ?`, name).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return d, err
}
