// Package audit records every start/stop dispatch so operators can trace who
// triggered what. Rows are identified by short random ids.
package audit

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Entry struct {
	ID           string `json:"id"`
	Actor        string `json:"actor"`
	Operation    string `json:"operation"`
	InstanceUUID string `json:"instance_uuid"`
	InstanceName string `json:"instance_name"`
	DaemonID     string `json:"daemon_id"`
	Outcome      string `json:"outcome"` // "success", "failed", "skipped"
	Detail       string `json:"detail,omitempty"`
	CreatedAt    string `json:"created_at"`
}

type Log struct {
	db *sql.DB
}

func NewLog(db *sql.DB) *Log {
	return &Log{db: db}
}

// Append writes one action row. Audit failures are logged, never fatal: a
// broken audit trail must not block instance operations.
func (l *Log) Append(e Entry) {
	e.ID = uuid.New().String()[:8]
	_, err := l.db.Exec(
		`INSERT INTO actions (id, actor, operation, instance_uuid, instance_name, daemon_id, outcome, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Actor, e.Operation, e.InstanceUUID, e.InstanceName, e.DaemonID, e.Outcome, e.Detail,
	)
	if err != nil {
		log.Error().Err(err).Str("operation", e.Operation).Str("instance", e.InstanceName).
			Msg("audit append failed")
	}
}

// Recent returns the latest n entries, newest first.
func (l *Log) Recent(n int) ([]Entry, error) {
	if n <= 0 {
		n = 50
	}
	rows, err := l.db.Query(
		`SELECT id, actor, operation, instance_uuid, instance_name, daemon_id, outcome, detail, created_at
		FROM actions ORDER BY created_at DESC, id LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Actor, &e.Operation, &e.InstanceUUID, &e.InstanceName,
			&e.DaemonID, &e.Outcome, &e.Detail, &e.CreatedAt); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
