// Package authz decides who may drive the bot. Administrators come from
// configuration; operators are granted at runtime with the op command and
// persisted so grants survive restarts.
package authz

import (
	"database/sql"
	"fmt"
)

type Store struct {
	db     *sql.DB
	admins map[string]struct{}
	groups map[string]struct{}
}

type Operator struct {
	UserID    string `json:"user_id"`
	GrantedBy string `json:"granted_by"`
	CreatedAt string `json:"created_at"`
}

func NewStore(db *sql.DB, adminUsers, authorizedGroups []string) *Store {
	admins := make(map[string]struct{}, len(adminUsers))
	for _, u := range adminUsers {
		admins[u] = struct{}{}
	}
	groups := make(map[string]struct{}, len(authorizedGroups))
	for _, g := range authorizedGroups {
		groups[g] = struct{}{}
	}
	return &Store{db: db, admins: admins, groups: groups}
}

// IsAdmin reports whether the user is a configured administrator.
func (s *Store) IsAdmin(userID string) bool {
	_, ok := s.admins[userID]
	return ok
}

// IsAuthorized reports whether the user may run regular commands: configured
// administrators and granted operators qualify.
func (s *Store) IsAuthorized(userID string) (bool, error) {
	if s.IsAdmin(userID) {
		return true, nil
	}
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM operators WHERE user_id = ?", userID).Scan(&n); err != nil {
		return false, fmt.Errorf("query operators: %w", err)
	}
	return n > 0, nil
}

// GroupAllowed reports whether messages from the group are serviced. An empty
// authorized_groups config means every group is serviced.
func (s *Store) GroupAllowed(groupID string) bool {
	if len(s.groups) == 0 {
		return true
	}
	_, ok := s.groups[groupID]
	return ok
}

// Grant makes the user an operator. It returns false when the user already
// had the grant.
func (s *Store) Grant(userID, grantedBy string) (bool, error) {
	res, err := s.db.Exec(
		"INSERT OR IGNORE INTO operators (user_id, granted_by) VALUES (?, ?)",
		userID, grantedBy,
	)
	if err != nil {
		return false, fmt.Errorf("grant operator: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Revoke removes an operator grant. It returns false when no grant existed.
func (s *Store) Revoke(userID string) (bool, error) {
	res, err := s.db.Exec("DELETE FROM operators WHERE user_id = ?", userID)
	if err != nil {
		return false, fmt.Errorf("revoke operator: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Operators lists current grants, newest first.
func (s *Store) Operators() ([]Operator, error) {
	rows, err := s.db.Query("SELECT user_id, granted_by, created_at FROM operators ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list operators: %w", err)
	}
	defer rows.Close()

	ops := []Operator{}
	for rows.Next() {
		var op Operator
		if err := rows.Scan(&op.UserID, &op.GrantedBy, &op.CreatedAt); err != nil {
			continue
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}
