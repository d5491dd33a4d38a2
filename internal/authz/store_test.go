package authz

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcsmops/panelbot/internal/db"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.Migrate(database))
	return database
}

func TestAdminsComeFromConfig(t *testing.T) {
	s := NewStore(testDB(t), []string{"1000", "1001"}, nil)

	assert.True(t, s.IsAdmin("1000"))
	assert.False(t, s.IsAdmin("2000"))

	ok, err := s.IsAuthorized("1001")
	require.NoError(t, err)
	assert.True(t, ok, "admins are implicitly authorized")

	ok, err = s.IsAuthorized("2000")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGrantAndRevoke(t *testing.T) {
	s := NewStore(testDB(t), []string{"1000"}, nil)

	granted, err := s.Grant("2000", "1000")
	require.NoError(t, err)
	assert.True(t, granted)

	granted, err = s.Grant("2000", "1000")
	require.NoError(t, err)
	assert.False(t, granted, "re-granting is a no-op")

	ok, err := s.IsAuthorized("2000")
	require.NoError(t, err)
	assert.True(t, ok)

	ops, err := s.Operators()
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "2000", ops[0].UserID)
	assert.Equal(t, "1000", ops[0].GrantedBy)

	revoked, err := s.Revoke("2000")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = s.Revoke("2000")
	require.NoError(t, err)
	assert.False(t, revoked, "nothing left to revoke")

	ok, err = s.IsAuthorized("2000")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGroupAllowed(t *testing.T) {
	open := NewStore(testDB(t), nil, nil)
	assert.True(t, open.GroupAllowed("12345"), "no configured groups means every group is serviced")

	restricted := NewStore(testDB(t), nil, []string{"777"})
	assert.True(t, restricted.GroupAllowed("777"))
	assert.False(t, restricted.GroupAllowed("888"))
}
