package auth

import (
	"path/filepath"
	"testing"

	"markwiki/internal/data"
	"markwiki/internal/logger"

	"github.com/casbin/casbin/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedDefaultPolicies_Enforcement(t *testing.T) {
	m, err := NewModel()
	require.NoError(t, err)
	e, err := casbin.NewEnforcer(m)
	require.NoError(t, err)
	require.NoError(t, SeedDefaultPolicies(e, logger.Nop()))

	tests := []struct {
		sub, obj, act string
		want          bool
	}{
		{RoleEditor, "/new-page", "GET", true},
		{RoleEditor, "/add-page", "POST", true},
		{RoleEditor, "/delete-page", "POST", true},
		{RoleEditor, "/delete-attachment", "POST", true},
		{RoleEditor, "/logout", "POST", true},
		{RoleEditor, "/add-page", "GET", false},
		{RoleAnonymous, "/new-page", "GET", false},
		{RoleAnonymous, "/add-page", "POST", false},
		{RoleAnonymous, "/delete-page", "POST", false},
	}
	for _, tc := range tests {
		t.Run(tc.sub+" "+tc.act+" "+tc.obj, func(t *testing.T) {
			got, err := e.Enforce(tc.sub, tc.obj, tc.act)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewEnforcer_PersistsPolicies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wiki.db")
	db, err := data.NewDB(path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, data.ApplyMigrations(db))

	e, err := NewEnforcer(data.DriverName, data.DSN(path))
	require.NoError(t, err)
	require.NoError(t, SeedDefaultPolicies(e, logger.Nop()))
	require.NoError(t, SeedDefaultPolicies(e, logger.Nop()), "seeding twice is a no-op")

	var count int
	require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM casbin_rule WHERE ptype = 'p'"))
	assert.Equal(t, len(DefaultPolicies), count)

	reopened, err := NewEnforcer(data.DriverName, data.DSN(path))
	require.NoError(t, err)
	ok, err := reopened.Enforce(RoleEditor, "/edit", "GET")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewEnforcer_UnmigratedDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")

	e, err := NewEnforcer(data.DriverName, data.DSN(path))
	require.Error(t, err)
	assert.Nil(t, e)
}
