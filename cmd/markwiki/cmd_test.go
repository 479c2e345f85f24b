package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"markwiki/internal/data"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func setupEnv(t *testing.T) string {
	t.Helper()
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "wiki.db")
	t.Setenv("WIKI_DB_PATH", path)
	t.Setenv("WIKI_WIKI_BCRYPT_COST", "4")
	t.Setenv("WIKI_LOG_LEVEL", "error")
	return path
}

func TestMigrateCommand(t *testing.T) {
	path := setupEnv(t)

	_, err := runCmd(t, "", "migrate")
	require.NoError(t, err)

	db, err := data.NewDB(path)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM pages"))
	assert.Zero(t, n)
}

func TestUserAddCommand(t *testing.T) {
	path := setupEnv(t)

	out, err := runCmd(t, "", "user", "add", "alice", "--password", "password1")
	require.NoError(t, err)
	assert.Contains(t, out, "User alice created")

	_, err = runCmd(t, "password2\n", "user", "add", "ALICE")
	assert.Error(t, err, "usernames are unique regardless of case")

	_, err = runCmd(t, "short\n", "user", "add", "bob")
	assert.Error(t, err)

	db, err := data.NewDB(path)
	require.NoError(t, err)
	defer db.Close()
	user, err := data.NewSQLUserRepository(db).GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotEqual(t, "password1", user.PasswordHash)
}

func TestUnknownConfigFileFails(t *testing.T) {
	setupEnv(t)
	_, err := runCmd(t, "", "--config", filepath.Join(t.TempDir(), "missing.yml"), "migrate")
	assert.Error(t, err)
}
