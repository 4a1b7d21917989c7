package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pliu/engihub/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"serve", "migrate", "init-config"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	flag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "c", flag.Shorthand)
}

func TestInitConfigThenMigrate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engihub.toml")

	out, err := run(t, "init-config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote")

	_, err = run(t, "init-config", path)
	assert.Error(t, err, "refuses to overwrite")
	_, err = run(t, "init-config", "--force", path)
	require.NoError(t, err)

	// Point the generated config at a database inside the temp dir.
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.UsesDefaultSecret(), "init-config writes a fresh secret")
	cfg.Database.DSN = filepath.Join(dir, "engihub.db")
	require.NoError(t, config.Save(path, cfg))

	out, err = run(t, "--config", path, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "migrated to version 1\n", out)

	out, err = run(t, "--config", path, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "already at version 1\n", out)

	_, err = os.Stat(cfg.Database.DSN)
	assert.NoError(t, err)
}

func TestMigrateRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[database]\ndriver = \"oracle\"\n"), 0600))

	_, err := run(t, "--config", path, "migrate")
	assert.Error(t, err)
}
