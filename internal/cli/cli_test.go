package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/roster/internal/config"
	"github.com/JonMunkholm/roster/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("STORE_DRIVER", config.DriverMemory)
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestImportCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "students.csv")
	require.NoError(t, os.WriteFile(path, []byte("Name,Class,Mobile\nRavi,,9000000002\n,St. Xavier's,\n,,\n"), 0o600))

	out, err := runCLI(t, "import", path)
	require.NoError(t, err)
	assert.Equal(t, "Successfully uploaded 2 students (1 rows skipped)\n", out)
}

func TestImportCommandRejectsUnsupportedFile(t *testing.T) {
	_, err := runCLI(t, "import", "students.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUnsupportedFile)
}

func TestImportCommandRequiresFile(t *testing.T) {
	_, err := runCLI(t, "import")
	assert.Error(t, err)
}

func TestConfigGetOnEmptyStore(t *testing.T) {
	out, err := runCLI(t, "config", "get", "ALGORITHM")
	require.NoError(t, err)
	assert.Equal(t, "\n", out)
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, err := openStore(context.Background(), &config.StoreConfig{Driver: "sqlite"}, nil)
	assert.ErrorContains(t, err, `unknown store driver "sqlite"`)
}

func TestOpenStoreMemory(t *testing.T) {
	store, err := openStore(context.Background(), &config.StoreConfig{
		Driver:             config.DriverMemory,
		StudentsCollection: core.StudentsCollection,
	}, nil)
	require.NoError(t, err)
	assert.NoError(t, store.Ping(context.Background()))
}
