package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/garyjia/eak-connector/internal/application/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintNotifications(t *testing.T) {
	var buf bytes.Buffer
	printNotifications(&buf, []service.Notification{
		{Title: "eAK: Sync Vendor Bills", Type: service.NotifySuccess, Message: "Demo: 2 bills created"},
	})
	assert.Equal(t, "[success] eAK: Sync Vendor Bills: Demo: 2 bills created\n", buf.String())

	buf.Reset()
	printNotifications(&buf, nil)
	assert.Contains(t, buf.String(), "no company has eAK configured")
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"serve"},
		{"sync"},
		{"migrate"},
		{"invoice", "submit"},
		{"bill", "fetch-attachment"},
		{"logs", "export"},
		{"company", "configure"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestMigrateAndSyncCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("EAK_DATABASE_PATH", filepath.Join(dir, "eak.db"))
	t.Setenv("EAK_STORAGE_BASE_DIR", filepath.Join(dir, "files"))
	t.Setenv("EAK_LOGGER_OUTPUT_PATH", filepath.Join(dir, "eak.log"))

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs(append([]string{"--env-file", filepath.Join(dir, "missing.env")}, args...))
		err := rootCmd.Execute()
		return out.String(), err
	}

	out, err := run("migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "is up to date")

	out, err = run("sync", "partners")
	require.NoError(t, err)
	assert.Contains(t, out, "no company has eAK configured")

	_, err = run("sync", "everything")
	assert.Error(t, err)
}
