package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "eak.log")
	logger, err := NewLogger(LoggerConfig{Level: "debug", OutputPath: path, Format: "json", Service: "eak"})
	require.NoError(t, err)

	logger.Info("Sync run completed")
	require.NoError(t, logger.Sync())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"service":"eak"`)
	assert.Contains(t, string(content), `"timestamp"`)
}

func TestNewLogger_BadLevelFallsBack(t *testing.T) {
	logger, err := NewLogger(LoggerConfig{Level: "loud", OutputPath: "stderr", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestValidateEndpointURL(t *testing.T) {
	assert.NoError(t, ValidateEndpointURL("https://finance.omniva.eu/finance/erp/"))
	assert.Error(t, ValidateEndpointURL("ftp://example.com"))
	assert.Error(t, ValidateEndpointURL("https://"))
	assert.Error(t, ValidateEndpointURL("://bad"))
}

func TestValidateRegistryCode(t *testing.T) {
	assert.NoError(t, ValidateRegistryCode("10137319"))
	assert.Error(t, ValidateRegistryCode("12"))
	assert.Error(t, ValidateRegistryCode("1013 7319"))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "token", SanitizeString("  tok\x00en\n"))
}
