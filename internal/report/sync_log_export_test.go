package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/garyjia/eak-connector/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func TestSyncLogExporter_Write(t *testing.T) {
	companyID := int64(3)
	entries := []*entity.SyncLogEntry{
		{
			RunID:       "run-1",
			Name:        "vendor-bills",
			CompanyID:   &companyID,
			CompanyName: "Demo OÜ",
			Path:        "https://eak.example/erp",
			Func:        "POST",
			Level:       entity.SeverityError,
			Message:     "Demo OÜ\nPartner regNumber: 123 Not Found",
			Payload:     "<Invoice/>",
			CreatedAt:   time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
		},
		{
			RunID:     "run-1",
			Name:      "vendor-bills",
			Path:      "Empty auth/Url",
			Func:      "POST",
			Level:     entity.SeverityInfo,
			Message:   "Please add eAK auth token/eAK URL: Other",
			CreatedAt: time.Date(2024, 3, 1, 10, 30, 1, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewSyncLogExporter(zap.NewNop()).Write(&buf, entries))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, headers, rows[0])
	assert.Equal(t, "2024-03-01 10:30:00", rows[1][0])
	assert.Equal(t, "Demo OÜ", rows[1][3])
	assert.Equal(t, "ERROR", rows[1][4])
	assert.Equal(t, "<Invoice/>", rows[1][8])
	assert.Equal(t, "INFO", rows[2][4])
	assert.Equal(t, "", rows[2][3])
}

func TestSyncLogExporter_EmptyAndTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewSyncLogExporter(zap.NewNop()).Write(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	f.Close()

	row := rowValues(&entity.SyncLogEntry{Payload: strings.Repeat("x", maxCellPayload+10)})
	assert.Len(t, row[8].(string), maxCellPayload)
}
