// Package report renders the sync audit log for operators.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/garyjia/eak-connector/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// SheetName is the worksheet holding the exported entries
const SheetName = "Sync Log"

// maxCellPayload keeps payloads under the xlsx per-cell character limit
const maxCellPayload = 32000

var headers = []string{"Created At", "Run", "Job", "Company", "Level", "Endpoint", "Method", "Message", "Payload"}

// SyncLogExporter writes sync log entries as an xlsx workbook
type SyncLogExporter struct {
	logger *zap.Logger
}

// NewSyncLogExporter creates a new exporter
func NewSyncLogExporter(logger *zap.Logger) *SyncLogExporter {
	return &SyncLogExporter{logger: logger}
}

// Write renders entries into a single-sheet workbook and writes it to w
func (e *SyncLogExporter) Write(w io.Writer, entries []*entity.SyncLogEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	last, _ := excelize.ColumnNumberToName(len(headers))
	if err := f.SetCellStyle(SheetName, "A1", last+"1", bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, entry := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := rowValues(entry)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "A", 20); err != nil {
		e.logger.Warn("Failed to set column width", zap.Error(err))
	}
	if err := f.SetColWidth(SheetName, "H", "H", 60); err != nil {
		e.logger.Warn("Failed to set column width", zap.Error(err))
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Sync log exported", zap.Int("entries", len(entries)))
	return nil
}

func rowValues(entry *entity.SyncLogEntry) []interface{} {
	payload := entry.Payload
	if len(payload) > maxCellPayload {
		payload = payload[:maxCellPayload]
	}
	return []interface{}{
		entry.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		entry.RunID,
		entry.Name,
		entry.CompanyName,
		strings.ToUpper(string(entry.Level)),
		entry.Path,
		entry.Func,
		entry.Message,
		payload,
	}
}
