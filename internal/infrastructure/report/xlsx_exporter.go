// Package report renders work queues as spreadsheets for pharmacy staff.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/pharmacy-workflow/internal/application/port"
	"github.com/garyjia/pharmacy-workflow/internal/domain/entity"
)

// SheetName is the worksheet holding the exported queue
const SheetName = "Work Queue"

var headers = []string{
	"Case ID", "Kind", "Patient", "Stage", "Status", "Priority",
	"Assigned To", "Stage Entered", "Waiting (h)", "Notes",
}

// XLSXExporter writes a queue of cases as an xlsx workbook
type XLSXExporter struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewXLSXExporter creates a new xlsx exporter
func NewXLSXExporter(logger *zap.Logger) *XLSXExporter {
	return &XLSXExporter{
		logger: logger,
		now:    time.Now,
	}
}

// ContentType returns the MIME type of the workbook
func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Export writes one row per case, in the order given
func (e *XLSXExporter) Export(w io.Writer, cases []*entity.Case) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for col, h := range headers {
		e.setCell(f, col+1, 1, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, bold); err != nil {
		e.logger.Warn("Failed to style header row", zap.Error(err))
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		e.logger.Warn("Failed to freeze header row", zap.Error(err))
	}

	now := e.now()
	for i, c := range cases {
		row := i + 2
		waiting := now.Sub(c.Workflow.CurrentStageEnteredAt).Hours()
		if waiting < 0 {
			waiting = 0
		}

		values := []interface{}{
			c.ID,
			string(c.Kind),
			c.Patient.FullName(),
			c.Workflow.CurrentStage.Description(),
			string(c.Workflow.Status),
			yesNo(c.Workflow.Priority),
			c.Workflow.AssignedToUserID,
			c.Workflow.CurrentStageEnteredAt.UTC().Format(time.RFC3339),
			fmt.Sprintf("%.1f", waiting),
			len(c.Workflow.Notes),
		}
		for col, v := range values {
			e.setCell(f, col+1, row, v)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "A", 38); err != nil {
		e.logger.Warn("Failed to size id column", zap.Error(err))
	}
	if err := f.SetColWidth(SheetName, "C", "E", 28); err != nil {
		e.logger.Warn("Failed to size status columns", zap.Error(err))
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Work queue exported", zap.Int("rows", len(cases)))
	return nil
}

// setCell sets a cell value, logging rather than failing on a bad coordinate
func (e *XLSXExporter) setCell(f *excelize.File, col, row int, value interface{}) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err == nil {
		err = f.SetCellValue(SheetName, cell, value)
	}
	if err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.Int("col", col),
			zap.Int("row", row),
			zap.Error(err))
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

var _ port.QueueExporter = (*XLSXExporter)(nil)
