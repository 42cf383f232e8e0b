package report

import (
	"fmt"
	"io"

	"triaright-platform/models"

	"github.com/xuri/excelize/v2"
)

const resultsSheet = "Results"

var resultHeaders = []interface{}{
	"Attempt", "Name", "Email", "Attempt #", "Score", "Total", "Percentage", "Passed", "Auto submitted", "Submitted at",
}

// WriteResults writes an xlsx workbook with one row per submitted attempt.
func WriteResults(w io.Writer, examTitle string, rows []models.ResultRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetCellValue(resultsSheet, "A1", examTitle); err != nil {
		return err
	}
	if err := f.SetSheetRow(resultsSheet, "A2", &resultHeaders); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range rows {
		submitted := ""
		if r.SubmittedAt != nil {
			submitted = r.SubmittedAt.Format("2006-01-02 15:04:05")
		}
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			return err
		}
		values := []interface{}{
			r.AttemptID, r.UserName, r.UserEmail, r.AttemptNumber, r.Score, r.Total,
			r.Percentage, yesNo(r.Passed), yesNo(r.AutoSubmitted), submitted,
		}
		if err := f.SetSheetRow(resultsSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(resultsSheet, "B", "C", 28); err != nil {
		return err
	}
	_, err := f.WriteTo(w)
	return err
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
