package httpadapter

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/gallery-curator/internal/core/domain"
)

const exportSheetName = "Search Results"

// writeResultsWorkbook streams the fused results as an XLSX report. Column
// order mirrors the JSON response so exported rows line up with API output.
func writeResultsWorkbook(w http.ResponseWriter, query string, results []domain.FusedResult) error {
	workbook := excelize.NewFile()
	defer func() {
		_ = workbook.Close()
	}()

	index, err := workbook.NewSheet(exportSheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	workbook.SetActiveSheet(index)
	if err := workbook.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	header := []any{"Rank", "Document ID", "Score", "Sources", "Item ID", "Category", "Headline", "Query"}
	if err := workbook.SetSheetRow(exportSheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header row: %w", err)
	}

	for i, result := range results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row coordinates: %w", err)
		}
		row := []any{
			i + 1,
			result.DocumentID,
			result.Score,
			result.Sources.String(),
			result.Document.ItemID,
			result.Document.Category,
			result.Document.Headline,
			query,
		}
		if err := workbook.SetSheetRow(exportSheetName, cell, &row); err != nil {
			return fmt.Errorf("write result row: %w", err)
		}
	}

	filename := fmt.Sprintf("search-results-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := workbook.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
