package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"fintrack/internal/core"
)

var sheetNames = map[core.Kind]string{
	core.KindExpense: "Expenses",
	core.KindIncome:  "Income",
	core.KindSaving:  "Savings",
}

// SheetName is the workbook tab holding records of kind.
func SheetName(kind core.Kind) string {
	return sheetNames[kind]
}

func workbookHeader(kind core.Kind) []string {
	label := map[core.Kind]string{core.KindExpense: "Category", core.KindIncome: "Source", core.KindSaving: "Goal"}[kind]
	return []string{"ID", "Date", label, "Amount", "Description"}
}

// WriteWorkbook writes one sheet per kind with a header row, one row per
// record and a SUM row under the amount column.
func WriteWorkbook(w io.Writer, records map[core.Kind][]core.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	amountStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: ptr("#,##0.00")})
	if err != nil {
		return fmt.Errorf("create amount style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, kind := range core.Kinds() {
		name := SheetName(kind)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("rename default sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
		if err := writeSheet(f, name, kind, records[kind], headerStyle, amountStyle); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, kind core.Kind, records []core.Record, headerStyle, amountStyle int) error {
	header := workbookHeader(kind)
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	if err := f.SetCellStyle(sheet, "A1", "E1", headerStyle); err != nil {
		return err
	}

	for i, r := range records {
		row := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := []any{r.ID, r.Date.String(), r.Label, r.Amount.InexactFloat64(), r.Description}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, row, err)
		}
	}

	last := len(records) + 1
	total := last + 1
	if err := f.SetCellValue(sheet, fmt.Sprintf("C%d", total), "Total"); err != nil {
		return err
	}
	formula := "0"
	if len(records) > 0 {
		formula = fmt.Sprintf("SUM(D2:D%d)", last)
	}
	if err := f.SetCellFormula(sheet, fmt.Sprintf("D%d", total), formula); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "D2", fmt.Sprintf("D%d", total), amountStyle); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", "A", 38)
}

func ptr[T any](v T) *T { return &v }
