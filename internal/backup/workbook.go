package backup

import (
	"github.com/xuri/excelize/v2"
)

// maxSheetName is the hard limit xlsx imposes on sheet names
const maxSheetName = 31

// WorkbookGenerator renders a snapshot as an xlsx workbook with one sheet
// per table. The workbook is a convenience artifact: its failure never
// fails the run.
type WorkbookGenerator struct{}

// NewWorkbookGenerator creates a workbook generator
func NewWorkbookGenerator() *WorkbookGenerator {
	return &WorkbookGenerator{}
}

// Generate writes the workbook for the snapshot to outPath. Tables with no
// rows are omitted. Returns an error only when no sheet could be written or
// the file itself cannot be saved.
func (g *WorkbookGenerator) Generate(snapshot *Snapshot, outPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	written := 0
	for _, table := range snapshot.Tables {
		if len(table.Rows) == 0 {
			continue
		}
		if err := writeSheet(f, &table); err != nil {
			continue
		}
		written++
	}

	if written == 0 {
		return NewArtifactError("no table produced a worksheet", nil)
	}

	// drop the default sheet left over from NewFile
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(0)

	if err := f.SaveAs(outPath); err != nil {
		return NewArtifactError("failed to save workbook", err)
	}
	return nil
}

func writeSheet(f *excelize.File, table *TableData) error {
	name := sheetName(table.Name)
	if _, err := f.NewSheet(name); err != nil {
		return err
	}

	header := make([]any, len(table.Columns))
	for i, c := range table.Columns {
		header[i] = c.Name
	}
	if err := setRow(f, name, 1, header); err != nil {
		return err
	}

	for i, row := range table.Rows {
		if err := setRow(f, name, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, rowNum int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// sheetName truncates a table name to the xlsx sheet name limit
func sheetName(table string) string {
	if len(table) > maxSheetName {
		return table[:maxSheetName]
	}
	return table
}
