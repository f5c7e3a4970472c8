package backup

import (
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

// ReportGenerator renders a snapshot summary as a one-page PDF: run mode,
// generation time, watermark if any, and a per-table row count. Like the
// workbook this is a convenience artifact and never fails the run.
type ReportGenerator struct{}

// NewReportGenerator creates a report generator
func NewReportGenerator() *ReportGenerator {
	return &ReportGenerator{}
}

// Generate writes the summary report for the snapshot to outPath
func (g *ReportGenerator) Generate(snapshot *Snapshot, runType RunType, outPath string) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Backup Report", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Mode: %s", runType), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("Generated: %s", snapshot.TakenAt.Format(time.RFC3339)), "", 1, "L", false, 0, "")
	if snapshot.Watermark != nil {
		pdf.CellFormat(0, 7, fmt.Sprintf("Changes since: %s", snapshot.Watermark.Format(time.RFC3339)), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Tables", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)

	for _, table := range snapshot.Tables {
		line := fmt.Sprintf("%s: %d rows", table.Name, len(table.Rows))
		pdf.CellFormat(0, 6, line, "", 1, "L", false, 0, "")
	}
	if len(snapshot.Tables) == 0 {
		pdf.CellFormat(0, 6, "No table changes captured.", "", 1, "L", false, 0, "")
	}

	if len(snapshot.Notes) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, "Errors", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, note := range snapshot.Notes {
			pdf.CellFormat(0, 6, fmt.Sprintf("%s: %s", note.Table, note.Err), "", 1, "L", false, 0, "")
		}
	}

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return NewArtifactError("failed to save report", err)
	}
	return nil
}
