package mail

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/walking-football-hub/wfh-backend/internal/programs"
)

// BrochureFilename is the attachment name on single program emails.
const BrochureFilename = "program-brochure.pdf"

// BuildProgramPDF renders the fixed-layout A4 brochure: title, program name,
// location, schedule, difficulty and description.
func BuildProgramPDF(p programs.Program) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 18, 18)
	pdf.AddPage()

	// Core fonts are cp1252; program text (en dashes, accents) must be
	// translated or it renders garbled.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "BU", 18)
	pdf.CellFormat(0, 10, "Walking Football Program", "", 1, "L", false, 0, "")
	pdf.Ln(4)

	name := p.Name
	if name == "" {
		name = "Program"
	}
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, tr(name), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 6, tr("Location: "+orDash(p.Location)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr("Schedule: "+orDash(p.Schedule)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr("Difficulty: "+orDash(p.Difficulty)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	description := p.Description
	if description == "" {
		description = "Program details attached."
	}
	pdf.MultiCell(0, 6, tr(description), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render brochure: %w", err)
	}
	return buf.Bytes(), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
