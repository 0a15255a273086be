package pdf

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/text/encoding/charmap"

	"constructflow/internal/models"
)

// Generator is the interface handlers depend on (easy to fake in tests).
type Generator interface {
	ApprovalReport(w io.Writer, task *models.Task) error
}

// ErrUnicodeFontRequired is returned when the text needs glyphs outside
// cp1252 and no TTF font is configured.
var ErrUnicodeFontRequired = errors.New("report text needs a unicode font, set report.font_path")

// SystemFontPaths are tried in order when no font path is configured.
var SystemFontPaths = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/TTF/DejaVuSans.ttf",
	"/usr/local/share/fonts/DejaVuSans.ttf",
}

// ApprovalReportGenerator renders a task and its approval chain.
type ApprovalReportGenerator struct {
	FontPath string // optional TTF with Cyrillic glyphs, e.g. "assets/fonts/DejaVuSans.ttf"
	fontName string
	now      func() time.Time
}

// NewApprovalReportGenerator uses fontPath, or the first installed
// SystemFontPaths entry when fontPath is empty.
func NewApprovalReportGenerator(fontPath string) *ApprovalReportGenerator {
	if fontPath == "" {
		fontPath = findSystemFont()
	}
	g := &ApprovalReportGenerator{FontPath: fontPath, now: time.Now}
	if fontPath != "" {
		g.fontName = "DejaVu"
	} else {
		g.fontName = "Helvetica"
	}
	return g
}

func (g *ApprovalReportGenerator) ApprovalReport(w io.Writer, task *models.Task) error {
	if task == nil {
		return fmt.Errorf("nil task")
	}
	if g.FontPath == "" {
		if err := checkLatin(task); err != nil {
			return err
		}
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Task #%d approval report", task.ID), true)
	pdf.SetAuthor("constructflow", false)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	tr := func(s string) string { return s }
	if g.FontPath != "" {
		pdf.AddUTF8Font(g.fontName, "", g.FontPath)
		pdf.AddUTF8Font(g.fontName, "B", g.FontPath)
	} else {
		tr = pdf.UnicodeTranslatorFromDescriptor("")
	}
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 18)
	pdf.CellFormat(0, 10, "APPROVAL REPORT", "", 1, "C", false, 0, "")
	pdf.SetFont(g.fontName, "", 12)
	pdf.CellFormat(0, 7, fmt.Sprintf("Task #%d, generated %s", task.ID, g.now().Format("02.01.2006 15:04")), "", 1, "C", false, 0, "")
	g.hr(pdf)

	g.sectionTitle(pdf, "Task")
	g.kvLine(pdf, "Title", tr(task.Title))
	if task.Category != "" {
		g.kvLine(pdf, "Category", tr(task.Category))
	}
	g.kvLine(pdf, "Status", string(task.Status))
	g.kvLine(pdf, "Approval level", string(task.CurrentApprovalLevel))
	g.kvLine(pdf, "Created by", userRef(task.CreatedBy))
	g.kvLine(pdf, "Director", userRef(task.AssignedDirector))
	g.kvLine(pdf, "Employee", userRef(task.AssignedEmployee))
	g.kvLine(pdf, "Created", task.CreatedAt.Format("02.01.2006 15:04"))
	g.kvLine(pdf, "Updated", task.UpdatedAt.Format("02.01.2006 15:04"))
	if task.Description != "" {
		pdf.Ln(1)
		pdf.SetFont(g.fontName, "", 11)
		pdf.MultiCell(0, 6, tr(task.Description), "", "L", false)
	}
	pdf.Ln(2)
	g.hr(pdf)

	g.sectionTitle(pdf, "Approval chain")
	if len(task.ApprovalChain) == 0 {
		pdf.SetFont(g.fontName, "", 11)
		pdf.CellFormat(0, 6, "No approval steps yet.", "", 1, "L", false, 0, "")
	} else {
		widths := []float64{10, 25, 30, 25, 40, 40}
		header := []string{"#", "Role", "Approver", "Status", "Requested", "Resolved"}
		pdf.SetFont(g.fontName, "B", 10)
		for i, h := range header {
			pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont(g.fontName, "", 10)
		for i, e := range task.ApprovalChain {
			resolved := "-"
			if e.ApprovedAt != nil {
				resolved = e.ApprovedAt.Format("02.01.2006 15:04")
			}
			row := []string{
				fmt.Sprintf("%d", i+1),
				string(e.ApproverRole),
				userRef(e.ApproverUserID),
				string(e.Status),
				e.CreatedAt.Format("02.01.2006 15:04"),
				resolved,
			}
			for j, c := range row {
				pdf.CellFormat(widths[j], 7, c, "1", 0, "C", false, 0, "")
			}
			pdf.Ln(-1)
		}
		for _, e := range task.ApprovalChain {
			if e.Status == models.EntryRejected {
				pdf.Ln(2)
				pdf.SetFont(g.fontName, "", 11)
				pdf.MultiCell(0, 6, tr("Rejected by "+string(e.ApproverRole)+": "+e.RejectionReason), "", "L", false)
			}
		}
	}

	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(g.fontName, "", 10)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	return pdf.Output(w)
}

func findSystemFont() string {
	for _, p := range SystemFontPaths {
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	return ""
}

// checkLatin fails when free text cannot be drawn with the core fonts.
func checkLatin(task *models.Task) error {
	texts := []string{task.Title, task.Category, task.Description}
	for _, e := range task.ApprovalChain {
		texts = append(texts, e.RejectionReason)
	}
	enc := charmap.Windows1252.NewEncoder()
	for _, s := range texts {
		if _, err := enc.String(s); err != nil {
			return fmt.Errorf("task %d: %w", task.ID, ErrUnicodeFontRequired)
		}
	}
	return nil
}

func userRef(id int64) string {
	if id == 0 {
		return "-"
	}
	return fmt.Sprintf("user #%d", id)
}

func (g *ApprovalReportGenerator) sectionTitle(pdf *gofpdf.Fpdf, s string) {
	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 7, s, "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
}

func (g *ApprovalReportGenerator) kvLine(pdf *gofpdf.Fpdf, key, val string) {
	pdf.SetFont(g.fontName, "B", 11)
	pdf.CellFormat(45, 6, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, val, "", 1, "L", false, 0, "")
}

func (g *ApprovalReportGenerator) hr(pdf *gofpdf.Fpdf) {
	y := pdf.GetY() + 1.5
	pdf.SetLineWidth(0.2)
	pdf.Line(20, y, 190, y)
	pdf.SetY(y + 2)
}
