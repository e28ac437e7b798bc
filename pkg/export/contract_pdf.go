package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// ContractLine is one row of the contract line table.
type ContractLine struct {
	Position int
	CourseID string
	ClassID  string
	Hours    int
	Source   string
}

// ContractSignatureStatus describes whether a party has signed.
type ContractSignatureStatus struct {
	Role     string
	SignedBy string
	SignedAt *time.Time
}

// ContractDocument carries everything printed on a contract PDF.
type ContractDocument struct {
	Issuer       string
	ContractID   string
	Version      int
	LecturerName string
	LecturerNIDN string
	AcademicYear string
	Term         string
	YearLevel    int
	StartDate    time.Time
	EndDate      time.Time
	Status       string
	Duties       []string
	Lines        []ContractLine
	TotalHours   int
	HourlyRate   *float64
	Salary       *float64
	Signatures   []ContractSignatureStatus
}

// ContractPDF renders teaching contracts with gofpdf.
type ContractPDF struct{}

// NewContractPDF constructs a contract renderer.
func NewContractPDF() *ContractPDF {
	return &ContractPDF{}
}

// Render produces the PDF bytes for doc.
func (r *ContractPDF) Render(doc ContractDocument) ([]byte, error) {
	if doc.ContractID == "" {
		return nil, fmt.Errorf("contract id required")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetTitle("Teaching Contract "+doc.ContractID, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	if doc.Issuer != "" {
		pdf.CellFormat(0, 8, strings.ToUpper(doc.Issuer), "", 1, "C", false, 0, "")
	}
	pdf.CellFormat(0, 8, "TEACHING CONTRACT", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("No. %s  rev. %d  status %s", doc.ContractID, doc.Version, doc.Status), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	field := func(label, value string) {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(40, 6, label, "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, value, "", 1, "", false, 0, "")
	}
	lecturer := doc.LecturerName
	if doc.LecturerNIDN != "" {
		lecturer += " (NIDN " + doc.LecturerNIDN + ")"
	}
	field("Lecturer", lecturer)
	field("Academic year", fmt.Sprintf("%s, term %s, year %d", doc.AcademicYear, doc.Term, doc.YearLevel))
	field("Period", fmt.Sprintf("%s to %s", doc.StartDate.Format("2006-01-02"), doc.EndDate.Format("2006-01-02")))
	pdf.Ln(3)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "Duties", "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	for i, duty := range doc.Duties {
		pdf.MultiCell(0, 5, fmt.Sprintf("%d. %s", i+1, duty), "", "", false)
	}
	pdf.Ln(3)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "Teaching load", "", 1, "", false, 0, "")
	widths := []float64{12, 55, 55, 25, 33}
	headers := []string{"#", "Course", "Class", "Hours", "Source"}
	pdf.SetFont("Arial", "B", 9)
	for i, header := range headers {
		pdf.CellFormat(widths[i], 7, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, line := range doc.Lines {
		pdf.CellFormat(widths[0], 6, strconv.Itoa(line.Position), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[1], 6, line.CourseID, "1", 0, "", false, 0, "")
		pdf.CellFormat(widths[2], 6, line.ClassID, "1", 0, "", false, 0, "")
		pdf.CellFormat(widths[3], 6, strconv.Itoa(line.Hours), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 6, line.Source, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(widths[0]+widths[1]+widths[2], 6, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[3], 6, strconv.Itoa(doc.TotalHours), "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[4], 6, "", "1", 1, "", false, 0, "")
	pdf.Ln(3)

	field("Hourly rate", FormatAmount(doc.HourlyRate))
	field("Salary", FormatAmount(doc.Salary))
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "Signatures", "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	for _, sig := range doc.Signatures {
		state := "not signed"
		if sig.SignedAt != nil {
			state = fmt.Sprintf("signed by %s on %s", sig.SignedBy, sig.SignedAt.UTC().Format(time.RFC3339))
		}
		field(sig.Role, state)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// FormatAmount prints a money value with two decimals or "pending" when unset.
func FormatAmount(v *float64) string {
	if v == nil {
		return "pending"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
