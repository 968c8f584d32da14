package receipt

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/jung-kurt/gofpdf"
)

// Brand is the fixed header of every receipt.
type Brand struct {
	Name    string `mapstructure:"name"`
	Hotline string `mapstructure:"hotline"`
	Email   string `mapstructure:"email"`
	Title   string `mapstructure:"title"`
	// Font is an optional TrueType file. When set, text is embedded as
	// UTF-8 so Vietnamese names render intact. Without it the core
	// Helvetica font is used and text is mapped to cp1252.
	Font string `mapstructure:"font"`
}

// DefaultBrand returns the storefront's brand header.
func DefaultBrand() Brand {
	return Brand{
		Name:    "SEEDLING MARKET",
		Hotline: "(+84) 999-439611",
		Email:   "seedlingmarket@company.com",
		Title:   "INVOICE",
	}
}

var (
	columnHeaders = []string{"Product ID", "Product name", "Quantity", "Unit price", "Total"}
	columnWidths  = []float64{30, 62, 22, 38, 38}
	columnAligns  = []string{"L", "L", "R", "R", "R"}
)

const (
	coreFamily = "Helvetica"
	utf8Family = "ReceiptBody"

	rowHeight = 8.0
	tableTop  = 55.0
)

// PDFGenerator renders receipts as A4 PDFs.
type PDFGenerator struct {
	Brand Brand
}

// NewPDFGenerator creates a generator with brand, falling back to DefaultBrand for empty fields.
func NewPDFGenerator(brand Brand) *PDFGenerator {
	def := DefaultBrand()
	if brand.Name == "" {
		brand.Name = def.Name
	}
	if brand.Hotline == "" {
		brand.Hotline = def.Hotline
	}
	if brand.Email == "" {
		brand.Email = def.Email
	}
	if brand.Title == "" {
		brand.Title = def.Title
	}
	return &PDFGenerator{Brand: brand}
}

func (g *PDFGenerator) ContentType() string { return "application/pdf" }

// Generate writes the receipt for in to w. The grand total is printed in the
// footer of every page.
func (g *PDFGenerator) Generate(ctx context.Context, in Input, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	family, tr := g.fonts(pdf)
	total := in.GrandTotal()

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(family, "B", 14)
		pdf.CellFormat(0, 10, tr(fmt.Sprintf("Total price: %s", FormatMoney(total))), "", 0, "R", false, 0, "")
	})
	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() > 1 {
			pdf.SetY(20)
			g.tableHeader(pdf, family, tr)
		}
	})
	pdf.SetAutoPageBreak(true, 25)
	pdf.AddPage()

	pdf.SetFont(family, "B", 18)
	pdf.CellFormat(0, 10, tr(g.Brand.Title), "", 1, "C", false, 0, "")

	pdf.SetFont(family, "", 12)
	pdf.SetXY(10, 30)
	pdf.Cell(120, 5, tr(g.Brand.Name))
	pdf.Cell(0, 5, tr("Customer: "+in.CustomerName))
	pdf.Ln(5)
	pdf.Cell(120, 5, tr("Hotline: "+g.Brand.Hotline))
	pdf.Cell(0, 5, "Date: "+FormatDate(in.Date))
	pdf.Ln(5)
	pdf.Cell(120, 5, tr("Email: "+g.Brand.Email))
	pdf.Ln(5)

	pdf.SetY(tableTop)
	g.tableHeader(pdf, family, tr)

	pdf.SetFont(family, "", 11)
	for _, it := range in.Items {
		row := []string{
			it.ProductID,
			it.ProductName,
			strconv.Itoa(it.Quantity),
			FormatMoney(it.UnitPrice),
			FormatMoney(it.LineTotal()),
		}
		for i, v := range row {
			pdf.CellFormat(columnWidths[i], rowHeight, tr(v), "1", 0, columnAligns[i], false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render receipt: %w", err)
	}
	return pdf.Output(w)
}

// fonts registers the text font on pdf and returns its family with the
// matching string translator.
func (g *PDFGenerator) fonts(pdf *gofpdf.Fpdf) (string, func(string) string) {
	if g.Brand.Font == "" {
		return coreFamily, pdf.UnicodeTranslatorFromDescriptor("")
	}
	// A single file serves both weights.
	pdf.AddUTF8Font(utf8Family, "", g.Brand.Font)
	pdf.AddUTF8Font(utf8Family, "B", g.Brand.Font)
	return utf8Family, func(s string) string { return s }
}

func (g *PDFGenerator) tableHeader(pdf *gofpdf.Fpdf, family string, tr func(string) string) {
	pdf.SetFont(family, "B", 11)
	pdf.SetFillColor(0, 136, 84)
	pdf.SetTextColor(255, 255, 255)
	for i, h := range columnHeaders {
		pdf.CellFormat(columnWidths[i], rowHeight, tr(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont(family, "", 11)
}
