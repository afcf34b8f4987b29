package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
)

const (
	coreFamily = "Helvetica"
	utf8Family = "body"
)

// PDFBackend produces A4 PDF documents with fpdf. When FontFile is set the
// TrueType font is embedded and any UTF-8 text can be drawn; otherwise the
// core Helvetica font is used and text is limited to Windows-1252.
type PDFBackend struct {
	FontFile string
	Title    string

	// Now stamps the document metadata. Defaults to time.Now.
	Now func() time.Time
}

var _ Backend = (*PDFBackend)(nil)

// Open implements Backend.
func (b *PDFBackend) Open() (Canvas, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	// SplitText wraps to the width minus both cell margins.
	pdf.SetCellMargin(0)

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	pdf.SetCreationDate(now())
	pdf.SetCreator("asanapdf", false)
	if b.Title != "" {
		pdf.SetTitle(b.Title, true)
	}

	c := &pdfCanvas{pdf: pdf, family: coreFamily}
	if b.FontFile != "" {
		font, err := os.ReadFile(b.FontFile)
		if err != nil {
			return nil, fmt.Errorf("font file: %w", err)
		}
		pdf.AddUTF8FontFromBytes(utf8Family, "", font)
		pdf.AddUTF8FontFromBytes(utf8Family, "B", font)
		if pdf.Err() {
			return nil, fmt.Errorf("failed to load font %s: %w", b.FontFile, pdf.Error())
		}
		c.family = utf8Family
		c.utf8 = true
	}
	return c, nil
}

// pdfCanvas adapts *fpdf.Fpdf to Canvas.
type pdfCanvas struct {
	pdf    *fpdf.Fpdf
	family string
	utf8   bool
}

func (c *pdfCanvas) AddPage() { c.pdf.AddPage() }
func (c *pdfCanvas) PageSize() (float64, float64) { return c.pdf.GetPageSize() }
func (c *pdfCanvas) SetFillColor(r, g, b int) { c.pdf.SetFillColor(r, g, b) }
func (c *pdfCanvas) SetTextColor(r, g, b int) { c.pdf.SetTextColor(r, g, b) }
func (c *pdfCanvas) SetDrawColor(r, g, b int) { c.pdf.SetDrawColor(r, g, b) }
func (c *pdfCanvas) SetLineWidth(w float64) { c.pdf.SetLineWidth(w) }
func (c *pdfCanvas) SetFont(style string, size float64) { c.pdf.SetFont(c.family, style, size) }
func (c *pdfCanvas) FillRect(x, y, w, h float64) { c.pdf.Rect(x, y, w, h, "F") }
func (c *pdfCanvas) Line(x1, y1, x2, y2 float64) { c.pdf.Line(x1, y1, x2, y2) }

func (c *pdfCanvas) Text(x, y float64, s string) {
	if c.utf8 {
		s = basicPlane(s)
	} else {
		s = c.encode(s)
	}
	c.pdf.Text(x, y, s)
}

// SplitText wraps with fpdf's own measurement. For the core font the text
// is measured in Windows-1252, one rune per byte, and decoded back.
func (c *pdfCanvas) SplitText(s string, w float64) []string {
	if c.utf8 {
		return c.pdf.SplitText(basicPlane(s), w)
	}

	encoded := c.encode(s)
	runes := make([]rune, len(encoded))
	for i := 0; i < len(encoded); i++ {
		runes[i] = rune(encoded[i])
	}

	lines := c.pdf.SplitText(string(runes), w)
	for i, line := range lines {
		lines[i] = c.decode(line)
	}
	return lines
}

func (c *pdfCanvas) Output(w io.Writer) error {
	if c.pdf.Err() {
		return c.pdf.Error()
	}
	return c.pdf.Output(w)
}

// encode converts UTF-8 to Windows-1252 bytes. Characters the code page
// lacks become '?'.
func (c *pdfCanvas) encode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		ch, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			ch = '?'
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// basicPlane replaces characters above U+FFFF, which fpdf's UTF-8 width
// tables cannot index, with U+FFFD.
func basicPlane(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 0xFFFF {
			return utf8.RuneError
		}
		return r
	}, s)
}

// decode turns a line of byte-valued runes back into UTF-8.
func (c *pdfCanvas) decode(line string) string {
	var b strings.Builder
	for _, r := range line {
		b.WriteRune(charmap.Windows1252.DecodeByte(byte(r)))
	}
	return b.String()
}
