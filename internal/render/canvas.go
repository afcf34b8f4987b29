package render

import "io"

// Canvas is the drawing surface the layout is written against. Coordinates
// are millimetres from the top-left corner of the current page. Strings are
// UTF-8; a canvas that cannot draw a character substitutes it.
type Canvas interface {
	AddPage()
	PageSize() (width, height float64)

	SetFillColor(r, g, b int)
	SetTextColor(r, g, b int)
	SetDrawColor(r, g, b int)
	SetLineWidth(w float64)

	// SetFont selects the body font. style is "" or "B".
	SetFont(style string, size float64)

	FillRect(x, y, w, h float64)
	Line(x1, y1, x2, y2 float64)
	Text(x, y float64, s string)

	// SplitText wraps s to lines no wider than w in the current font.
	SplitText(s string, w float64) []string

	// Output writes the finished document.
	Output(w io.Writer) error
}

// Backend opens a fresh canvas for each document.
type Backend interface {
	Open() (Canvas, error)
}
