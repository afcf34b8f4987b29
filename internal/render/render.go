// Package render lays out selected tasks as a branded, paginated document.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"asanapdf/internal/logger"
	"asanapdf/internal/selection"
)

// Page geometry in millimetres (A4 portrait).
const (
	Margin       = 20.0
	ContentWidth = 170.0
	BannerWidth  = 210.0
	BannerHeight = 40.0
	DividerY     = 45.0
	ContentTop   = 75.0
	LineHeight   = 7.0

	bannerTitleY  = 25.0
	introHeadingY = 55.0
	introBodyY    = 65.0
	dividerRight  = 190.0
	dividerWidth  = 0.5

	bannerFontSize  = 24.0
	headingFontSize = 16.0
	titleFontSize   = 20.0
	bodyFontSize    = 12.0
)

// Text printed for missing values.
const (
	UntitledTask = "Untitled Task"
	Unassigned   = "Unassigned"
	NotSet       = "Not set"
)

// DefaultTitle is the banner title used when none is configured.
const DefaultTitle = "Your Company Name"

var (
	brandColor   = [3]int{41, 128, 185}
	dividerColor = [3]int{200, 200, 200}
)

// ErrNoTasks is returned when asked to render an empty selection.
var ErrNoTasks = errors.New("no tasks selected")

// RenderUnavailableError reports that the drawing backend could not be
// initialised.
type RenderUnavailableError struct {
	Err error
}

func (e *RenderUnavailableError) Error() string {
	return fmt.Sprintf("document renderer unavailable: %v", e.Err)
}

func (e *RenderUnavailableError) Unwrap() error {
	return e.Err
}

// DocumentRenderer renders tasks and an optional introduction to w.
type DocumentRenderer interface {
	Render(w io.Writer, tasks []selection.RenderedTask, intro string) error
}

// Renderer implements DocumentRenderer on top of a Backend.
type Renderer struct {
	backend Backend
	title   string
	log     *slog.Logger
}

var _ DocumentRenderer = (*Renderer)(nil)

// New creates a renderer. An empty title uses DefaultTitle.
func New(backend Backend, title string, log *slog.Logger) *Renderer {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	return &Renderer{backend: backend, title: title, log: logger.OrDefault(log)}
}

// Render lays out the introduction and one task per page. Nothing is
// written to w unless the whole document was produced.
func (r *Renderer) Render(w io.Writer, tasks []selection.RenderedTask, intro string) error {
	if len(tasks) == 0 {
		return ErrNoTasks
	}

	canvas, err := r.backend.Open()
	if err != nil {
		return &RenderUnavailableError{Err: err}
	}

	d := &document{canvas: canvas, title: r.title, log: r.log}
	_, height := canvas.PageSize()
	d.maxY = height - Margin

	d.newPage()
	if intro = strings.TrimSpace(normalizeNewlines(intro)); intro != "" {
		d.introduction(intro)
	}
	for i, task := range tasks {
		if i > 0 {
			d.newPage()
		}
		d.task(task)
	}

	var buf bytes.Buffer
	if err := canvas.Output(&buf); err != nil {
		return fmt.Errorf("failed to produce document: %w", err)
	}
	r.log.Debug("document rendered", "tasks", len(tasks), "pages", d.pages, "bytes", buf.Len())

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// Filename returns the download name for a document produced at now.
func Filename(now time.Time) string {
	return fmt.Sprintf("asana-tasks-%d.pdf", now.UnixMilli())
}

// document tracks the cursor while drawing one render.
type document struct {
	canvas Canvas
	title  string
	log    *slog.Logger
	y      float64
	maxY   float64
	pages  int

	fontStyle string
	fontSize  float64
}

// font selects the current content font, restored after a page break.
func (d *document) font(style string, size float64) {
	d.fontStyle, d.fontSize = style, size
	d.canvas.SetFont(style, size)
}

func (d *document) newPage() {
	d.canvas.AddPage()
	d.pages++
	d.banner()
	d.y = ContentTop
}

func (d *document) banner() {
	c := d.canvas
	c.SetFillColor(brandColor[0], brandColor[1], brandColor[2])
	c.FillRect(0, 0, BannerWidth, BannerHeight)

	c.SetTextColor(255, 255, 255)
	c.SetFont("B", bannerFontSize)
	c.Text(Margin, bannerTitleY, d.title)

	c.SetDrawColor(dividerColor[0], dividerColor[1], dividerColor[2])
	c.SetLineWidth(dividerWidth)
	c.Line(Margin, DividerY, dividerRight, DividerY)

	c.SetTextColor(0, 0, 0)
}

// introduction shares the first page with the banner and is never
// page-broken. Lines below the bottom margin are dropped.
func (d *document) introduction(text string) {
	c := d.canvas
	d.font("B", headingFontSize)
	c.Text(Margin, introHeadingY, "Introduction")

	d.font("", bodyFontSize)
	lines := c.SplitText(text, ContentWidth)
	drawn := 0
	for i, line := range lines {
		y := introBodyY + float64(i)*LineHeight
		if y > d.maxY {
			break
		}
		c.Text(Margin, y, line)
		drawn++
	}
	if drawn < len(lines) {
		d.log.Warn("introduction clipped at the bottom of the first page", "lines", len(lines), "drawn", drawn)
	}
	d.y += float64(drawn) * LineHeight
}

func (d *document) task(t selection.RenderedTask) {
	c := d.canvas

	title := UntitledTask
	if t.Name != nil && strings.TrimSpace(*t.Name) != "" {
		title = *t.Name
	}
	d.font("B", titleFontSize)
	d.line(title, 2*LineHeight)

	d.font("", bodyFontSize)

	if t.Project != "" {
		d.line("Project: "+t.Project, LineHeight)
	}
	if t.Section != "" {
		d.line("Section: "+t.Section, 2*LineHeight)
	}

	if t.Assignee != nil {
		name := t.Assignee.Name
		if strings.TrimSpace(name) == "" {
			name = Unassigned
		}
		d.line("Assignee: "+name, LineHeight)
	}

	if t.DueOn != nil {
		d.line("Due Date: "+FormatDate(*t.DueOn), LineHeight)
	}

	if len(t.CustomFields) > 0 {
		for _, f := range t.CustomFields {
			d.line(f.Name+": "+f.Value, LineHeight)
		}
		d.y += LineHeight
	}

	if t.Notes != nil && strings.TrimSpace(*t.Notes) != "" {
		d.line("Description:", LineHeight)
		for _, l := range c.SplitText(normalizeNewlines(*t.Notes), ContentWidth) {
			d.line(l, LineHeight)
		}
	}
}

// line draws one line at the cursor, breaking the page first if the line
// would cross the bottom margin, then advances the cursor by advance.
func (d *document) line(text string, advance float64) {
	d.ensureSpace(LineHeight)
	d.canvas.Text(Margin, d.y, text)
	d.y += advance
}

func (d *document) ensureSpace(required float64) {
	if d.y+required <= d.maxY {
		return
	}

	d.newPage()
	d.canvas.SetFont(d.fontStyle, d.fontSize)
}

// FormatDate renders a YYYY-MM-DD date as "January 2, 2006". Empty input
// is NotSet; unparseable input is returned unchanged.
func FormatDate(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotSet
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return s
	}
	return t.Format("January 2, 2006")
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\r", "\n")
}
