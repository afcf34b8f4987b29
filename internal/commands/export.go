package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"asanapdf/internal/config"
	"asanapdf/internal/exitcode"
	"asanapdf/internal/preset"
	"asanapdf/internal/render"
	"asanapdf/internal/selection"
	"asanapdf/internal/service"
)

func init() {
	Register(&ExportCmd{})
}

// ExportCmd implements the export command. The project and tasks come from
// the arguments or from a preset file; arguments win.
type ExportCmd struct {
	intro      string
	introFile  string
	presetPath string
	savePreset string
	outDir     string
	all        bool
	hide       string
	hideCustom string

	backend render.Backend
	now     func() time.Time
}

// SetBackend replaces the PDF backend (for testing).
func (c *ExportCmd) SetBackend(b render.Backend) {
	c.backend = b
}

// SetClock sets the time used for the file name (for testing).
func (c *ExportCmd) SetClock(now func() time.Time) {
	c.now = now
}

func (c *ExportCmd) Name() string      { return "export" }
func (c *ExportCmd) Aliases() []string { return []string{"pdf"} }
func (c *ExportCmd) Synopsis() string  { return "Export selected tasks to a PDF" }
func (c *ExportCmd) NeedsAuth() bool   { return true }

func (c *ExportCmd) Usage() string {
	return "asanapdf export [--all] [--hide <fields>] [--hide-custom <fields>] [--intro <text>] [--intro-file <path>] [--preset <file>] [--save-preset <file>] [--out <dir>] [<project> [task...]]"
}

func (c *ExportCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.intro, "intro", "", "")
	fs.StringVar(&c.introFile, "intro-file", "", "")
	fs.StringVar(&c.presetPath, "preset", "", "")
	fs.StringVar(&c.savePreset, "save-preset", "", "")
	fs.StringVar(&c.outDir, "out", ".", "")
	fs.BoolVar(&c.all, "all", false, "")
	fs.StringVar(&c.hide, "hide", "", "")
	fs.StringVar(&c.hideCustom, "hide-custom", "", "")
}

func (c *ExportCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	log := slog.Default()

	p := &preset.Preset{}
	if c.presetPath != "" {
		loaded, err := preset.Load(c.presetPath)
		if err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.UserError
		}
		p = loaded
	}

	projectRef, taskArgs, all := p.Project, p.Tasks, c.all
	if len(args) > 0 {
		projectRef = args[0]
	}
	if len(args) > 1 {
		taskArgs = args[1:]
		if all {
			fmt.Fprintln(errOut, "error: --all cannot be combined with task references")
			return exitcode.UserError
		}
	} else {
		all = all || p.All
	}
	if projectRef == "" {
		fmt.Fprintln(errOut, "error: project required")
		return exitcode.UserError
	}

	var refs []TaskRef
	if !all {
		parsed, err := ParseTaskRefs(taskArgs)
		if errors.Is(err, ErrTaskRefRequired) {
			fmt.Fprintln(errOut, "error: no tasks selected (pass task numbers or --all)")
			return exitcode.UserError
		}
		if err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.UserError
		}
		refs = parsed
	}

	intro, err := c.introduction(p)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	project, err := resolveProject(ctx, svc, projectRef)
	if err != nil {
		return reportError(errOut, err)
	}
	tasks, err := svc.ListTasks(ctx, project.ID)
	if err != nil {
		return reportError(errOut, err)
	}

	// The document is built from the last projection the selection sent.
	var rendered []selection.RenderedTask
	state := selection.New(log)
	state.OnChange(func(projection []selection.RenderedTask) {
		rendered = projection
		log.Debug("selection changed", "tasks", len(projection))
	})
	state.SelectProject(project, tasks)
	if all {
		state.SelectAllTasks()
	} else {
		ids, err := resolveTaskRefs(tasks, refs)
		if err != nil {
			return reportError(errOut, err)
		}
		for _, id := range ids {
			if err := state.ToggleTask(id); err != nil {
				return reportError(errOut, err)
			}
		}
	}

	if err := p.Apply(state); err != nil {
		return reportError(errOut, err)
	}
	if err := state.ApplyToggles(hidden(splitList(c.hide)), hidden(splitList(c.hideCustom))); err != nil {
		return reportError(errOut, err)
	}

	now := c.clock()
	renderer := render.New(c.backendFor(cfg, now), cfg.BannerTitle, log)

	path, err := writeFileAtomic(c.outDir, render.Filename(now()), func(w io.Writer) error {
		return renderer.Render(w, rendered, intro)
	})
	if err != nil {
		var unavailable *render.RenderUnavailableError
		switch {
		case errors.Is(err, render.ErrNoTasks):
			fmt.Fprintln(errOut, "error: no tasks selected")
			return exitcode.UserError
		case errors.As(err, &unavailable):
			return reportError(errOut, err)
		default:
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.RenderError
		}
	}

	log.Info("export written", "project", project.ID, "tasks", len(rendered), "path", path)

	if c.savePreset != "" {
		saved := &preset.Preset{
			Project:      project.ID,
			All:          all,
			Fields:       merge(p.Fields, hidden(splitList(c.hide))),
			CustomFields: merge(p.CustomFields, hidden(splitList(c.hideCustom))),
			Introduction: intro,
		}
		if !all {
			saved.Tasks = taskArgs
		}
		if err := saved.Save(c.savePreset); err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.UserError
		}
	}
	if !cfg.Quiet {
		fmt.Fprintln(out, path)
	}
	return exitcode.Success
}

// introduction picks the text from --intro, --intro-file or the preset.
func (c *ExportCmd) introduction(p *preset.Preset) (string, error) {
	switch {
	case c.intro != "" && c.introFile != "":
		return "", errors.New("--intro and --intro-file are mutually exclusive")
	case c.intro != "":
		return c.intro, nil
	case c.introFile != "":
		data, err := os.ReadFile(c.introFile)
		if err != nil {
			return "", fmt.Errorf("failed to read introduction: %w", err)
		}
		return string(data), nil
	default:
		return p.Introduction, nil
	}
}

func (c *ExportCmd) clock() func() time.Time {
	if c.now != nil {
		return c.now
	}
	return time.Now
}

func (c *ExportCmd) backendFor(cfg *config.Config, now func() time.Time) render.Backend {
	if c.backend != nil {
		return c.backend
	}
	return &render.PDFBackend{FontFile: cfg.FontFile, Title: cfg.BannerTitle, Now: now}
}

// hidden turns a list of names into "off" toggles.
func hidden(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = false
	}
	return m
}

// merge returns the toggles of base overridden by over.
func merge(base, over map[string]bool) map[string]bool {
	if len(base) == 0 && len(over) == 0 {
		return nil
	}
	m := make(map[string]bool, len(base)+len(over))
	for k, v := range base {
		m[k] = v
	}
	for k, v := range over {
		m[k] = v
	}
	return m
}

// writeFileAtomic writes name in dir through a temporary file, so a failed
// render never leaves a partial document behind.
func writeFileAtomic(dir, name string, write func(io.Writer) error) (string, error) {
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, ".asana-tasks-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", err
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write output file: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
