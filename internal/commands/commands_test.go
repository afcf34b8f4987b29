package commands_test

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"asanapdf/internal/commands"
	"asanapdf/internal/config"
	"asanapdf/internal/exitcode"
	"asanapdf/internal/preset"
	"asanapdf/internal/render"
	"asanapdf/internal/service"
	"asanapdf/internal/testutil"
)

// runCommand is a helper to run a command with FakeService.
func runCommand(t *testing.T, cmd commands.Command, svc service.Service, args []string, quiet bool) (stdout, stderr string, code int) {
	t.Helper()

	var outBuf, errBuf bytes.Buffer

	cfg := &config.Config{
		Dir:   t.TempDir(),
		Quiet: quiet,
	}

	ctx := context.Background()
	code = cmd.Run(ctx, cfg, svc, args, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

// parseFlags registers cmd's flags and parses flagArgs into them.
func parseFlags(t *testing.T, cmd commands.Command, flagArgs ...string) {
	t.Helper()
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.RegisterFlags(fs)
	if err := fs.Parse(flagArgs); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
}

func str(s string) *string { return &s }

// sampleService has one project with three tasks and a custom field.
func sampleService() *testutil.FakeService {
	svc := testutil.NewFakeService()
	svc.AddProject("1201", "Launch")
	svc.AddProject("1202", "Marketing")
	svc.AddProject("1203", "Marketing Ops")
	svc.AddTask("1201", service.Task{
		ID:       "9001",
		Name:     "Write copy",
		Notes:    "Draft the launch post",
		Assignee: &service.Assignee{Name: "Ada"},
		DueOn:    "2024-03-15",
		CustomFields: []service.CustomField{
			{ID: "cf1", Name: "Priority", Type: "enum", DisplayValue: str("High")},
		},
	})
	svc.AddTask("1201", service.Task{ID: "9002", Name: "Review"})
	svc.AddTask("1201", service.Task{
		ID:   "9003",
		Name: "Ship",
		CustomFields: []service.CustomField{
			{ID: "cf2", Name: "Cost", Type: "number", Value: &service.FieldValue{Kind: service.KindNumber, Number: 12.5}},
		},
	})
	return svc
}

// Tests for version command
func TestVersionCommand(t *testing.T) {
	cmd := &commands.VersionCmd{}

	stdout, stderr, code := runCommand(t, cmd, nil, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "asanapdf 0.1.0\n" {
		t.Errorf("expected version output, got %q", stdout)
	}
}

// Tests for help command
func TestHelpCommand(t *testing.T) {
	registry := commands.NewRegistry()
	if err := registry.Register(&commands.VersionCmd{}); err != nil {
		t.Fatal(err)
	}
	if err := registry.Register(&commands.ProjectsCmd{}); err != nil {
		t.Fatal(err)
	}
	cmd := commands.NewHelpCmd(registry)

	stdout, stderr, code := runCommand(t, cmd, nil, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if !strings.HasPrefix(stdout, "Usage:\n  asanapdf projects [search...]  List projects\n  asanapdf version") {
		t.Errorf("expected commands sorted by name, got:\n%s", stdout)
	}
	if !strings.Contains(stdout, "--config <dir>") {
		t.Error("help output should list common flags")
	}
}

func TestRegistry_DuplicateAlias(t *testing.T) {
	registry := commands.NewRegistry()
	if err := registry.Register(&commands.ProjectsCmd{}); err != nil {
		t.Fatal(err)
	}
	if err := registry.Register(&commands.ProjectsCmd{}); err == nil {
		t.Error("expected error registering a duplicate command")
	}
	if cmd, ok := registry.Find("ls"); !ok || cmd.Name() != "projects" {
		t.Error("expected alias lookup to find projects")
	}
}

// Tests for projects command
func TestProjectsCommand(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.ProjectsCmd{}, sampleService(), nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	expected := "1201  Launch\n1202  Marketing\n1203  Marketing Ops\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestProjectsCommand_Search(t *testing.T) {
	stdout, _, code := runCommand(t, &commands.ProjectsCmd{}, sampleService(), []string{"MARKETING", "ops"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "1203  Marketing Ops\n" {
		t.Errorf("unexpected output %q", stdout)
	}
}

func TestProjectsCommand_NoneFound(t *testing.T) {
	stdout, _, _ := runCommand(t, &commands.ProjectsCmd{}, sampleService(), []string{"zzz"}, false)
	if stdout != "no projects found\n" {
		t.Errorf("unexpected output %q", stdout)
	}

	stdout, _, _ = runCommand(t, &commands.ProjectsCmd{}, sampleService(), []string{"zzz"}, true)
	if stdout != "" {
		t.Errorf("expected empty stdout in quiet mode, got %q", stdout)
	}
}

func TestProjectsCommand_Unauthorized(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.ListProjectsErr = &service.UpstreamError{Status: 401, Message: "Not Authorized"}

	_, stderr, code := runCommand(t, &commands.ProjectsCmd{}, svc, nil, false)

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if stderr != "error: token rejected by Asana (run: asanapdf login)\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestProjectsCommand_BackendErrors(t *testing.T) {
	for _, err := range []error{
		&service.UpstreamError{Status: 500, Message: "Server Error"},
		&service.NetworkError{Err: errors.New("connection refused")},
	} {
		svc := testutil.NewFakeService()
		svc.ListProjectsErr = err

		_, stderr, code := runCommand(t, &commands.ProjectsCmd{}, svc, nil, false)

		if code != exitcode.BackendError {
			t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
		}
		if stderr != "error: "+err.Error()+"\n" {
			t.Errorf("unexpected stderr %q", stderr)
		}
	}
}

// Tests for tasks command
func TestTasksCommand(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.TasksCmd{}, sampleService(), []string{"launch"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	expected := "------------\nLaunch\n------------\n" +
		"   1  Write copy  @Ada  due 2024-03-15\n" +
		"   2  Review\n" +
		"   3  Ship\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestTasksCommand_Errors(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		code   int
		stderr string
	}{
		{"no project", nil, exitcode.UserError, "error: project required\n"},
		{"not found", []string{"Nope"}, exitcode.UserError, "error: project not found: Nope\n"},
		{"exact name wins over substring", []string{"marketing"}, exitcode.Success, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, code := runCommand(t, &commands.TasksCmd{}, sampleService(), tt.args, false)
			if code != tt.code {
				t.Errorf("expected exit code %d, got %d", tt.code, code)
			}
			if stderr != tt.stderr {
				t.Errorf("expected %q, got %q", tt.stderr, stderr)
			}
		})
	}
}

func TestTasksCommand_AmbiguousName(t *testing.T) {
	svc := sampleService()
	svc.AddProject("1204", "launch")

	_, stderr, code := runCommand(t, &commands.TasksCmd{}, svc, []string{"Launch"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: ambiguous project name: Launch\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

// Tests for fields command
func TestFieldsCommand(t *testing.T) {
	stdout, _, code := runCommand(t, &commands.FieldsCmd{}, sampleService(), []string{"1201"}, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	expected := "-  name  (standard)\n" +
		"-  notes  (standard)\n" +
		"-  assignee  (standard)\n" +
		"-  due_date  (standard)\n" +
		"cf1  Priority  (enum)\n" +
		"cf2  Cost  (number)\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

// Tests for export command

type failingBackend struct{}

func (failingBackend) Open() (render.Canvas, error) {
	return nil, errors.New("font missing")
}

var exportTime = time.UnixMilli(1710000000000)

func newExportCmd(t *testing.T, flagArgs ...string) (*commands.ExportCmd, string) {
	t.Helper()
	dir := t.TempDir()
	cmd := &commands.ExportCmd{}
	parseFlags(t, cmd, append([]string{"--out", dir}, flagArgs...)...)
	cmd.SetClock(func() time.Time { return exportTime })
	return cmd, dir
}

func readDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestExportCommand_WritesPDF(t *testing.T) {
	cmd, dir := newExportCmd(t, "--intro", "Weekly summary")

	stdout, stderr, code := runCommand(t, cmd, sampleService(), []string{"Launch", "1", "3"}, false)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	path := filepath.Join(dir, "asana-tasks-1710000000000.pdf")
	if stdout != path+"\n" {
		t.Errorf("expected path output, got %q", stdout)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Error("expected a PDF document")
	}
	if names := readDir(t, dir); len(names) != 1 {
		t.Errorf("expected only the document in %s, got %v", dir, names)
	}
}

func TestExportCommand_AllQuiet(t *testing.T) {
	cmd, dir := newExportCmd(t, "--all", "--hide", "notes,due", "--hide-custom", "Priority")

	stdout, stderr, code := runCommand(t, cmd, sampleService(), []string{"1201"}, true)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if stdout != "" {
		t.Errorf("expected no output in quiet mode, got %q", stdout)
	}
	if names := readDir(t, dir); len(names) != 1 || names[0] != "asana-tasks-1710000000000.pdf" {
		t.Errorf("unexpected files %v", names)
	}
}

func TestExportCommand_Preset(t *testing.T) {
	presetPath := filepath.Join(t.TempDir(), "weekly.yaml")
	preset := "project: Launch\ntasks: [\"2\"]\nfields: {notes: false}\nintroduction: Hello\n"
	if err := os.WriteFile(presetPath, []byte(preset), 0600); err != nil {
		t.Fatal(err)
	}
	cmd, dir := newExportCmd(t, "--preset", presetPath)

	_, stderr, code := runCommand(t, cmd, sampleService(), nil, true)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if names := readDir(t, dir); len(names) != 1 {
		t.Errorf("expected one document, got %v", names)
	}
}

func TestExportCommand_SavePreset(t *testing.T) {
	saved := filepath.Join(t.TempDir(), "launch.yaml")
	cmd, dir := newExportCmd(t, "--save-preset", saved, "--hide", "due_date", "--intro", "Hi")

	_, stderr, code := runCommand(t, cmd, sampleService(), []string{"Launch", "1", "3"}, true)
	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if names := readDir(t, dir); len(names) != 1 {
		t.Errorf("expected one document, got %v", names)
	}

	p, err := preset.Load(saved)
	if err != nil {
		t.Fatalf("saved preset unreadable: %v", err)
	}
	if p.Project != "1201" || strings.Join(p.Tasks, ",") != "1,3" || p.All {
		t.Errorf("unexpected selection %+v", p)
	}
	if on, ok := p.Fields["due_date"]; !ok || on {
		t.Errorf("expected due_date hidden, got %v", p.Fields)
	}
	if p.Introduction != "Hi" {
		t.Errorf("expected introduction Hi, got %q", p.Introduction)
	}

	// The saved preset reproduces the export.
	again, dir2 := newExportCmd(t, "--preset", saved)
	if _, stderr, code := runCommand(t, again, sampleService(), nil, true); code != exitcode.Success {
		t.Fatalf("re-export failed with %d: %s", code, stderr)
	}
	if names := readDir(t, dir2); len(names) != 1 {
		t.Errorf("expected one document, got %v", names)
	}
}

func TestExportCommand_UserErrors(t *testing.T) {
	tests := []struct {
		name   string
		flags  []string
		args   []string
		stderr string
	}{
		{"no project", nil, nil, "error: project required\n"},
		{"no tasks", nil, []string{"Launch"}, "error: no tasks selected (pass task numbers or --all)\n"},
		{"bad ref", nil, []string{"Launch", "x"}, "error: invalid task reference: x\n"},
		{"out of range", nil, []string{"Launch", "7"}, "error: task number out of range: 7\n"},
		{"all with refs", []string{"--all"}, []string{"Launch", "1"}, "error: --all cannot be combined with task references\n"},
		{"unknown field", []string{"--hide", "color"}, []string{"Launch", "1"}, "error: unknown field: color\n"},
		{"unknown custom field", []string{"--hide-custom", "Effort"}, []string{"Launch", "1"}, "error: unknown field: Effort\n"},
		{"both intros", []string{"--intro", "a", "--intro-file", "b"}, []string{"Launch", "1"}, "error: --intro and --intro-file are mutually exclusive\n"},
		{"unknown project", nil, []string{"Nope", "1"}, "error: project not found: Nope\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, dir := newExportCmd(t, tt.flags...)
			_, stderr, code := runCommand(t, cmd, sampleService(), tt.args, false)
			if code != exitcode.UserError {
				t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
			}
			if stderr != tt.stderr {
				t.Errorf("expected %q, got %q", tt.stderr, stderr)
			}
			if names := readDir(t, dir); len(names) != 0 {
				t.Errorf("expected no files, got %v", names)
			}
		})
	}
}

func TestExportCommand_EmptyProject(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddProject("1", "Empty")
	cmd, _ := newExportCmd(t, "--all")

	_, stderr, code := runCommand(t, cmd, svc, []string{"Empty"}, false)

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: no tasks selected\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestExportCommand_RendererUnavailable(t *testing.T) {
	cmd, dir := newExportCmd(t, "--all")
	cmd.SetBackend(failingBackend{})

	_, stderr, code := runCommand(t, cmd, sampleService(), []string{"Launch"}, false)

	if code != exitcode.RenderError {
		t.Errorf("expected exit code %d, got %d", exitcode.RenderError, code)
	}
	if stderr != "error: document renderer unavailable: font missing\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if names := readDir(t, dir); len(names) != 0 {
		t.Errorf("expected no partial file, got %v", names)
	}
}

func TestExportCommand_TasksFetchFails(t *testing.T) {
	svc := sampleService()
	svc.ListTasksErr["1201"] = &service.UpstreamError{Status: 503}
	cmd, _ := newExportCmd(t, "--all")

	_, _, code := runCommand(t, cmd, svc, []string{"Launch"}, false)

	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
}
