package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"asanapdf/internal/config"
	"asanapdf/internal/exitcode"
	"asanapdf/internal/output"
	"asanapdf/internal/service"
)

func init() {
	Register(&TasksCmd{})
}

// TasksCmd implements the tasks command. The printed numbers are the
// references accepted by export.
type TasksCmd struct{}

func (c *TasksCmd) Name() string      { return "tasks" }
func (c *TasksCmd) Aliases() []string { return nil }
func (c *TasksCmd) Synopsis() string  { return "List the tasks of a project" }
func (c *TasksCmd) Usage() string     { return "asanapdf tasks <project>" }
func (c *TasksCmd) NeedsAuth() bool   { return true }

func (c *TasksCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *TasksCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	ref := strings.TrimSpace(strings.Join(args, " "))
	if ref == "" {
		fmt.Fprintln(errOut, "error: project required")
		return exitcode.UserError
	}

	project, err := resolveProject(ctx, svc, ref)
	if err != nil {
		return reportError(errOut, err)
	}

	tasks, err := svc.ListTasks(ctx, project.ID)
	if err != nil {
		return reportError(errOut, err)
	}

	output.FormatHeader(out, project.Name)
	if len(tasks) == 0 {
		if !cfg.Quiet {
			fmt.Fprintln(out, "no tasks found")
		}
		return exitcode.Success
	}
	for i, task := range tasks {
		output.FormatTask(out, i+1, task)
	}
	return exitcode.Success
}
