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
	"asanapdf/internal/selection"
	"asanapdf/internal/service"
)

func init() {
	Register(&FieldsCmd{})
}

// FieldsCmd implements the fields command: the standard fields followed by
// the custom field catalog of a project.
type FieldsCmd struct{}

func (c *FieldsCmd) Name() string      { return "fields" }
func (c *FieldsCmd) Aliases() []string { return nil }
func (c *FieldsCmd) Synopsis() string  { return "List the fields that can be hidden" }
func (c *FieldsCmd) Usage() string     { return "asanapdf fields <project>" }
func (c *FieldsCmd) NeedsAuth() bool   { return true }

func (c *FieldsCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *FieldsCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
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

	for _, f := range selection.StandardFields {
		output.FormatField(out, "", string(f), "standard")
	}
	for _, d := range service.CustomFieldCatalog(tasks) {
		output.FormatField(out, d.ID, d.Name, d.Type)
	}
	return exitcode.Success
}
