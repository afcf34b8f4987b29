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
	Register(&ProjectsCmd{})
}

// ProjectsCmd implements the projects command.
// With arguments, only projects whose name contains the search term are shown.
type ProjectsCmd struct{}

func (c *ProjectsCmd) Name() string      { return "projects" }
func (c *ProjectsCmd) Aliases() []string { return []string{"ls"} }
func (c *ProjectsCmd) Synopsis() string  { return "List projects" }
func (c *ProjectsCmd) Usage() string     { return "asanapdf projects [search...]" }
func (c *ProjectsCmd) NeedsAuth() bool   { return true }

func (c *ProjectsCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ProjectsCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	projects, err := svc.ListProjects(ctx)
	if err != nil {
		return reportError(errOut, err)
	}

	projects = service.FilterProjects(projects, strings.Join(args, " "))
	if len(projects) == 0 {
		if !cfg.Quiet {
			fmt.Fprintln(out, "no projects found")
		}
		return exitcode.Success
	}

	for _, p := range projects {
		output.FormatProject(out, p)
	}
	return exitcode.Success
}
