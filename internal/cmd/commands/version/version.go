package version

import (
	"github.com/hashicorp-forge/requests/internal/cmd/base"
	buildinfo "github.com/hashicorp-forge/requests/internal/version"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Print the version"
}

func (c *Command) Help() string {
	return `Usage: requests version

  Print the version of this binary.`
}

func (c *Command) Run(args []string) int {
	c.UI.Output(buildinfo.String())
	return 0
}
