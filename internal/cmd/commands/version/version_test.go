package version

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/stretchr/testify/assert"

	"github.com/hashicorp-forge/requests/internal/cmd/base"
	buildinfo "github.com/hashicorp-forge/requests/internal/version"
)

func TestRun(t *testing.T) {
	ui := cli.NewMockUi()
	c := &Command{Command: base.NewCommand(hclog.NewNullLogger(), ui)}

	assert.Equal(t, 0, c.Run(nil))
	assert.Equal(t, buildinfo.String()+"\n", ui.OutputWriter.String())
}
