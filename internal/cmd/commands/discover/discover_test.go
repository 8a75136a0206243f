package discover

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/requests/internal/cmd/base"
)

const driveDiscoveryDoc = `{
  "name": "drive",
  "version": "v3",
  "baseUrl": "https://www.googleapis.com/drive/v3/",
  "resources": {
    "files": {
      "methods": {
        "get": {"path": "files/{fileId}"}
      },
      "resources": {
        "revisions": {
          "methods": {
            "get": {"path": "files/{fileId}/revisions/{+revisionId}"}
          }
        }
      }
    }
  }
}`

func discoveryServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path != "/apis/drive/v3/rest" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, driveDiscoveryDoc)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func newTestCommand(fs afero.Fs) (*Command, *cli.MockUi) {
	ui := cli.NewMockUi()
	return &Command{
		Command: base.NewCommand(hclog.NewNullLogger(), ui),
		Fs:      fs,
	}, ui
}

func TestRun_Flags(t *testing.T) {
	server, _ := discoveryServer(t)

	c, ui := newTestCommand(afero.NewMemMapFs())
	code := c.Run([]string{
		"-discovery-url", server.URL + "/apis/{name}/{version}/rest",
		"-name", "drive",
		"-version", "v3",
		"-resource", "files.revisions",
		"-method", "get",
	})

	require.Equal(t, 0, code, ui.ErrorWriter.String())
	assert.Equal(t, "https://www.googleapis.com/drive/v3/files/{fileId}/revisions/{+revisionId}\n",
		ui.OutputWriter.String())
}

func TestRun_Template(t *testing.T) {
	server, _ := discoveryServer(t)

	c, ui := newTestCommand(afero.NewMemMapFs())
	code := c.Run([]string{
		"-discovery-url", server.URL + "/apis/{name}/{version}/rest",
		"-name", "drive", "-version", "v3", "-resource", "files.revisions", "-method", "get",
		"-template",
	})

	require.Equal(t, 0, code, ui.ErrorWriter.String())
	assert.Equal(t,
		"https://www.googleapis.com/drive/v3/files/{fileId}/revisions/{revisionId}\n"+
			"placeholders: fileId, revisionId\n",
		ui.OutputWriter.String())
}

func TestRun_ConfigWithFlagOverride(t *testing.T) {
	server, hits := discoveryServer(t)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/drive.hcl", []byte(fmt.Sprintf(`
service {
  discovery_url = "%s/apis/{name}/{version}/rest"
  discovery {
    name     = "drive"
    version  = "v3"
    resource = "files.revisions"
    method   = "get"
  }
}
`, server.URL)), 0o644))

	c, ui := newTestCommand(fs)
	code := c.Run([]string{"-config", "/drive.hcl", "-resource", "files"})

	require.Equal(t, 0, code, ui.ErrorWriter.String())
	assert.Equal(t, "https://www.googleapis.com/drive/v3/files/{fileId}\n", ui.OutputWriter.String())
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestRun_Errors(t *testing.T) {
	server, _ := discoveryServer(t)
	discoveryURL := server.URL + "/apis/{name}/{version}/rest"

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "incomplete descriptor",
			args:    []string{"-name", "drive"},
			wantErr: "version is required",
		},
		{
			name:    "unknown method",
			args:    []string{"-discovery-url", discoveryURL, "-name", "drive", "-version", "v3", "-resource", "files", "-method", "nope"},
			wantErr: "unknown resource or method",
		},
		{
			name:    "unknown api",
			args:    []string{"-discovery-url", discoveryURL, "-name", "gmail", "-version", "v1", "-resource", "users", "-method", "get"},
			wantErr: "error resolving gmail/v1 users.get",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ui := newTestCommand(afero.NewMemMapFs())
			assert.Equal(t, 1, c.Run(tt.args))
			assert.Contains(t, ui.ErrorWriter.String(), tt.wantErr)
		})
	}
}
