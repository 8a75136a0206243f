package call

import (
	"fmt"
	"io"
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

func newTestCommand(fs afero.Fs) (*Command, *cli.MockUi) {
	ui := cli.NewMockUi()
	return &Command{
		Command: base.NewCommand(hclog.NewNullLogger(), ui),
		Fs:      fs,
	}, ui
}

func TestRun_ConfiguredService(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/spaces/AAAA/messages", r.URL.Path)
		assert.Equal(t, "threadKey=t1&fields=name%2Ctext", r.URL.RawQuery)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "1", r.Header.Get("X-Trace"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"text":"hello"}`, string(body))

		fmt.Fprint(w, `{"name":"spaces/AAAA/messages/1","text":"hello"}`)
	}))
	defer server.Close()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/chat.hcl", []byte(fmt.Sprintf(`
service {
  base_url = "%s/v1/{+parent}/messages"
}
auth {
  token = "secret"
}
`, server.URL)), 0o644))

	c, ui := newTestCommand(fs)
	code := c.Run([]string{
		"-config", "/chat.hcl",
		"-method", "post",
		"-var", "parent=spaces/AAAA",
		"-param", "threadKey=t1",
		"-header", "X-Trace=1",
		"-field", "name",
		"-field", "text",
		"-data", `{"text":"hello"}`,
	})

	require.Equal(t, 0, code, ui.ErrorWriter.String())
	assert.JSONEq(t, `{"name":"spaces/AAAA/messages/1","text":"hello"}`, ui.OutputWriter.String())
}

func TestRun_ExplicitURLWithYAML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "b=2&b=3&a=1", r.URL.RawQuery)
		fmt.Fprint(w, `{"items":[{"id":1}]}`)
	}))
	defer server.Close()

	c, ui := newTestCommand(afero.NewMemMapFs())
	code := c.Run([]string{
		"-url", server.URL + "/things",
		"-param", "b=2",
		"-param", "a=1",
		"-param", "b=3",
		"-format", "yaml",
	})

	require.Equal(t, 0, code, ui.ErrorWriter.String())
	assert.Equal(t, "items:\n    - id: 1\n", ui.OutputWriter.String())
}

func TestRun_NonJSONErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream down")
	}))
	defer server.Close()

	c, ui := newTestCommand(afero.NewMemMapFs())
	code := c.Run([]string{"-url", server.URL, "-retry=false"})

	assert.Equal(t, 1, code)
	assert.Equal(t, "upstream down\n", ui.OutputWriter.String())
	assert.Contains(t, ui.ErrorWriter.String(), "request returned status 502")
}

func TestRun_FailTurnsStatusIntoError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c, ui := newTestCommand(afero.NewMemMapFs())
	code := c.Run([]string{"-url", server.URL, "-fail"})

	assert.Equal(t, 1, code)
	assert.Contains(t, ui.ErrorWriter.String(), "error sending request")
	assert.Empty(t, ui.OutputWriter.String())
}

func TestRun_FailRetriesRateLimitFirst(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	c, ui := newTestCommand(afero.NewMemMapFs())
	code := c.Run([]string{"-url", server.URL, "-fail"})

	assert.Equal(t, 0, code, ui.ErrorWriter.String())
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Contains(t, ui.OutputWriter.String(), `"ok": true`)
}

func TestRun_InputErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"bad format", []string{"-format", "xml"}, `unsupported format "xml"`},
		{"bad param", []string{"-param", "novalue"}, "error parsing query parameters"},
		{"bad body", []string{"-url", "http://localhost", "-data", "[1"}, "error parsing request body"},
		{"missing config", []string{"-config", "/nope.hcl"}, "configuration file not found"},
		{"no url", nil, "error creating request"},
		{"vars without base url", []string{"-var", "a=b"}, "expecting base url for interpolation"},
		{"unknown flag", []string{"-nope"}, "error parsing flags"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ui := newTestCommand(afero.NewMemMapFs())
			assert.Equal(t, 1, c.Run(tt.args))
			assert.Contains(t, ui.ErrorWriter.String(), tt.wantErr)
		})
	}
}

func TestHelp(t *testing.T) {
	c, _ := newTestCommand(afero.NewMemMapFs())
	assert.NotEmpty(t, c.Synopsis())
	assert.Contains(t, c.Help(), "-param")
	assert.Contains(t, c.Help(), "-format=json")
}
