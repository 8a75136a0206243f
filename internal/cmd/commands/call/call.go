package call

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/hashicorp-forge/requests/internal/cmd/base"
	"github.com/hashicorp-forge/requests/internal/config"
	"github.com/hashicorp-forge/requests/pkg/requests"
)

type Command struct {
	*base.Command

	// Fs is the filesystem configuration and credentials are read from.
	Fs afero.Fs

	flagConfig  string
	flagMethod  string
	flagURL     string
	flagVars    map[string]string
	flagParams  []string
	flagHeaders map[string]string
	flagFields  []string
	flagData    string
	flagFormat  string
	flagRetry   bool
	flagFail    bool
}

func (c *Command) Synopsis() string {
	return "Build and send a request to the configured service"
}

func (c *Command) Help() string {
	return `Usage: requests call [options]

  Build a request against the service described in the configuration file,
  send it and print the JSON response.

  Examples:
    requests call -config=chat.hcl -var name=spaces/AAAA
    requests call -url=https://api.example.com/v1/things -param q=x -format=yaml` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("call", flag.ContinueOnError))

	f.StringVar(
		&c.flagConfig, "config", "",
		"[REQUESTS_CONFIG] Path to the HCL configuration file",
	)
	f.StringVar(
		&c.flagMethod, "method", "GET",
		"HTTP method",
	)
	f.StringVar(
		&c.flagURL, "url", "",
		"Explicit request URL, used instead of the service base URL",
	)
	f.KeyValueVar(
		&c.flagVars, "var",
		"Base URL template value as key=value (repeatable)",
	)
	f.StringSliceVar(
		&c.flagParams, "param",
		"Query parameter as key=value, kept in the given order (repeatable)",
	)
	f.KeyValueVar(
		&c.flagHeaders, "header",
		"Request header as key=value (repeatable)",
	)
	f.StringSliceVar(
		&c.flagFields, "field",
		"Field to project in the response (repeatable)",
	)
	f.StringVar(
		&c.flagData, "data", "",
		"JSON object sent as the request body",
	)
	f.StringVar(
		&c.flagFormat, "format", "json",
		"Output format (json, yaml)",
	)
	f.BoolVar(
		&c.flagRetry, "retry", true,
		"Retry once after the rate limit resets when the response is a 429",
	)
	f.BoolVar(
		&c.flagFail, "fail", false,
		"Treat non-2xx responses as transport errors. A 429 is still retried first when -retry is set",
	)

	return f
}

func (c *Command) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	if c.flagFormat != "json" && c.flagFormat != "yaml" {
		c.UI.Error(fmt.Sprintf("unsupported format %q (must be 'json' or 'yaml')", c.flagFormat))
		return 1
	}

	configPath := c.flagConfig
	if val, ok := os.LookupEnv("REQUESTS_CONFIG"); ok && configPath == "" {
		configPath = val
	}

	if c.Fs == nil {
		c.Fs = afero.NewOsFs()
	}

	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(c.Fs, configPath)
		if err != nil {
			c.UI.Error(fmt.Sprintf("error loading configuration: %v", err))
			return 1
		}
	}
	c.Log.SetLevel(hclog.LevelFromString(cfg.LogLevel))

	params, err := parseParams(c.flagParams)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error parsing query parameters: %v", err))
		return 1
	}

	var body map[string]any
	if c.flagData != "" {
		if err := json.Unmarshal([]byte(c.flagData), &body); err != nil {
			c.UI.Error(fmt.Sprintf("error parsing request body: %v", err))
			return 1
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rt, err := cfg.Build(ctx, config.BuildOptions{Fs: c.Fs, Logger: c.Log})
	if err != nil {
		c.UI.Error(fmt.Sprintf("error initializing client: %v", err))
		return 1
	}
	defer rt.Close()

	svc, err := rt.Service(ctx)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error creating service: %v", err))
		return 1
	}

	req, err := svc.CreateRequest(c.flagMethod, requests.Target{
		URL:  c.flagURL,
		Vars: c.flagVars,
	}, requests.RequestOptions{
		Params:  params,
		Body:    body,
		Headers: c.flagHeaders,
	})
	if err != nil {
		c.UI.Error(fmt.Sprintf("error creating request: %v", err))
		return 1
	}
	for _, field := range c.flagFields {
		req.AddField(field)
	}
	if c.flagFail {
		req.SetMuteExceptions(false)
	}

	var resp *requests.Response
	if c.flagRetry {
		resp, err = req.SendWithRetry(ctx)
	} else {
		resp, err = req.Send(ctx)
	}
	if err != nil {
		c.UI.Error(fmt.Sprintf("error sending request: %v", err))
		return 1
	}

	out, err := render(resp, c.flagFormat)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error rendering response: %v", err))
		return 1
	}
	c.UI.Output(out)

	if resp.StatusCode() >= 300 {
		c.UI.Error(fmt.Sprintf("request returned status %d", resp.StatusCode()))
		return 1
	}
	return 0
}

// parseParams turns key=value pairs into ordered query parameters. Repeated
// keys accumulate values.
func parseParams(pairs []string) (*requests.Params, error) {
	params := requests.NewParams()
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		params.Add(key, value)
	}
	return params, nil
}

// render formats the response body. Bodies that are not JSON are returned
// as text.
func render(resp *requests.Response, format string) (string, error) {
	if len(resp.Text()) == 0 {
		return "", nil
	}

	v, err := resp.JSON()
	if errors.Is(err, requests.ErrParse) {
		return resp.Text(), nil
	}
	if err != nil {
		return "", err
	}

	switch format {
	case "yaml":
		b, err := yaml.Marshal(v)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(b), "\n"), nil
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
