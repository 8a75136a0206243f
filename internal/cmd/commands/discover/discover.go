package discover

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"

	"github.com/hashicorp-forge/requests/internal/cmd/base"
	"github.com/hashicorp-forge/requests/internal/config"
	"github.com/hashicorp-forge/requests/pkg/requests"
)

type Command struct {
	*base.Command

	// Fs is the filesystem configuration is read from.
	Fs afero.Fs

	flagConfig       string
	flagName         string
	flagVersion      string
	flagResource     string
	flagMethod       string
	flagDiscoveryURL string
	flagTemplate     bool
}

func (c *Command) Synopsis() string {
	return "Resolve a discovery descriptor to its URL template"
}

func (c *Command) Help() string {
	return `Usage: requests discover [options]

  Resolve an API name, version, resource path and method through the
  discovery service and print the absolute URL template. Values given as
  flags override the discovery block of the configuration file.

  Example:
    requests discover -name=chat -version=v1 -resource=spaces.messages -method=create` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("discover", flag.ContinueOnError))

	f.StringVar(
		&c.flagConfig, "config", "",
		"[REQUESTS_CONFIG] Path to the HCL configuration file",
	)
	f.StringVar(&c.flagName, "name", "", "API name")
	f.StringVar(&c.flagVersion, "version", "", "API version")
	f.StringVar(&c.flagResource, "resource", "", "Dot-separated resource path")
	f.StringVar(&c.flagMethod, "method", "", "Method name")
	f.StringVar(
		&c.flagDiscoveryURL, "discovery-url", "",
		"Discovery document URL template with {name} and {version} placeholders",
	)
	f.BoolVar(
		&c.flagTemplate, "template", false,
		"Print the normalized template and its placeholder names",
	)

	return f
}

func (c *Command) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
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

	var d requests.DiscoveryDescriptor
	if cfg.Service.Discovery != nil {
		d = *cfg.Service.Discovery
	}
	overlay(&d.Name, c.flagName)
	overlay(&d.Version, c.flagVersion)
	overlay(&d.Resource, c.flagResource)
	overlay(&d.Method, c.flagMethod)
	overlay(&cfg.Service.DiscoveryURL, c.flagDiscoveryURL)

	if err := d.Validate(); err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rt, err := cfg.Build(ctx, config.BuildOptions{Fs: c.Fs, Logger: c.Log})
	if err != nil {
		c.UI.Error(fmt.Sprintf("error initializing client: %v", err))
		return 1
	}
	defer rt.Close()

	resolved, err := rt.Discovery.Resolve(ctx, d)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error resolving %s: %v", d, err))
		return 1
	}

	if !c.flagTemplate {
		c.UI.Output(resolved)
		return 0
	}

	tmpl, err := requests.ParseTemplate(requests.ToTemplate(resolved))
	if err != nil {
		c.UI.Error(fmt.Sprintf("error parsing template: %v", err))
		return 1
	}
	c.UI.Output(tmpl.String())
	if names := tmpl.Names(); len(names) > 0 {
		c.UI.Output("placeholders: " + strings.Join(names, ", "))
	}
	return 0
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
