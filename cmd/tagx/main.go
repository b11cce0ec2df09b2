// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Command tagx renders tag templates against a content store.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"nickandperla.net/tagx/internal/config"
	"nickandperla.net/tagx/internal/render"
	"nickandperla.net/tagx/pkg/tagx"
)

// globalFlags override values from the config file.
type globalFlags struct {
	configPath string
	driver     string
	dsn        string
	site       string
	area       string
	language   string
	plain      bool
	strict     bool
	noStdlib   bool
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "tagx",
		Short:         "Render tag templates against a content store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "Config file (default $"+config.EnvVar+" or ./"+config.FileName+")")
	pf.StringVar(&g.driver, "driver", "", "Store driver: memory, sqlite, mysql or postgres")
	pf.StringVar(&g.dsn, "dsn", "", "Store data source name")
	pf.StringVar(&g.site, "site", "", "Serve content from a YAML site file")
	pf.StringVar(&g.area, "area", "", "Content area alias")
	pf.StringVar(&g.language, "lang", "", "Content language")
	pf.BoolVar(&g.plain, "plain", false, "Write error markers as plain text")
	pf.BoolVar(&g.strict, "strict", false, "Abort on the first error")
	pf.BoolVar(&g.noStdlib, "no-stdlib", false, "Disable the standard library prelude")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	root.AddCommand(newRenderCmd(g), newImportCmd(g), newReplCmd(g))
	return root
}

// load reads the config file and applies flag overrides.
func (g *globalFlags) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(g.configPath, os.Getenv)
	if err != nil {
		return nil, err
	}
	f := cmd.Flags()
	if f.Changed("driver") {
		cfg.Store.Driver = g.driver
	}
	if f.Changed("dsn") {
		cfg.Store.DSN = g.dsn
	}
	if f.Changed("site") {
		cfg.Site.File = g.site
	}
	if f.Changed("area") {
		cfg.Content.Area = g.area
	}
	if f.Changed("lang") {
		cfg.Content.Language = g.language
	}
	if g.plain {
		cfg.ErrorFormat = "plain"
	}
	if g.strict {
		cfg.Strict = true
	}
	if g.noStdlib {
		cfg.NoStdlib = true
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	return cfg, config.Validate(cfg)
}

func (g *globalFlags) runtime(cmd *cobra.Command) (*tagx.Runtime, *config.Config, error) {
	cfg, err := g.load(cmd)
	if err != nil {
		return nil, nil, err
	}
	r, err := tagx.NewFromConfig(cfg, cfg.Logger(os.Stderr))
	if err != nil {
		return nil, nil, err
	}
	return r, cfg, nil
}

func newRenderCmd(g *globalFlags) *cobra.Command {
	var (
		expr     string
		slot     string
		encoding string
		output   string
	)
	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render a template file, stdin, an expression or an area slot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, cfg, err := g.runtime(cmd)
			if err != nil {
				return err
			}
			defer r.Close()
			ctx := cmd.Context()

			var (
				out render.Output
				res *tagx.Result
			)
			switch {
			case expr != "":
				res, err = r.Render(ctx, expr, tagx.Context{})
				if res != nil {
					out = render.NewOutput(res.Text, ".html")
				}
			case len(args) == 1:
				out, res, err = r.RenderFile(ctx, args[0], tagx.Context{})
			case slot != "":
				if cfg.Content.Area == "" {
					return fmt.Errorf("--slot requires --area")
				}
				out, res, err = r.RenderArea(ctx, cfg.Content.Area, slot, tagx.Context{})
			default:
				data, rerr := io.ReadAll(cmd.InOrStdin())
				if rerr != nil {
					return fmt.Errorf("reading stdin: %w", rerr)
				}
				res, err = r.Render(ctx, string(data), tagx.Context{})
				if res != nil {
					out = render.NewOutput(res.Text, ".html")
				}
			}
			if res == nil {
				return err
			}

			if !cmd.Flags().Changed("encoding") {
				encoding = cfg.Output.Encoding
			}
			enc, perr := render.ParseEncoding(encoding)
			if perr != nil {
				return perr
			}
			w := render.Writer{Encoding: enc, Level: cfg.Output.Level, MinSize: cfg.Output.MinSize}
			dst := cmd.OutOrStdout()
			if output != "" {
				f, ferr := os.Create(output)
				if ferr != nil {
					return ferr
				}
				defer f.Close()
				dst = f
			}
			if _, werr := w.Write(dst, out); werr != nil {
				return werr
			}
			if err != nil {
				return err
			}
			if res.Failed {
				return fmt.Errorf("render finished with %d error(s)", len(res.Errors))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&expr, "eval", "e", "", "Render the given text")
	cmd.Flags().StringVar(&slot, "slot", "", "Render this slot of --area")
	cmd.Flags().StringVar(&encoding, "encoding", "identity", "Output encoding: identity, gzip or zstd")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func newImportCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import site.yaml",
		Short: "Load a YAML site file into the configured SQL store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load(cmd)
			if err != nil {
				return err
			}
			if cfg.Store.Driver == "memory" {
				return fmt.Errorf("import needs a persistent store; set --driver and --dsn")
			}
			cfg.Site.File = ""
			cfg.Content = config.ContentConfig{}
			r, err := tagx.NewFromConfig(cfg, cfg.Logger(os.Stderr))
			if err != nil {
				return err
			}
			defer r.Close()
			if err := r.Import(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s into %s store\n", args[0], cfg.Store.Driver)
			return nil
		},
	}
}
