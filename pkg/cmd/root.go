// Package cmd wires the kubedeck broker into a cobra CLI: interactive login,
// status checks, token fetches, and the bridge server the desktop UI uses.
package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kubedeck/kubedeck/pkg/config"
	"github.com/kubedeck/kubedeck/pkg/output"
)

type Options struct {
	ConfigPath   string
	OutputWriter io.Writer
}

type runtimeState struct {
	configPath   string
	outputFormat string
	verbose      bool
	writer       io.Writer

	cfg *config.Config
	log *zap.Logger
}

type runtimeKey struct{}

func DefaultOptions() Options {
	return Options{
		ConfigPath:   config.DefaultConfigPath(),
		OutputWriter: os.Stdout,
	}
}

func NewRootCommand(opts Options) *cobra.Command {
	rt := &runtimeState{configPath: opts.ConfigPath, writer: opts.OutputWriter}

	root := &cobra.Command{
		Use:           "kubedeck",
		Short:         "kubedeck token broker",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.configPath == "" {
				rt.configPath = config.DefaultConfigPath()
			}
			if rt.outputFormat == "" {
				rt.outputFormat = os.Getenv("KUBEDECK_OUTPUT")
			}
			if !rt.verbose {
				rt.verbose = strings.EqualFold(os.Getenv("KUBEDECK_VERBOSE"), "true")
			}
			if _, err := output.ParseFormat(rt.outputFormat); err != nil {
				return err
			}

			log, err := buildLogger(rt.verbose)
			if err != nil {
				return err
			}
			rt.log = log

			if cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}
			cfg, err := config.Load(rt.configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			rt.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to config file")
	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format: text, json, yaml")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "Enable verbose logging")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewAuthCommand(),
		NewTokenCommand(),
		NewServeCommand(),
		NewVersionCommand(),
	)

	return root
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) OutputFormat() output.Format {
	format, err := output.ParseFormat(rt.outputFormat)
	if err != nil {
		return output.FormatText
	}
	return format
}
