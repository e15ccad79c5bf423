package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kubedeck/kubedeck/pkg/output"
	"github.com/kubedeck/kubedeck/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			info := version.GetBuildInfo()
			if format := rt.OutputFormat(); format != output.FormatText {
				return output.WriteObject(rt.Writer(), format, info)
			}
			_, _ = fmt.Fprintf(rt.Writer(), "kubedeck %s (%s, built %s, %s)\n",
				info.Version, info.GitCommit, info.BuildDate, info.Platform)
			return nil
		},
	}
}
