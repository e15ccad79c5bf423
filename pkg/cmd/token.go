package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kubedeck/kubedeck/pkg/output"
)

func NewTokenCommand() *cobra.Command {
	var scopes []string
	var silent bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Acquire an access token",
		Long: "Acquire an access token for the given scopes. With --silent the " +
			"command never prompts and fails when no session exists; without it " +
			"an interactive login is started if needed.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			b, err := buildBroker(rt)
			if err != nil {
				return err
			}
			requested := scopes
			if len(requested) == 0 {
				requested = rt.cfg.Scopes.Management
			}
			result, err := b.AcquireToken(cmd.Context(), requested, silent)
			if err != nil {
				return err
			}
			if result == nil {
				return errors.New("not logged in; run `kubedeck auth login`")
			}
			if format := rt.OutputFormat(); format != output.FormatText {
				return output.WriteObject(rt.Writer(), format, map[string]any{
					"token":              result.Token,
					"expiresOnTimestamp": result.ExpiresOn.UnixMilli(),
				})
			}
			// Bare token on stdout so it can be piped into kubectl or curl.
			_, _ = fmt.Fprintln(rt.Writer(), result.Token)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "Scope to request (repeatable; defaults to the management scopes)")
	cmd.Flags().BoolVar(&silent, "silent", false, "Never prompt; fail if no cached session exists")
	return cmd
}
