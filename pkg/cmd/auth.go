package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kubedeck/kubedeck/pkg/output"
)

func NewAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the broker's login session",
	}
	cmd.AddCommand(
		newAuthLoginCommand(),
		newAuthStatusCommand(),
		newAuthLogoutCommand(),
	)
	return cmd
}

func newAuthLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			b, err := buildBroker(rt)
			if err != nil {
				return err
			}
			info, err := b.Login(cmd.Context())
			if err != nil {
				return err
			}
			if format := rt.OutputFormat(); format != output.FormatText {
				return output.WriteObject(rt.Writer(), format, info)
			}
			if info.Username != "" {
				_, _ = fmt.Fprintf(rt.Writer(), "Logged in as %s\n", info.Username)
			} else {
				_, _ = fmt.Fprintln(rt.Writer(), "Logged in")
			}
			return nil
		},
	}
}

func newAuthStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show login status without prompting",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			b, err := buildBroker(rt)
			if err != nil {
				return err
			}
			status := b.CheckLoginStatus(cmd.Context())
			if format := rt.OutputFormat(); format != output.FormatText {
				return output.WriteObject(rt.Writer(), format, status)
			}
			if !status.LoggedIn {
				_, _ = fmt.Fprintln(rt.Writer(), "Not logged in")
				return nil
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Logged in as %s", status.Username)
			if status.TenantID != "" {
				_, _ = fmt.Fprintf(rt.Writer(), " (tenant %s)", status.TenantID)
			}
			_, _ = fmt.Fprintln(rt.Writer())
			return nil
		},
	}
}

func newAuthLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the persisted session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			b, err := buildBroker(rt)
			if err != nil {
				return err
			}
			if err := b.Logout(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(rt.Writer(), "Logged out")
			return nil
		},
	}
}
