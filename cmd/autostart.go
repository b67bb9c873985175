package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rein/internal/autostart"
)

func autostartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autostart",
		Short: "Manage starting the host on login",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "enable",
			Short: "Start \"rein host\" on login",
			RunE: func(cmd *cobra.Command, args []string) error {
				l, err := autostart.New()
				if err != nil {
					return err
				}
				if err := l.Enable(); err != nil {
					return fmt.Errorf("enable autostart: %w", err)
				}
				path, _ := l.Path()
				fmt.Fprintf(cmd.OutOrStdout(), "Autostart enabled: %s\n", path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "disable",
			Short: "Stop starting the host on login",
			RunE: func(cmd *cobra.Command, args []string) error {
				l, err := autostart.New()
				if err != nil {
					return err
				}
				if err := l.Disable(); err != nil {
					return fmt.Errorf("disable autostart: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Autostart disabled")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Report whether autostart is enabled",
			RunE: func(cmd *cobra.Command, args []string) error {
				l, err := autostart.New()
				if err != nil {
					return err
				}
				state := "disabled"
				if l.IsEnabled() {
					state = "enabled"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Autostart %s\n", state)
				return nil
			},
		},
	)

	return cmd
}
