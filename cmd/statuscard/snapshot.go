package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newSnapshotCmd(a *app) *cobra.Command {
	var (
		userID string
		asYAML bool
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the raw presence snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID = pick(userID, a.cfg.Discord.UserID)
			if userID == "" {
				return errors.New("a discord user id is required")
			}

			snapshot, err := a.lanyardClient().Presence(cmd.Context(), userID)
			if err != nil {
				return err
			}

			if asYAML {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				defer enc.Close()

				return enc.Encode(snapshot)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			return enc.Encode(snapshot)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "discord user id (overrides config)")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print YAML instead of JSON")

	return cmd
}
