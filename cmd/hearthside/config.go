package main

import (
	"github.com/spf13/cobra"

	hearthside "github.com/hearthside/client-go"
)

type configView struct {
	BaseURL       string           `json:"baseUrl"`
	Store         string           `json:"store"`
	Authenticated bool             `json:"authenticated"`
	User          *hearthside.User `json:"user,omitempty"`
}

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or reset the remembered settings",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the base URL and session state",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				base, err := a.client.BaseURL(cmd.Context())
				if err != nil {
					return err
				}
				path, err := a.resolveStorePath()
				if err != nil {
					return err
				}
				return a.print(configView{
					BaseURL:       base,
					Store:         path,
					Authenticated: a.client.Authenticated(),
					User:          a.client.CurrentUser(),
				})
			},
		},
		&cobra.Command{
			Use:   "forget",
			Short: "Forget the remembered base URL",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.client.ForgetBaseURL(cmd.Context())
			},
		},
	)
	return cmd
}
