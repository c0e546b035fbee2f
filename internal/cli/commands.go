package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexbotov/xumm/pkg/xumm"
)

var timeNow = time.Now

func newPingCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the API credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.secretClient()
			if err != nil {
				return err
			}
			details, err := client.Ping(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(details)
		},
	}
}

func newAuthorizeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "authorize <ott>",
		Short: "Exchange an xApp one-time token for a JWT and keep it in the token store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, release, err := a.tokenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			client, err := a.client(xumm.FlowJWT, store)
			if err != nil {
				return err
			}
			auth, err := client.Authorize(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			pong, err := client.PingJWT(cmd.Context())
			if err != nil {
				return err
			}
			expires, err := xumm.TokenExpiry(auth.JWT)
			if err != nil {
				return err
			}
			return a.print(map[string]any{
				"ott":     auth.OTT,
				"app":     pong.AppName,
				"expires": expires,
			})
		},
	}
}

func newRatesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rates <currency>",
		Short: "Show XRP and USD rates for a fiat currency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.secretClient()
			if err != nil {
				return err
			}
			rates, err := client.Rates(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(rates)
		},
	}
}

func newStorageCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Read and write the application's JSON storage",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Show the stored document",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				client, err := a.secretClient()
				if err != nil {
					return err
				}
				data, err := client.Storage.Get(cmd.Context())
				if err != nil {
					return err
				}
				return a.print(data)
			},
		},
		&cobra.Command{
			Use:   "set <json>",
			Short: "Replace the stored document",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if !json.Valid([]byte(args[0])) {
					return fmt.Errorf("document is not valid JSON")
				}
				client, err := a.secretClient()
				if err != nil {
					return err
				}
				stored, err := client.Storage.Set(cmd.Context(), json.RawMessage(args[0]))
				if err != nil {
					return err
				}
				return a.print(map[string]bool{"stored": stored})
			},
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Clear the stored document",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				client, err := a.secretClient()
				if err != nil {
					return err
				}
				stored, err := client.Storage.Delete(cmd.Context())
				if err != nil {
					return err
				}
				return a.print(map[string]bool{"stored": stored})
			},
		},
	)
	return cmd
}
