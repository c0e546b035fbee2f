package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alexbotov/xumm/pkg/xumm"
)

func newPayloadCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payload",
		Short: "Create, inspect, cancel and follow sign requests",
	}
	cmd.AddCommand(
		newPayloadCreateCommand(a),
		newPayloadGetCommand(a),
		newPayloadCancelCommand(a),
		newPayloadSubscribeCommand(a),
	)
	return cmd
}

type createFlags struct {
	txjson      string
	txblob      string
	userToken   string
	identifier  string
	instruction string
	expire      int
	submit      bool
	wait        bool
	timeout     time.Duration
}

func (f *createFlags) body() (*xumm.CreatePayload, error) {
	body := &xumm.CreatePayload{TxBlob: f.txblob, UserToken: f.userToken}
	if f.txjson != "" {
		if err := json.Unmarshal([]byte(f.txjson), &body.TxJSON); err != nil {
			return nil, fmt.Errorf("parse --txjson: %w", err)
		}
		if body.TxJSON.Type() == "" {
			return nil, fmt.Errorf("--txjson needs a TransactionType")
		}
	}
	if body.TxJSON == nil && body.TxBlob == "" {
		return nil, fmt.Errorf("one of --txjson or --txblob is required")
	}

	submit := f.submit
	body.Options = &xumm.PayloadOptions{Submit: &submit, Expire: f.expire}
	if f.identifier != "" || f.instruction != "" {
		body.CustomMeta = &xumm.CustomMeta{}
		if f.identifier != "" {
			body.CustomMeta.Identifier = &f.identifier
		}
		if f.instruction != "" {
			body.CustomMeta.Instruction = &f.instruction
		}
	}
	return body, nil
}

func newPayloadCreateCommand(a *app) *cobra.Command {
	f := &createFlags{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a sign request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := f.body()
			if err != nil {
				return err
			}
			client, err := a.secretClient()
			if err != nil {
				return err
			}

			if !f.wait {
				created, err := client.Payload.Create(cmd.Context(), body)
				if err != nil {
					return err
				}
				return a.print(created)
			}

			result, err := client.Payload.CreateAndSubscribe(cmd.Context(), body, a.followEvent)
			if err != nil {
				return err
			}
			if err := a.print(result.Created); err != nil {
				return err
			}
			return a.awaitOutcome(cmd.Context(), result.Subscription, f.timeout)
		},
	}
	cmd.Flags().StringVar(&f.txjson, "txjson", "", "transaction template as JSON")
	cmd.Flags().StringVar(&f.txblob, "txblob", "", "hex encoded transaction blob")
	cmd.Flags().StringVar(&f.userToken, "user-token", "", "push the request to the user behind this token")
	cmd.Flags().StringVar(&f.identifier, "identifier", "", "custom_meta identifier")
	cmd.Flags().StringVar(&f.instruction, "instruction", "", "instruction shown to the user")
	cmd.Flags().IntVar(&f.expire, "expire", 0, "expiry in minutes")
	cmd.Flags().BoolVar(&f.submit, "submit", true, "let the platform submit the signed transaction")
	cmd.Flags().BoolVar(&f.wait, "wait", false, "follow the request until it is resolved")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "give up waiting after this long (0 waits indefinitely)")
	return cmd
}

func newPayloadGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <uuid>",
		Short: "Show a sign request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.secretClient()
			if err != nil {
				return err
			}
			payload, err := client.Payload.Get(cmd.Context(), xumm.PayloadUUID(args[0]))
			if err != nil {
				return err
			}
			return a.print(payload)
		},
	}
}

func newPayloadCancelCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <uuid>",
		Short: "Cancel a sign request that is not opened yet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.secretClient()
			if err != nil {
				return err
			}
			deleted, err := client.Payload.Cancel(cmd.Context(), xumm.PayloadUUID(args[0]))
			if err != nil {
				return err
			}
			return a.print(deleted.Result)
		},
	}
}

func newPayloadSubscribeCommand(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "subscribe <uuid>",
		Short: "Follow a sign request until it is resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.secretClient()
			if err != nil {
				return err
			}
			sub, err := client.Payload.Subscribe(cmd.Context(), xumm.PayloadUUID(args[0]), a.followEvent)
			if err != nil {
				return err
			}
			return a.awaitOutcome(cmd.Context(), sub, timeout)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up waiting after this long (0 waits indefinitely)")
	return cmd
}

// followEvent prints every update and resolves on a signed or expired one
func (a *app) followEvent(ev *xumm.SubscriptionEvent) (any, error) {
	if err := a.print(ev.Data); err != nil {
		return nil, err
	}
	if _, ok := ev.Data["signed"]; ok {
		return ev.Data, nil
	}
	if expired, _ := ev.Data["expired"].(bool); expired {
		return ev.Data, nil
	}
	return nil, nil
}

// awaitOutcome waits for sub to settle and prints the final payload state
func (a *app) awaitOutcome(ctx context.Context, sub *xumm.Subscription, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	_, err := sub.Wait(ctx)
	if ctx.Err() != nil {
		a.log.Info("stopped waiting, closing subscription", zap.String("uuid", sub.UUID()))
		sub.Resolve(nil)
		<-sub.Closed()
		return fmt.Errorf("payload %s not resolved: %w", sub.UUID(), ctx.Err())
	}
	<-sub.Closed()
	if err != nil {
		return err
	}
	return a.print(sub.Payload())
}
