package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirinyoku/slotbook/internal/domain"
	"github.com/kirinyoku/slotbook/internal/redis"
	redisrepo "github.com/kirinyoku/slotbook/internal/repository/redis"
)

func newTailCmd() *cobra.Command {
	var fromStart bool

	cmd := &cobra.Command{
		Use:       "tail webhooks|notifications",
		Short:     "Print side effects as they are emitted",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"webhooks", "notifications"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			rdb, err := redis.New(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
			if err != nil {
				return err
			}
			defer rdb.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())

			if args[0] == "webhooks" {
				err = redisrepo.NewWebhookPubSub(rdb).Subscribe(ctx, func(_ context.Context, w domain.Webhook) {
					_ = enc.Encode(w)
				})
			} else {
				err = tailNotifications(ctx, redisrepo.NewNotificationStream(rdb, 0), enc, fromStart)
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&fromStart, "from-start", false, "replay the notification stream from its first entry")

	return cmd
}

func tailNotifications(ctx context.Context, stream *redisrepo.NotificationStream, enc *json.Encoder, fromStart bool) error {
	lastID := "$"
	if fromStart {
		lastID = "0"
	}

	for ctx.Err() == nil {
		entries, err := stream.Read(ctx, lastID, 100, 5*time.Second)
		if err != nil {
			return fmt.Errorf("tail notifications: %w", err)
		}
		for _, e := range entries {
			if err := enc.Encode(e.Notification); err != nil {
				return err
			}
			lastID = e.ID
		}
	}

	return nil
}
