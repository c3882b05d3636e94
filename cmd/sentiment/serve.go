package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/go-sentiment/internal/classify"
	"github.com/example/go-sentiment/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions over HTTP",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			svc := classify.NewService()
			defer svc.Close()

			a, err := classify.LoadFile(cfg.Paths.ArtifactPath)
			if err != nil {
				return err
			}

			if err := svc.Replace(a); err != nil {
				return err
			}

			slog.Info("artifact loaded",
				slog.String("path", cfg.Paths.ArtifactPath),
				slog.Int("seq_len", a.SeqLen),
			)

			srv := server.New(cfg, svc)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			slog.Info("listening", slog.String("addr", cfg.Server.ListenAddr))

			return srv.Start(ctx)
		},
	}

	return cmd
}
