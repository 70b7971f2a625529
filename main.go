package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/arthurdotwork/relay/cmd"
	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sig
		slog.DebugContext(ctx, "received signal, initiating shutdown")
		cancel()
	}()

	if err := root().ExecuteContext(ctx); err != nil {
		slog.ErrorContext(ctx, "error running command", "error", err)
		os.Exit(1)
	}
}

func root() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "relay",
		Short:        "Real-time relay for collaborative design sessions",
		SilenceUsage: true,
	}

	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Run the relay server",
		RunE: func(c *cobra.Command, _ []string) error {
			return cmd.Server(c.Context(), c)
		},
	}
	serverCmd.Flags().String("config", "", "path to a YAML or JSON config file")

	clientCmd := &cobra.Command{
		Use:   "client",
		Short: "Open an interactive session against a relay server",
		RunE: func(c *cobra.Command, _ []string) error {
			return cmd.Client(c.Context(), c)
		},
	}
	clientCmd.Flags().String("addr", "localhost:56000", "relay gRPC address")
	clientCmd.Flags().String("token", "", "bearer token")

	rootCmd.AddCommand(serverCmd, clientCmd)

	return rootCmd
}
