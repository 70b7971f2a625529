package cmd

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	relaygrpc "github.com/arthurdotwork/relay/internal/adapters/primary/grpc"
	"github.com/arthurdotwork/relay/internal/adapters/primary/httpapi"
	subscriber "github.com/arthurdotwork/relay/internal/adapters/primary/redis"
	"github.com/arthurdotwork/relay/internal/adapters/primary/websocket"
	"github.com/arthurdotwork/relay/internal/adapters/secondary/auth"
	"github.com/arthurdotwork/relay/internal/adapters/secondary/broadcaster"
	"github.com/arthurdotwork/relay/internal/adapters/secondary/store"
	"github.com/arthurdotwork/relay/internal/domain"
	"github.com/arthurdotwork/relay/internal/infrastructure/config"
	"github.com/arthurdotwork/relay/internal/infrastructure/log"
	"github.com/arthurdotwork/relay/internal/infrastructure/metrics"
	"github.com/arthurdotwork/relay/internal/infrastructure/redis"
	"github.com/arthurdotwork/relay/internal/infrastructure/runner"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	grpcserver "google.golang.org/grpc"
)

func Server(ctx context.Context, cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return errors.Wrap(err, "config.Load")
	}

	logFile := log.Config(log.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	defer logFile.Close()

	recorder := metrics.NewRecorder(cfg.NodeID)
	roomOpts := []domain.RoomManagerOption{domain.WithRecorder(recorder)}

	var (
		cluster     domain.Cluster
		redisClient *redis.Client
	)

	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(cfg.Redis.Addr)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx); err != nil {
			return errors.Wrap(err, "redisClient.Ping")
		}

		cluster = broadcaster.NewBroadcaster(redisClient, cfg.NodeID, cfg.Redis.Channel)
		roomOpts = append(roomOpts, domain.WithCluster(cluster))
	}

	rooms := domain.NewRoomManager(roomOpts...)
	registry := domain.NewRegistry(store.NewMemoryConnectionStore(), rooms, recorder)
	relay := domain.NewRelay(rooms, cluster, recorder)
	gateway := domain.NewGateway(auth.NewStaticAuthenticator(cfg.Auth.TokenTable()), registry, rooms, relay, recorder)

	wsHandler := websocket.NewHandler(gateway, websocket.Config{
		SendQueueSize:  cfg.Transport.SendQueueSize,
		WriteTimeout:   cfg.Transport.WriteTimeout,
		PongWait:       cfg.Transport.PongWait,
		MaxMessageSize: cfg.Transport.MaxMessageSize,
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.Routes(cfg.NodeID, wsHandler, rooms, registry, recorder.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcSrv := grpcserver.NewServer()
	relaygrpc.RegisterSessionServer(grpcSrv, relaygrpc.NewSessionHandler(gateway, cfg.Transport.SendQueueSize, cfg.Transport.WriteTimeout))

	slog.InfoContext(ctx, "starting relay", "node_id", cfg.NodeID, "cluster", cfg.Redis.Enabled())

	r := runner.New(ctx)

	r.Go(func(ctx context.Context) error {
		slog.InfoContext(ctx, "starting http server", "address", cfg.HTTPAddr)

		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "httpSrv.ListenAndServe")
		}

		slog.DebugContext(ctx, "http server stopped")
		return nil
	})

	r.Go(func(ctx context.Context) error {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return errors.Wrap(err, "net.Listen")
		}

		slog.InfoContext(ctx, "starting grpc server", "address", cfg.GRPCAddr)

		if err := grpcSrv.Serve(lis); err != nil {
			return errors.Wrap(err, "grpcSrv.Serve")
		}

		slog.DebugContext(ctx, "grpc server stopped")
		return nil
	})

	if redisClient != nil {
		sub := subscriber.NewSubscriber(redisClient, rooms, cfg.NodeID)

		r.Go(func(ctx context.Context) error {
			if err := sub.Subscribe(ctx, cfg.Redis.Channel); err != nil {
				return errors.Wrap(err, "sub.Subscribe")
			}

			slog.DebugContext(ctx, "subscriber stopped")
			return nil
		})
	}

	r.Go(func(ctx context.Context) error {
		<-ctx.Done()
		return shutdown(context.WithoutCancel(ctx), cfg.ShutdownTimeout, gateway, httpSrv, grpcSrv)
	})

	if err := r.Wait(); err != nil {
		return errors.Wrap(err, "runner.Wait")
	}

	return nil
}

// shutdown tells every client the server is closing, then stops both
// servers, forcing the gRPC one once timeout elapses.
func shutdown(ctx context.Context, timeout time.Duration, gateway *domain.Gateway, httpSrv *http.Server, grpcSrv *grpcserver.Server) error {
	slog.InfoContext(ctx, "initiating server shutdown")

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := gateway.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "error closing connections", "error", err)
	}

	if err := httpSrv.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "error shutting down http server", "error", err)
	}

	stopped := make(chan struct{})
	go func() {
		grpcSrv.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		slog.WarnContext(ctx, "graceful stop timed out, forcing")
		grpcSrv.Stop()
	}

	slog.InfoContext(ctx, "server stopped")
	return nil
}
