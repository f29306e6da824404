package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/api"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/chat"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/events"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/logger"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/moderation"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/realtime"
	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/store"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().String("redis-addr", "", "redis address for cross-instance match events [env: REDIS_ADDR]")

	viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("redis.addr", serveCmd.Flags().Lookup("redis-addr"))
}

func serve(ctx context.Context) error {
	log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		return fmt.Errorf("creating a logger: %w", err)
	}
	defer log.Sync()

	config, err := getConfig(viper.GetViper())
	if err != nil {
		return fmt.Errorf("getting a config: %w", err)
	}
	if config.Auth.JWTSecret == "" {
		return errors.New("auth.jwt-secret is required (set JWT_SECRET)")
	}

	log.Info("starting matchcore",
		zap.String("version", version),
		zap.String("addr", config.Addr),
		zap.String("store", config.Store.Driver),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := store.Open(ctx, config.storeOptions())
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer backend.Close()

	broker := events.NewBroker(log)
	hub := realtime.NewHub(log)
	pings := []func(context.Context) error{backend.Ping}

	// With Redis every instance publishes there and feeds its own broker from
	// the subscription, so sockets on any instance hear about every match.
	var publisher matching.Publisher = broker
	if config.Redis.Addr != "" {
		bus, err := events.NewRedisBus(ctx, config.Redis.Addr, config.Redis.Channel, log)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer bus.Close()
		if err := bus.StartForwarder(ctx, func(ctx context.Context, evt matching.MatchFormed) {
			_ = broker.PublishMatchFormed(ctx, evt)
		}); err != nil {
			return err
		}
		publisher = bus
		pings = append(pings, bus.Ping)
	}

	engine := matching.NewEngine(backend, backend, publisher, log, config.engineConfig())
	chatSvc := chat.NewService(backend, engine, hub, log)
	modSvc := moderation.NewService(backend, backend, engine, log)

	srv := &http.Server{
		Addr: config.Addr,
		Handler: api.NewRouter(api.Deps{
			Engine:     engine,
			Chat:       chatSvc,
			Moderation: modSvc,
			Hub:        hub,
			Profiles:   backend,
			Ping: func(ctx context.Context) error {
				for _, ping := range pings {
					if err := ping(ctx); err != nil {
						return err
					}
				}
				return nil
			},
		}, api.Options{
			JWTSecret:   []byte(config.Auth.JWTSecret),
			CORSOrigins: config.CORS.Origins,
		}, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		broker.Consume(gctx, chatSvc.OnMatchFormed)
		return nil
	})
	g.Go(func() error {
		broker.Consume(gctx, hub.OnMatchFormed)
		return nil
	})
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
