package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/FlomaWen/party-game/internal/config"
	"github.com/FlomaWen/party-game/internal/game"
	"github.com/FlomaWen/party-game/internal/infra/jsonfile"
	"github.com/FlomaWen/party-game/internal/infra/memory"
	pgstore "github.com/FlomaWen/party-game/internal/infra/postgres"
	redisstore "github.com/FlomaWen/party-game/internal/infra/redis"
	transport "github.com/FlomaWen/party-game/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	store, cleanup, err := buildQuestionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	gameCfg := game.DefaultConfig()
	gameCfg.LeadIn = config.Duration(cfg.Game.LeadIn, gameCfg.LeadIn)
	gameCfg.AnswerWindow = config.Duration(cfg.Game.AnswerWindow, gameCfg.AnswerWindow)
	gameCfg.RevealGrace = config.Duration(cfg.Game.RevealGrace, gameCfg.RevealGrace)
	if cfg.Game.WinThreshold > 0 {
		gameCfg.WinThreshold = cfg.Game.WinThreshold
	}

	sessionCtx, cancelSession := context.WithCancel(ctx)
	defer cancelSession()
	coordinator := game.NewCoordinator(sessionCtx, store, gameCfg, clockwork.NewRealClock())

	wsHandler := transport.NewWSHandler(coordinator)
	adminHandler := transport.NewAdminHandler(store, coordinator)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /ws", wsHandler.ServeWS)
	adminHandler.Register(mux)
	if cfg.Server.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.Server.StaticDir)))
	}

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket connections are long-lived
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting trivia game server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildQuestionStore picks Postgres when configured and the JSON file
// fallback otherwise, wrapping either in a Redis or in-memory list cache.
func buildQuestionStore(ctx context.Context, cfg config.Config) (transport.QuestionStore, func(), error) {
	cleanup := func() {}

	var base transport.QuestionStore
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		cleanup = pool.Close
		base = pgstore.NewQuestionStore(pool)
		log.Info().Msg("using postgres question store")
	} else {
		file := cfg.Questions.File
		if file == "" {
			file = "questions.json"
		}
		base = jsonfile.NewQuestionStore(file)
		log.Info().Str("file", file).Msg("no postgres url, using json file question store")
	}

	ttl := config.Duration(cfg.Questions.CacheTTL, 5*time.Minute)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return redisstore.NewQuestionCache(client, base, ttl), cleanup, nil
	}
	return memory.NewQuestionCache(base, ttl), cleanup, nil
}
