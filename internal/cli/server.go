package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"livequiz-service/internal/app"
	"livequiz-service/internal/config"
	"livequiz-service/internal/domain"
	"livequiz-service/internal/infra/memory"
	pgbank "livequiz-service/internal/infra/postgres"
	redisinfra "livequiz-service/internal/infra/redis"
	transport "livequiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the live quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// storeSweeper is implemented by both session stores; the server runs one
// background loop regardless of which backend is configured.
type storeSweeper interface {
	Sweep(now time.Time) int
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.BankLoader = memory.NewStaticBankLoader(sampleBank())
	if pool != nil {
		loader = pgbank.NewBankLoader(pool)
	}

	bankTTL := config.TTLDuration(cfg.Bank.TTL, 10*time.Minute)
	var bank app.QuizBank
	if redisClient != nil {
		bank = redisinfra.NewBankRepository(redisClient, loader, bankTTL)
	} else {
		bank = memory.NewBankRepository(loader, bankTTL)
	}

	// redis.ttl governs the redis store's liveness keys and retention;
	// session.retention only applies to the in-memory fallback.
	retention := config.TTLDuration(cfg.Session.Retention, time.Hour)
	var store app.SessionRepository
	if redisClient != nil {
		store = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		store = memory.NewSessionStore(retention)
	}

	service := app.NewLiveQuizService(store, bank, cfg.Server.BaseURL)
	handler := transport.NewHandler(service)
	watch := transport.NewWatchHandler(service)

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	go runSweeper(sweepCtx, store.(storeSweeper), config.TTLDuration(cfg.Session.SweepInterval, time.Minute))

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Routes(r)
	r.Get("/livequiz/{code}/watch", watch.ServeWatch)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting live quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runSweeper(ctx context.Context, store storeSweeper, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := store.Sweep(time.Now()); removed > 0 {
				log.Printf("retention sweep removed %d session(s)", removed)
			}
		}
	}
}

// sampleBank provides a demo saved quiz; production deployments load the
// bank from Postgres instead.
func sampleBank() map[string][]domain.Question {
	return map[string][]domain.Question{
		"demo-quiz": {
			{
				ID:     "q1",
				Prompt: "What is the capital of France?",
				Choices: map[string]string{
					"A": "Paris", "B": "London", "C": "Berlin", "D": "",
				},
				Correct: "A",
			},
			{
				ID:     "q2",
				Prompt: "Which planet is closest to the sun?",
				Choices: map[string]string{
					"A": "Venus", "B": "Mercury", "C": "Mars", "D": "Earth",
				},
				Correct: "B",
			},
		},
	}
}
