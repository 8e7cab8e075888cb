package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"proctored-quiz-service/internal/app"
	"proctored-quiz-service/internal/config"
	"proctored-quiz-service/internal/domain"
	"proctored-quiz-service/internal/infra/memory"
	pgstore "proctored-quiz-service/internal/infra/postgres"
	redisstore "proctored-quiz-service/internal/infra/redis"
	"proctored-quiz-service/internal/monitor"
	transport "proctored-quiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	sessionTTL := config.Duration(cfg.Redis.SessionTTL, 2*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var teams app.TeamStore = memory.NewTeamStore()
	var questions app.QuestionSource = memory.NewStaticQuestionSource(sampleQuestions())
	if pool != nil {
		teams = pgstore.NewTeamStore(pool)
		questions = pgstore.NewQuestionSource(pool)
	}

	var ephemeral app.IdentityStore = memory.NewIdentityStore()
	var durable app.IdentityStore = memory.NewIdentityStore()
	if redisClient != nil {
		teams = redisstore.NewNotifyingTeamStore(teams, redisClient)
		ephemeral = redisstore.NewEphemeralIdentityStore(redisClient, sessionTTL)
		durable = redisstore.NewDurableIdentityStore(redisClient)

		cacheTTL := config.Duration(cfg.Quiz.CacheTTL, 10*time.Minute)
		questions = redisstore.NewQuestionCache(redisClient, questions, cacheTTL)
	}

	service := app.NewService(teams, questions, ephemeral, durable)
	cooldown := config.Duration(cfg.Quiz.MonitorCooldown, monitor.DefaultCooldown)
	wsHandler := transport.NewWSHandler(service, cooldown)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz service on :%s", finalPort)
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

// sampleQuestions provides a small demo pool; real deployments load the pool
// from Postgres.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:            "q1",
			Text:          "Which layer of the OSI model does TCP belong to?",
			OptionA:       "Network",
			OptionB:       "Transport",
			OptionC:       "Session",
			OptionD:       "Data link",
			CorrectAnswer: "B",
		},
		{
			ID:            "q2",
			Text:          "What does CPU stand for?",
			OptionA:       "Central Processing Unit",
			OptionB:       "Computer Personal Unit",
			OptionC:       "Central Program Utility",
			OptionD:       "Control Processing Unit",
			CorrectAnswer: "A",
		},
		{
			ID:            "q3",
			Text:          "Which data structure uses FIFO ordering?",
			OptionA:       "Stack",
			OptionB:       "Tree",
			OptionC:       "Queue",
			OptionD:       "Graph",
			CorrectAnswer: "C",
		},
	}
}
