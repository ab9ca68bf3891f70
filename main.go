package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"sms-ledger/internal/amqp"
	"sms-ledger/internal/config"
	"sms-ledger/internal/ingest"
	"sms-ledger/internal/logger"
)

func main() {
	migrateCmd := flag.Bool("migrate", false, "Apply database migrations and exit")
	seedDemoCmd := flag.Bool("seed-demo", false, "Ingest demo bank messages (idempotent)")
	publishText := flag.String("publish", "", "Publish one raw SMS text to the ingestion queue and exit")
	publishSender := flag.String("sender", "", "Sender id attached to the -publish message")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// amounts go over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *publishText != "" {
		if err := publishMessage(ctx, cfg, log, *publishText, *publishSender); err != nil {
			log.Fatal().Err(err).Msg("Publishing message failed")
		}
		log.Info().Msg("Message published")
		return
	}

	// Initialize database
	db, err := openDB(ctx, cfg.DatabaseURL, cfg.DBConnectRetries, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := runMigrations(db, log); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
	if *migrateCmd {
		log.Info().Msg("Migration completed successfully")
		return
	}

	// Initialize Redis
	cache, err := newResponseCache(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis, continuing without cache")
		cache = nil
	}
	defer cache.Close()

	store := newPGStore(db)
	srv := newServer(store, cache, log, cfg.DefaultPeriodDays)

	if *seedDemoCmd {
		if err := seedDemoData(ctx, store, srv.pipeline, time.Now(), log); err != nil {
			log.Fatal().Err(err).Msg("Seeding demo data failed")
		}
		return
	}

	r := newRouter(srv, log)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var queue *amqp.Client
	if cfg.AMQPURL != "" {
		queue, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to message queue")
		}
		defer queue.Close()
	} else {
		log.Info().Msg("AMQP_URL not set, queue ingestion disabled")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Msg("Server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if queue != nil {
		g.Go(func() error {
			err := queue.Consume(gctx, func(ctx context.Context, msg ingest.Message) error {
				_, err := srv.pipeline.Process(ctx, msg)
				if isPermanentStoreError(err) {
					return amqp.Permanent(err)
				}
				return err
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Service stopped with error")
		return
	}
	log.Info().Msg("Service stopped")
}

// newRouter builds the gin engine with middleware and every route.
func newRouter(srv *server, log zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID(log))
	r.Use(requestLogging(log))

	// CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", requestIDHeader},
		ExposeHeaders:    []string{"Content-Length", requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	srv.routes(r)
	return r
}

// publishMessage sends one raw SMS to the ingestion queue, as a device
// forwarder would.
func publishMessage(ctx context.Context, cfg *config.Config, log zerolog.Logger, text, sender string) error {
	if cfg.AMQPURL == "" {
		return errors.New("AMQP_URL is not set")
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, log)
	if err != nil {
		return err
	}
	defer client.Close()

	return client.PublishMessage(ctx, ingest.Message{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    sender,
		Timestamp: time.Now(),
	})
}
