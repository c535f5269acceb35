package main

import (
	"context"
	"expvar"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qms/counter-service/internal/config"
	"qms/counter-service/internal/events"
	"qms/counter-service/internal/httpapi"
	"qms/counter-service/internal/live"
	"qms/counter-service/internal/notify"
	"qms/counter-service/internal/queue"
	"qms/counter-service/internal/store"
	"qms/counter-service/internal/store/filestore"
	"qms/counter-service/internal/store/postgres"
	"qms/counter-service/internal/telemetry"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup("counter-service")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	queueStore := filestore.NewStore(cfg.QueueFile, filestore.Options{FallbackPath: cfg.QueueFallbackFile})

	var history store.OrderRepository = store.NewMemoryRepository()
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect: %v", err)
		}
		defer pool.Close()
		archive := postgres.NewHistoryStore(pool)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := archive.EnsureSchema(ctx); err != nil {
			log.Fatalf("db schema: %v", err)
		}
		cancel()
		history = archive
	}

	var marks notify.Marks = notify.NewMemoryMarks(cfg.DedupTTL, cfg.DedupMax)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer client.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("redis unavailable addr=%s, using in-memory notification marks: %v", cfg.RedisAddr, err)
		} else {
			marks = notify.NewRedisMarks(client, cfg.DedupTTL)
		}
		cancel()
	}

	smtp := notify.SMTPSettings{
		Addr:     cfg.SMTPAddr,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}
	emailProvider := notify.NewProvider(cfg.EmailProvider, notify.ChannelEmail, notify.ProviderSettings{
		WebhookURL:   cfg.EmailWebhookURL,
		WebhookToken: cfg.EmailWebhookToken,
		SMTP:         smtp,
	})
	whatsappProvider := notify.NewProvider(cfg.WhatsAppProvider, notify.ChannelWhatsApp, notify.ProviderSettings{
		WebhookURL:   cfg.WhatsAppWebhookURL,
		WebhookToken: cfg.WhatsAppWebhookToken,
	})
	dispatcher := notify.NewDispatcher(emailProvider, whatsappProvider, marks, notify.Config{
		AdminEmails:   cfg.AdminEmails,
		AdminWhatsApp: cfg.AdminWhatsApp,
		Lang:          cfg.NotifyLang,
	})

	producer := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer func() {
		if err := producer.Close(); err != nil {
			log.Printf("kafka close error: %v", err)
		}
	}()

	displays := live.New()
	svc := queue.NewService(queueStore, queue.Options{
		History:  history,
		Notifier: dispatcher,
		Events:   queue.Publishers{producer, displays},
	})
	if queue.NewResetGuard(queueStore, nil).CheckAndReset(context.Background()) {
		log.Printf("queue reset at startup file=%s", queueStore.Path())
	}

	handler := httpapi.NewHandler(svc)
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:     cfg.RateLimitPerMinute,
		IPBurst:         cfg.RateLimitBurst,
		DevicePerMinute: cfg.DeviceRateLimitPerMinute,
		DeviceBurst:     cfg.DeviceRateLimitBurst,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	mux.Handle("/queue/live/", displays.Handler("/queue/live"))
	mux.Handle("/", handler.Routes())

	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(mux)), "counter-service")
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("counter-service listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
