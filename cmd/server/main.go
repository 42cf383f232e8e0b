package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"triaright-platform/clock"
	"triaright-platform/config"
	"triaright-platform/db"
	"triaright-platform/http"
	"triaright-platform/http/handlers"
	"triaright-platform/http/middleware"
	"triaright-platform/logger"
	"triaright-platform/repository"
	"triaright-platform/services/auth"
	"triaright-platform/services/catalog"
	"triaright-platform/services/certificate"
	"triaright-platform/services/dashboard"
	"triaright-platform/services/exam"
	"triaright-platform/services/internship"
	"triaright-platform/services/kafka"
	"triaright-platform/services/notify"
	"triaright-platform/services/payment"
	"triaright-platform/services/progress"

	"github.com/redis/go-redis/v9"
)

func main() {
	// Run from the project root so relative paths (.env, certificates) resolve.
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal("Error getting current working directory:", err)
	}
	if root := findProjectRoot(cwd); root != "" && root != cwd {
		if err := os.Chdir(root); err != nil {
			log.Fatal("Error changing to project root:", err)
		}
		logger.Info("Working directory set to project root: %s", root)
	}

	cfg := config.LoadConfig()
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET must be set")
	}

	conn, err := db.InitDB(cfg)
	if err != nil {
		logger.Fatal("Error initializing database: %v", err)
	}
	defer conn.Close()
	store := repository.New(conn)
	clk := clock.Real()

	// Events and email
	brokers := cfg.Brokers()
	dlq := kafka.NewPostgresDLQ(conn)
	if len(brokers) > 0 {
		kafka.EnsureTopics(context.Background(), brokers, append(kafka.Topics(), cfg.KafkaDLQTopic))
	}
	producer := kafka.NewProducer(brokers, cfg.KafkaDLQTopic, dlq)
	// Request handlers publish through events so a slow broker never holds a response.
	events := kafka.NewAsyncPublisher(producer, cfg.KafkaPublishTimeout)
	mailer := notify.NewSMTPMailer(cfg)
	mail := notify.New(events, mailer, len(brokers) > 0)

	consumer := kafka.NewConsumer(brokers, cfg.KafkaConsumerGroup, []string{kafka.TopicEmails}, dlq)
	notify.Register(consumer, mailer)
	retrier := kafka.NewRetrier(dlq, consumer, producer, cfg.DLQRetryInterval)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	go consumer.Run(bgCtx)
	go retrier.Run(bgCtx)

	// Redis is optional; without it logout cannot revoke and nothing is rate limited.
	var redisClient *redis.Client
	var revoked auth.Revocations
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("Redis at %s is unreachable, continuing: %v", cfg.RedisAddr, err)
		}
		cancel()
		revoked = auth.NewRedisRevocations(redisClient)
	}

	// Services
	authSvc := auth.NewService(store, auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL, clk), revoked)
	catalogSvc := catalog.NewService(store, events, clk)
	progressSvc := progress.NewService(store, store, events, mail, clk, cfg.ProgressThreshold)
	certSvc := certificate.NewService(store, store, events, mail, clk, cfg.CertificateDir)
	examSvc := exam.NewService(store, store, events, mail, clk)
	paymentSvc := payment.NewService(payment.Config{
		KeyID:         cfg.RazorpayKeyID,
		KeySecret:     cfg.RazorpayKeySecret,
		WebhookSecret: cfg.RazorpayWebhookSecret,
		Currency:      cfg.Currency,
		GSTRate:       cfg.GSTRate,
		BusinessName:  "TriaRight",
	}, store, payment.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret), store, events, mail, clk)
	internshipSvc := internship.NewService(store, store, events, mail, internship.MeetLinks{}, clk)
	dashboardSvc := dashboard.NewService(store)

	if err := examSvc.ResumeAll(context.Background()); err != nil {
		logger.Error("Error resuming exam attempts: %v", err)
	}

	routes := http.Routes{
		Auth:        handlers.NewAuthHandler(authSvc),
		Catalog:     handlers.NewCatalogHandler(catalogSvc),
		Enrollments: handlers.NewEnrollmentHandler(catalogSvc, progressSvc, certSvc),
		Exams:       handlers.NewExamHandler(examSvc),
		Payments:    handlers.NewPaymentHandler(paymentSvc, store),
		Internships: handlers.NewInternshipHandler(internshipSvc),
		Dashboard:   handlers.NewDashboardHandler(dashboardSvc),
		DLQ:         handlers.NewDLQHandler(dlq, retrier),

		Authenticator:  authSvc,
		Limiter:        middleware.NewRateLimiter(redisClient, cfg.Proxies()),
		RateLimit:      cfg.RateLimit,
		RateLimitEvery: cfg.RateLimitEvery,
		FrontendOrigin: cfg.FrontendOrigin,
	}
	server := http.NewServer(cfg.Port, routes.Handler())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Server failed: %v", err)
		}
	}()

	<-sigChan
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP server: %v", err)
	}
	examSvc.Shutdown()
	stopBackground()
	if err := consumer.Close(); err != nil {
		logger.Error("Error closing Kafka consumer: %v", err)
	}
	if err := events.Wait(shutdownCtx); err != nil {
		logger.Warn("Kafka events still in flight at shutdown: %v", err)
	}
	if err := producer.Close(); err != nil {
		logger.Error("Error closing Kafka producer: %v", err)
	}
	if redisClient != nil {
		redisClient.Close()
	}

	logger.Info("Server shutdown complete")
}

// findProjectRoot walks up from start and returns the first directory containing go.mod
func findProjectRoot(start string) string {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
