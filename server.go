package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"rdolist/config"
	"rdolist/db"
	"rdolist/handlers"
	"rdolist/mail"
	appmw "rdolist/middleware"
	"rdolist/response"
	"rdolist/token"
)

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+appmw.TokenHeader)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func newRouter(h *handlers.Handler, limiter *appmw.Limiter) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.StripSlashes)
	r.Use(cors)
	r.Use(limiter.Handler)

	r.NotFound(response.NotFound)
	r.MethodNotAllowed(response.MethodNotAllowed)

	r.Route("/api", h.Routes)
	return r
}

func newSender(cfg config.Config) (mail.Sender, error) {
	switch cfg.Mail.Provider {
	case "sendgrid":
		return mail.NewSendGridSender(cfg.Mail.SendGridAPIKey, cfg.Mail.From)
	case "resend":
		return mail.NewResendSender(cfg.Mail.ResendAPIKey, cfg.Mail.From), nil
	case "smtp":
		s := cfg.Mail.SMTP
		return mail.NewSMTPSender(s.Host, s.Port, s.User, s.Password, cfg.Mail.From), nil
	case "log":
		return mail.LogSender{}, nil
	}
	return nil, fmt.Errorf("unknown mail provider %q", cfg.Mail.Provider)
}

// newQueue returns the job queue with a function releasing its resources.
func newQueue(ctx context.Context, cfg config.Config) (mail.Queue, func(), error) {
	if cfg.Queue.Backend != "redis" {
		return mail.NewMemoryQueue(256), func() {}, nil
	}
	client, err := mail.DialRedis(ctx, cfg.Queue.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return mail.NewRedisQueue(client, cfg.Queue.Key), func() { client.Close() }, nil
}

func serve(cfg config.Config, store *db.Store) int {
	log.Printf("config: %s", cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Interrupted, shutting down...")
		cancel()
	}()

	if err := store.Migrate(ctx); err != nil {
		log.Printf("migrate: %v", err)
		return 1
	}

	queue, closeQueue, err := newQueue(ctx, cfg)
	if err != nil {
		log.Printf("mail queue: %v", err)
		return 1
	}
	defer closeQueue()
	sender, err := newSender(cfg)
	if err != nil {
		log.Printf("mail sender: %v", err)
		return 1
	}
	mailer, err := mail.NewMailer(queue)
	if err != nil {
		log.Printf("mail templates: %v", err)
		return 1
	}

	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		mail.Run(ctx, queue, sender, cfg.Queue.Workers)
	}()

	h := handlers.New(store, mailer, token.NewIssuer(cfg.SecretKey, cfg.TokenTTL))
	limiter := appmw.NewLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(h, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("Server running on %s", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("listen: %v", err)
		cancel()
		workers.Wait()
		return 1
	}

	cancel()
	workers.Wait()
	return 0
}
