package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/Kerhoff/ShoppingBoT/internal/api"
	"github.com/Kerhoff/ShoppingBoT/internal/auth"
	"github.com/Kerhoff/ShoppingBoT/internal/config"
	"github.com/Kerhoff/ShoppingBoT/internal/handlers"
	"github.com/Kerhoff/ShoppingBoT/internal/live"
	"github.com/Kerhoff/ShoppingBoT/internal/metrics"
	"github.com/Kerhoff/ShoppingBoT/internal/repository"
	"github.com/Kerhoff/ShoppingBoT/internal/repository/memory"
	"github.com/Kerhoff/ShoppingBoT/internal/repository/sqlstore"
	"github.com/Kerhoff/ShoppingBoT/internal/service"
	"github.com/Kerhoff/ShoppingBoT/internal/telegram"
	"github.com/Kerhoff/ShoppingBoT/pkg/logger"
)

// webhookPath receives Telegram updates when TELEGRAM_WEBHOOK_URL is set;
// the URL must point at it.
const webhookPath = "/telegram/webhook"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(cfg.LogLevel, cfg.LogFormat)
	l.WithFields(logrus.Fields{
		"driver": cfg.DatabaseDriver,
		"list":   cfg.ListID,
		"locale": cfg.Locale,
	}).Info("Starting ShoppingBoT...")

	// Storage
	var (
		itemStore repository.ItemStore
		userRepo  repository.UserRepository
	)
	if cfg.DatabaseDriver == config.DriverMemory {
		l.Warn("Using in-memory storage, data is lost on restart")
		itemStore = memory.NewItemStore()
		userRepo = memory.NewUserRepository()
	} else {
		db, err := config.NewDatabase(cfg.DatabaseDriver, cfg.DatabaseURL, l)
		if err != nil {
			l.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := db.Migrate(); err != nil {
			l.Fatalf("Failed to run migrations: %v", err)
		}

		itemStore = sqlstore.NewItemStore(db.DB)
		userRepo = sqlstore.NewUserRepository(db.DB)
	}

	// Service layer
	m := metrics.New()
	hub := live.NewHub(itemStore, l, m)
	svc := service.New(l, m, hub, userRepo, hub, language.Make(cfg.Locale))

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		l.Info("Received shutdown signal...")
		cancel()
	}()

	// Pick up writes made by other processes sharing the database
	go hub.Run(ctx, cfg.SnapshotPollInterval)

	// HTTP server for the web client
	apiServer := api.NewServer(svc, auth.NewVerifier(cfg.AuthSecret, cfg.AuthIssuer), cfg.ListID, l)
	rootMux := http.NewServeMux()
	rootMux.Handle("/", apiServer.Handler())

	// Telegram bot
	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, l)
		if err != nil {
			l.Fatalf("Failed to create Telegram bot: %v", err)
		}
		registerCommands(bot, svc, cfg.ListID, l)

		if cfg.TelegramWebhookURL != "" {
			if err := bot.SetWebhook(cfg.TelegramWebhookURL); err != nil {
				l.Fatalf("Failed to set Telegram webhook: %v", err)
			}
			rootMux.Handle("POST "+webhookPath, bot.WebhookHandler())
		} else {
			go func() {
				if err := bot.Start(ctx); err != nil {
					l.Errorf("Bot error: %v", err)
				}
			}()
		}
	} else {
		l.Info("TELEGRAM_TOKEN not set, Telegram bot disabled")
	}

	httpServer := newHTTPServer(ctx, ":"+cfg.Port, rootMux)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", m.Handler())
	metricsServer := newHTTPServer(ctx, ":"+cfg.PrometheusPort, metricsMux)

	go serve(l, "HTTP", httpServer)
	go serve(l, "Metrics", metricsServer)

	l.Info("ShoppingBoT started successfully")

	<-ctx.Done()

	l.Info("Shutting down HTTP servers...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.Errorf("HTTP server shutdown: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		l.Errorf("Metrics server shutdown: %v", err)
	}

	l.Info("ShoppingBoT stopped")
}

// newHTTPServer derives every request context from ctx, so open live
// streams end when ctx is cancelled instead of holding up Shutdown.
func newHTTPServer(ctx context.Context, addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serve(l *logrus.Logger, name string, srv *http.Server) {
	l.Infof("%s server listening on %s", name, srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Errorf("%s server error: %v", name, err)
	}
}

func registerCommands(bot *telegram.Bot, svc *service.Service, listID string, l *logrus.Logger) {
	bot.RegisterCommand("start", handlers.NewStartHandler(svc, listID, l))
	bot.RegisterCommand("help", handlers.NewHelpHandler(l))

	// Items
	bot.RegisterCommand("buy", handlers.NewBuyAddHandler(svc, listID, l))
	bot.RegisterCommand("list", handlers.NewBuyListHandler(svc, listID, l))
	bot.RegisterCommand("del", handlers.NewDeleteHandler(svc, listID, l))

	// Purchases
	bot.RegisterCommand("bought", handlers.NewBoughtHandler(svc, listID, l))
	bot.RegisterCommand("unbought", handlers.NewUnboughtHandler(svc, listID, l))
	bot.RegisterCommand("buyclear", handlers.NewBuyClearHandler(svc, listID, l))

	purchase := handlers.NewPurchaseCallbackHandler(svc, listID, l)
	bot.RegisterCallback(handlers.CallbackConfirm, purchase)
	bot.RegisterCallback(handlers.CallbackCancel, purchase)

	// Editing
	bot.RegisterCommand("qty", handlers.NewQuantityHandler(svc, listID, l))
	bot.RegisterCommand("paid", handlers.NewPaidHandler(svc, listID, l))

	// Totals
	bot.RegisterCommand("total", handlers.NewTotalHandler(svc, listID, l))
}
