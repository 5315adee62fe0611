package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tag-designer/config"
	"tag-designer/export"
	exportapi "tag-designer/handlers/api/export"
	"tag-designer/handlers/api/templates"
	"tag-designer/handlers/auth"
	"tag-designer/handlers/editor"
	authMiddleware "tag-designer/middleware"
	"tag-designer/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

func setupRouter(cfg *config.Config, store stores.Store, authService *auth.Service, exporter *export.Exporter) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "X-CSRF-Token", "Origin", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authService.HandleRegister)
			r.Post("/login", authService.HandlePasswordLogin)
		})

		// Templates belong to the signed-in user
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthJWT(authService))
			r.Route("/templates", func(r chi.Router) {
				r.Get("/", templates.HandleListTemplates(store))
				r.Post("/", templates.HandleCreateTemplate(store))
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", templates.HandleGetTemplate(store))
					r.Put("/", templates.HandleUpdateTemplate(store))
					r.Delete("/", templates.HandleDeleteTemplate(store))
					r.Post("/export", exportapi.HandleExportTemplate(store, exporter))
				})
			})
		})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", authService.HandleLogin)
		r.Get("/callback", authService.HandleCallback)
	})

	return r
}

func waitForShutdown(server *http.Server, ioo *socketio.Server, store stores.Store) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	s := <-signals
	logrus.WithField("signal", s.String()).Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ioo.Close(nil)
	if err := server.Shutdown(ctx); err != nil {
		logrus.WithField("error", err).Error("HTTP server did not shut down cleanly")
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logrus.WithField("error", err).Error("Failed to close storage")
		}
	}
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration file.")
	listenAddress := flag.String("listen", "", "The address to listen on (overrides LISTEN).")
	logLevel := flag.String("loglevel", "", "The log level (debug, info, warn, error; overrides LOG_LEVEL).")
	flag.Parse()

	cfg, err := config.Load(*configPath, os.Getenv)
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	if *listenAddress != "" {
		cfg.Listen = *listenAddress
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	ctx := context.Background()
	store, err := stores.GetStore(ctx, cfg.Storage)
	if err != nil {
		logrus.WithField("type", cfg.Storage.Type).Fatalf("Failed to open storage: %v", err)
	}
	authService := auth.NewService(store, cfg.Auth)
	exporter := export.New()

	r := setupRouter(cfg, store, authService, exporter)

	ioo := editor.SetupSocketIO(editor.NewHandler(authService, store, exporter, cfg.Editor), cfg.CORS.AllowedOrigins)
	r.Mount("/socket.io/", ioo.ServeHandler(nil))

	server := &http.Server{Addr: cfg.Listen, Handler: r}
	logrus.WithField("addr", cfg.Listen).Info("starting server")
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(server, ioo, store)
}
