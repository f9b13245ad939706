package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"farmlab_twin/internal/alerting"
	"farmlab_twin/internal/farmapi"
	"farmlab_twin/internal/handlers"
	"farmlab_twin/internal/logger"
	"farmlab_twin/internal/repository"
	"farmlab_twin/internal/repository/db"
	"farmlab_twin/internal/server"
	"farmlab_twin/internal/service"

	"github.com/spf13/viper"
)

const (
	defaultReconcileTick = 5 * time.Second
	defaultPollTick      = 30 * time.Second
	defaultRefreshTick   = 5 * time.Minute
)

func main() {
	// init logger
	log := logger.Get(logger.InfoLevel)

	// load config.yml
	if err := loadConfig(); err != nil {
		log.Fatalw("error reading config", "err", err)
	}

	// open DB
	database, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := database.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	api := farmapi.New(viper.GetString("farm_api.base_url"), viper.GetDuration("farm_api.timeout"))
	repos := repository.NewRepository(database)
	notifier, closeNotifier := buildNotifier(log)
	defer closeNotifier()

	services := service.NewService(api, repos, notifier, log, service.Config{
		JWTSigningKey:        viper.GetString("auth.signing_key"),
		WarningGrace:         viper.GetDuration("telemetry.warning_grace"),
		LightCheckEvery:      viper.GetDuration("automation.light_check_every"),
		IrrigationCheckEvery: viper.GetDuration("automation.irrigation_check_every"),
		IrrigationWindow:     viper.GetDuration("automation.irrigation_window"),
	})

	if err := services.EnsureOperator(
		viper.GetString("auth.operator.username"),
		viper.GetString("auth.operator.password"),
	); err != nil {
		log.Fatalw("failed to seed operator", "err", err)
	}

	apiHandler := handlers.NewHandler(services, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// start background loops
	go services.RunReconciler(ctx, tickOr("reconcile.tick", defaultReconcileTick))
	go services.RunPoller(ctx, tickOr("telemetry.tick", defaultPollTick))
	go services.RunRefresher(ctx, tickOr("settings.refresh_tick", defaultRefreshTick))

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "twin.db")
		dbPath = "twin.db"
	}
	return db.InitDB(dbPath)
}

// buildNotifier always logs changes; MQTT publishing is added when a
// broker is configured. A broker that cannot be reached downgrades to
// log-only rather than failing startup.
func buildNotifier(log *logger.Logger) (service.Notifier, func()) {
	logNotifier := service.NewLogNotifier(log)

	broker := viper.GetString("mqtt.broker_url")
	if broker == "" {
		return logNotifier, func() {}
	}

	mq, err := alerting.New(alerting.Config{
		BrokerURL: broker,
		ClientID:  viper.GetString("mqtt.client_id"),
		Username:  viper.GetString("mqtt.username"),
		Password:  viper.GetString("mqtt.password"),
	}, log)
	if err != nil {
		log.Warnw("mqtt notifier unavailable, falling back to log-only", "err", err)
		return logNotifier, func() {}
	}
	return service.MultiNotifier{logNotifier, mq}, mq.Close
}

func tickOr(key string, fallback time.Duration) time.Duration {
	if d := viper.GetDuration(key); d > 0 {
		return d
	}
	return fallback
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
