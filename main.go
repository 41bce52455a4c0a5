// Command dexkeeper is the main entrypoint for the Discord ID recorder.
// It:
//   - Loads configuration and initializes structured logging.
//   - Optionally connects to Postgres (DB_DSN) for release lists and runs migrations.
//   - Starts the recording engine and the Discord gateway session.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"

	"github.com/onnwee/dexkeeper/bot"
	"github.com/onnwee/dexkeeper/config"
	"github.com/onnwee/dexkeeper/db"
	"github.com/onnwee/dexkeeper/recorder"
	"github.com/onnwee/dexkeeper/server"
	"github.com/onnwee/dexkeeper/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateBotReady(); err != nil {
		slog.Error("bot configuration invalid", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdownTracing, err := telemetry.InitTracing("dexkeeper", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The id lists are optional. The store interfaces stay nil when disabled
	// so the bot can tell.
	var (
		database *sql.DB
		lists    bot.Lists
	)
	if cfg.ListsEnabled() {
		database, err = db.Connect(ctx, cfg.DBDsn)
		if err != nil {
			slog.Error("failed to open db", slog.Any("err", err))
			os.Exit(1)
		}
		defer func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}()
		slog.Info("running database migrations", slog.String("component", "db_migrate"))
		if err := db.Migrate(database); err != nil {
			slog.Error("failed to migrate db", slog.Any("err", err), slog.String("component", "db_migrate"))
			os.Exit(1)
		}
		lists.Releases = db.NewReleaseStore(database)
		lists.Evolves = db.NewEvolveStore(database)
	} else {
		slog.Info("release and evolve lists disabled (DB_DSN not set)")
	}

	sess, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		slog.Error("discord session init failed", slog.Any("err", err))
		os.Exit(1)
	}

	pager := bot.NewPager(cfg.PaginationTimeout)
	defer pager.Stop()

	engine := recorder.NewEngine(recorder.Config{
		Timeout:       cfg.RecordingTimeout,
		CheckInterval: cfg.CheckInterval,
		PageSize:      cfg.IDsPerPage,
	}, recorder.NewRegistry(), bot.NewSource(sess), bot.NewPresenter(sess, pager, cfg.EmbedColor))
	defer engine.Close()

	b := bot.New(cfg, sess, engine, pager, lists)
	b.Register(ctx, sess)
	if err := sess.Open(); err != nil {
		slog.Error("discord gateway open failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			slog.Warn("discord gateway close failed", slog.Any("err", err))
		}
	}()
	slog.Info("recorder started",
		slog.Duration("timeout", cfg.RecordingTimeout),
		slog.Duration("check_interval", cfg.CheckInterval),
		slog.Int("ids_per_page", cfg.IDsPerPage),
		slog.String("prefix", cfg.CommandPrefix))

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	go func() {
		if err := server.Start(ctx, cfg.HTTPAddr, server.Deps{DB: database, Engine: engine, Gateway: b}); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
