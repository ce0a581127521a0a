// Command metaserverd runs the metaserver: the three connection-class
// listeners, the auth/room/game/search/ranking components, and the
// scheduled jobs that keep the ranking table and inactive-game reaper
// running. Adapted from the teacher's cmd/l1jgo/main.go startup sequence
// (config -> logger -> database -> migrations -> components -> listen),
// restructured around a spf13/cobra command tree (SPEC_FULL.md DOMAIN
// STACK) instead of the teacher's single flat main().
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/metaserver/metaserver/internal/auth"
	"github.com/metaserver/metaserver/internal/config"
	"github.com/metaserver/metaserver/internal/game"
	"github.com/metaserver/metaserver/internal/net"
	"github.com/metaserver/metaserver/internal/ranking"
	"github.com/metaserver/metaserver/internal/room"
	"github.com/metaserver/metaserver/internal/scheduler"
	"github.com/metaserver/metaserver/internal/search"
	"github.com/metaserver/metaserver/internal/server"
	"github.com/metaserver/metaserver/internal/store/postgres"
	"github.com/metaserver/metaserver/internal/webadmin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:   "metaserverd",
		Short: "Multiplayer game metaserver: rooms, matchmaking, and ranking",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "configs/server.toml", "path to server.toml")
	viper.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = godotenv.Load() // .env is optional; missing file is not an error

	root.AddCommand(newStartCmd(&cfgPath))
	root.AddCommand(newTOTPCmd(&cfgPath))
	return root
}

func newStartCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the metaserver until SIGINT/SIGTERM",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(*cfgPath)
		},
	}
}

// ── Startup display helpers, adapted from cmd/l1jgo/main.go's console
// banner/section/stat helpers with the CJK-aware width math dropped
// (this project's banner text is plain ASCII). ────────────────────────

func printBanner(serverName string, serverID int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              metaserverd                   \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s \033[90m(id: %d)\033[0m\n\n", serverName, serverID)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.ID)

	printSection("database")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.NewDB(ctx, postgres.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	printOK("postgres connection established")

	if err := postgres.RunMigrations(ctx, db.Pool); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	printOK("schema migrations applied")
	fmt.Println()

	users := postgres.NewUserStore(db)
	orders := postgres.NewOrderStore(db)
	bans := postgres.NewBanStore(db)
	auditLog := postgres.NewAuditStore(db)
	scoredGames := postgres.NewScoredGameStore(db)
	_ = orders // wired for completeness; no opcode yet exercises order lookups directly

	printSection("components")

	defs, err := room.Load(cfg.Rooms.ListPath)
	if err != nil {
		return fmt.Errorf("load room list: %w", err)
	}
	printOK(fmt.Sprintf("loaded %d room templates from %s", len(defs), cfg.Rooms.ListPath))
	rooms := room.NewRegistry(defs)

	var tokenCache *auth.RedisTokenCache
	if cfg.Auth.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Auth.RedisAddr})
		tokenCache = auth.NewRedisTokenCache(rdb, log)
		printOK(fmt.Sprintf("redis token cache enabled at %s", cfg.Auth.RedisAddr))
	}

	authSvc := &auth.Service{
		Users:    users,
		Bans:     bans,
		Audit:    auditLog,
		Tokens:   auth.NewTokenRegistry(tokenCache),
		Sessions: auth.NewSessionRegistry(),
		Policy:   parseDuplicateLoginPolicy(cfg.Auth.DuplicateLoginPolicy),
		Log:      log,
	}

	games := game.NewCoordinator(users, scoredGames, log)
	idx := search.NewIndex()
	rankEngine := ranking.NewEngine(users, log)
	sched := scheduler.NewRunner(log)

	// The web/admin class speaks framed JSON-over-websocket rather than
	// the binary frame protocol (SPEC_FULL.md C1 expansion), so it is
	// served by webadmin.Server's own http.Server instead of a third
	// raw TCP listener in net.Manager.
	nm, err := net.NewManager(net.Binds{
		Player: cfg.Network.PlayerBindAddress,
		Room:   cfg.Network.RoomBindAddress,
	}, bans, cfg.Network.IngressQueueLen, cfg.Network.EgressQueueLen, log)
	if err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	printOK("listeners bound")

	srv := server.New(nm, authSvc, rooms, games, idx, rankEngine, sched, cfg.Ranking.RecomputeInterval, log)
	webSrv := webadmin.New(cfg.Network.WebBindAddress, authSvc, rankEngine, log)
	fmt.Println()

	printReady(fmt.Sprintf("player=%s room=%s web=%s", cfg.Network.PlayerBindAddress, cfg.Network.RoomBindAddress, cfg.Network.WebBindAddress))
	fmt.Println()

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The transport/dispatch loop and the web/admin HTTP server shut
	// down on the same signal but fail independently; errgroup carries
	// the first error out without one server's crash leaking as a
	// silent goroutine exit (SPEC_FULL.md DOMAIN STACK).
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		srv.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return webSrv.Run(gctx)
	})
	if err := g.Wait(); err != nil {
		log.Error("server exited with error", zap.Error(err))
	}
	log.Info("shutdown complete")
	return nil
}

func parseDuplicateLoginPolicy(s string) auth.DuplicateLoginPolicy {
	if s == "reject_new" {
		return auth.PolicyRejectNew
	}
	return auth.PolicyKickOld
}
