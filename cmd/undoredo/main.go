package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/l1jgo/undoredo/internal/config"
	"github.com/l1jgo/undoredo/internal/core/event"
	coresys "github.com/l1jgo/undoredo/internal/core/system"
	"github.com/l1jgo/undoredo/internal/data"
	"github.com/l1jgo/undoredo/internal/handler"
	"github.com/l1jgo/undoredo/internal/persist"
	"github.com/l1jgo/undoredo/internal/scene"
	"github.com/l1jgo/undoredo/internal/scripting"
	"github.com/l1jgo/undoredo/internal/system"
	"github.com/l1jgo/undoredo/internal/undoredo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(name string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m" + center(name+"  v0.1.0", 43) + "\033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m" + center("場景編輯 · 復原/重做", 43) + "\033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
}

func center(s string, cols int) string {
	pad := cols - handler.DisplayWidth(s)
	if pad <= 0 {
		return s
	}
	return strings.Repeat(" ", pad/2) + s + strings.Repeat(" ", pad-pad/2)
}

func printSection(title string) {
	lineLen := 46 - handler.DisplayWidth(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - handler.DisplayWidth(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printSkip(msg string) {
	fmt.Printf("  \033[90m-\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main loop ─────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/undoredo.toml"
	if p := os.Getenv("UNDOREDO_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Runtime.Name)

	// 3. Optional PostgreSQL for scene snapshots
	printSection("資料庫")
	var (
		sceneRepo *persist.SceneRepo
		autosave  *system.AutosaveSystem
	)
	if cfg.Database.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := persist.Open(ctx, cfg.Database, cfg.Runtime.Name, log)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL 連線成功: " + db.Summary())

		version, err := persist.MigrateScenes(ctx, db.Pool, log)
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK(fmt.Sprintf("資料庫遷移完成 (版本 %d)", version))
		sceneRepo = persist.NewSceneRepo(db)
	} else {
		printSkip("未啟用，快照指令停用")
	}
	fmt.Println()

	// 4. Scene
	printSection("場景載入")
	sc := scene.New()
	if cfg.Scene.File != "" {
		sd, err := data.LoadSceneFile(cfg.Scene.File)
		switch {
		case errors.Is(err, os.ErrNotExist):
			printSkip("找不到場景檔，從空白場景開始")
		case err != nil:
			return fmt.Errorf("load scene: %w", err)
		default:
			sc.Load(sd.Objects)
			printStat("場景物件", len(sd.Objects))
		}
	}

	// 5. Scripting
	engine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer engine.Close()
	printStat("腳本操作", len(engine.Names()))
	fmt.Println()

	// 6. History resource and console
	bus := event.NewBus()
	history, err := undoredo.New(sc, bus, cfg.History, cfg.Keys, log)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	defer history.Close()

	quit := make(chan struct{})
	deps := &handler.Deps{
		Config:    cfg,
		Log:       log,
		History:   history,
		Scene:     sc,
		Scripting: engine,
		Out:       os.Stdout,
		Quit:      func() { closeOnce(quit) },
	}
	if sceneRepo != nil {
		deps.Scenes = sceneRepo
	}
	reg := handler.NewRegistry(deps)
	handler.RegisterAll(reg)

	lines := make(chan string, cfg.Runtime.InputQueueSize)
	go readConsole(lines, log)

	// 7. Systems
	runner := coresys.NewRunner(cfg.Runtime.TickRate, log.Named("runner"))
	runner.Register(system.NewInputSystem(lines, reg, cfg.Runtime.MaxCommandsPerTick, os.Stdout, log))
	runner.Register(system.NewEventDispatchSystem(bus))
	runner.Register(undoredo.NewSystem(history))
	runner.Register(system.NewStatusSystem(bus, os.Stdout))
	if sceneRepo != nil && cfg.Database.AutosaveTicks > 0 {
		autosave = system.NewAutosaveSystem(bus, sc, sceneRepo, cfg.Database.AutosaveTicks, log)
		runner.Register(autosave)
	}
	runner.Register(system.NewCleanupSystem(sc.World, bus, log))

	// 8. Start game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Runtime.TickRate)
	defer ticker.Stop()

	printSection("就緒")
	printReady(fmt.Sprintf("遊戲迴圈啟動 (tick: %s, 歷史上限: %d, begin: %s)",
		cfg.Runtime.TickRate, cfg.History.Capacity, cfg.History.BeginPolicy))
	printReady(fmt.Sprintf("輸入 help 查看指令，%s 復原，%s 重做",
		strings.Join(cfg.Keys.Undo, "/"), strings.Join(cfg.Keys.Redo, "/")))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Runtime.TickRate)
		case <-quit:
			log.Info("收到離開指令")
			shutdown(autosave, log)
			return nil
		case sig := <-shutdownCh:
			log.Info("收到關閉信號", zap.String("signal", sig.String()))
			shutdown(autosave, log)
			return nil
		}
	}
}

func shutdown(autosave *system.AutosaveSystem, log *zap.Logger) {
	if autosave != nil {
		autosave.SaveNow()
	}
	log.Info("已停止")
}

func closeOnce(ch chan struct{}) {
	select {
	case <-ch:
	default:
		close(ch)
	}
}

// readConsole hands stdin lines to the game loop. It never touches the
// scene or history itself.
func readConsole(lines chan<- string, log *zap.Logger) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		lines <- sc.Text()
	}
	if err := sc.Err(); err != nil {
		log.Warn("讀取主控台失敗", zap.Error(err))
	}
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
