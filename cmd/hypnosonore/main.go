package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/ayusman/hypnosonore/internal/app"
	"github.com/ayusman/hypnosonore/internal/config"
	"github.com/ayusman/hypnosonore/internal/log"
	"github.com/ayusman/hypnosonore/internal/server"
	"github.com/ayusman/hypnosonore/internal/store"
	"github.com/ayusman/hypnosonore/internal/tray"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hypnosonore: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "JSON config file")
		envFile    = flag.String("env", ".env", "dotenv file loaded before HYPNO_* variables are read")
		addr       = flag.String("addr", "", "HTTP listen address")
		dataDir    = flag.String("data", "", "data directory")
		cameraID   = flag.Int("camera", 0, "camera device id")
		showTray   = flag.Bool("tray", false, "show the system tray menu")
		logLevel   = flag.String("log-level", "", "debug, info, warn or error")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath, *envFile)
	if err != nil {
		return err
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "data":
			cfg.DataDir = *dataDir
		case "camera":
			cfg.Camera.ID = *cameraID
		case "tray":
			cfg.Tray = *showTray
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
	if cfg.StaticDir == "" {
		cfg.StaticDir = findWebDir(cfg.DataDir)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.Init(cfg.LogLevel)
	logger := log.Component("main")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	a, err := app.New(app.Options{Config: cfg, Store: st})
	if err != nil {
		return err
	}
	if err := a.DiscoverPlugins(); err != nil {
		logger.Warn("plugin discovery failed", log.Err(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.LoadBindings(ctx); err != nil {
		return fmt.Errorf("load bindings: %w", err)
	}
	if err := a.Start(ctx); err != nil {
		logger.Warn("camera unavailable, serving without capture", log.Err(err))
	}
	defer a.Stop()

	srv := server.New(server.Config{
		StaticDir:  cfg.StaticDir,
		SamplesDir: cfg.SamplesDir(),
		App:        a,
		Store:      st,
	})
	if cfg.StaticDir != "" {
		logger.Info("serving static files", "dir", cfg.StaticDir)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe(cfg.Addr)
		stop()
	}()

	if cfg.Tray {
		runTray(ctx, stop, a, cfg.Addr)
	}

	<-ctx.Done()
	select {
	case err = <-serveErr:
	default:
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil && !errors.Is(serr, context.DeadlineExceeded) {
		logger.Warn("server shutdown", log.Err(serr))
	}
	return err
}

func loadConfig(path, envFile string) (config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return config.Config{}, err
	}

	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, fmt.Errorf("environment: %w", err)
	}
	return cfg, nil
}

// runTray shows the tray menu until ctx ends or quit is clicked. It blocks
// on the main goroutine as the tray library requires.
func runTray(ctx context.Context, stop context.CancelFunc, a *app.App, addr string) {
	tr := tray.New()
	tr.OnToggle(func(enabled bool) {
		a.SetEnabled(context.Background(), enabled)
	})
	tr.OnSettings(func() {
		if err := openBrowser(settingsURL(addr)); err != nil {
			log.Component("tray").Warn("opening browser", log.Err(err))
		}
	})
	tr.OnQuit(stop)

	unsubscribe := a.Subscribe(func(s app.Snapshot) {
		tr.SetActive(s.Active)
		tr.SetEnabled(a.IsEnabled())
		tr.SetScene(a.Orchestra().Scene())
	})
	defer unsubscribe()

	go func() {
		<-ctx.Done()
		tr.Quit()
	}()
	tr.Run()
}

func settingsURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches "web", "../web", "../../web" and <data>/web and
// returns the first directory found, or "".
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
