package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zsiec/playcore/internal/config"
	"github.com/zsiec/playcore/internal/logger"
	"github.com/zsiec/playcore/internal/player"
	"github.com/zsiec/playcore/internal/tui"
	"github.com/zsiec/playcore/pkg/version"
)

func main() {
	var (
		configPath  string
		subsPath    string
		logPath     string
		logLevel    string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file (defaults when empty)")
	flag.StringVar(&subsPath, "subs", "", "Subtitle file (SRT, WebVTT or ASS)")
	flag.StringVar(&logPath, "log", "", "Write logs to this file (no logging when empty)")
	flag.StringVar(&logLevel, "log-level", "", "Override the configured log level")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <media file>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion {
		fmt.Println(version.GetInfo().String())
		os.Exit(0)
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), configPath, subsPath, logPath, logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "playctl: %v\n", err)
		os.Exit(1)
	}
}

func run(mediaPath, configPath, subsPath, logPath, logLevel string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// The terminal belongs to the UI, so logs only ever go to a file
	log := logger.NewNullLogger()
	if logPath != "" {
		cfg.Logging.Output = logPath
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		base, err := logger.New(&cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		log = logger.ForComponent(base, "playctl")
	}

	data, err := os.ReadFile(mediaPath)
	if err != nil {
		return fmt.Errorf("failed to read media: %w", err)
	}
	var subs string
	if subsPath != "" {
		b, err := os.ReadFile(subsPath)
		if err != nil {
			return fmt.Errorf("failed to read subtitles: %w", err)
		}
		subs = string(b)
	}

	ctrl := player.New(
		player.WithConfig(player.ConfigFrom(cfg.Player)),
		player.WithLogger(log),
	)
	defer ctrl.Close()

	model, err := tui.New(ctrl, tui.Options{
		Title:     filepath.Base(mediaPath),
		Media:     data,
		Subtitles: subs,
	})
	if err != nil {
		return err
	}
	log.WithField("media", mediaPath).Info("Media loaded")

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("terminal ui: %w", err)
	}
	return nil
}
