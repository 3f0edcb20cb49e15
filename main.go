package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"twc/internal/commander"
	"twc/internal/config"
	"twc/internal/constants"
	"twc/internal/fileinfo"
	"twc/internal/jobs"
	"twc/internal/logging"
	"twc/internal/panel"
	"twc/internal/tui"
	"twc/internal/watcher"
)

var (
	debugMode  bool
	leftPath   string
	rightPath  string
	configPath string
	logPath    string
)

var rootCmd = &cobra.Command{
	Use:           constants.ApplicationName + " [left] [right]",
	Short:         constants.ApplicationTitle,
	Long:          "A keyboard driven dual-pane file manager. Panels start at the given directories, or where they were left last time.",
	Args:          cobra.MaximumNArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	flags := rootCmd.Flags()
	flags.BoolVarP(&debugMode, "debug", "d", false, "Enable debug logging")
	flags.StringVar(&leftPath, "left", "", "Starting directory of the left panel")
	flags.StringVar(&rightPath, "right", "", "Starting directory of the right panel")
	flags.StringVar(&configPath, "config", "", "Configuration file (default: platform config dir)")
	flags.StringVar(&logPath, "log", "", "Log file (default: "+constants.LogFileName+" next to the config file)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", constants.ApplicationName, err)
		os.Exit(1)
	}
}

// resolveStartPath expands ~ and checks that path is a directory
func resolveStartPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		return "", fmt.Errorf("accessing path '%s': %w", path, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path '%s' is not a directory", path)
	}
	return filepath.Abs(expanded)
}

func newConfigManager() (config.ManagerInterface, error) {
	if configPath == "" {
		return config.NewManager(), nil
	}
	path, err := homedir.Expand(configPath)
	if err != nil {
		return nil, err
	}
	return config.NewManagerWithPath(path), nil
}

func run(cmd *cobra.Command, args []string) error {
	if len(args) > 0 && leftPath == "" {
		leftPath = args[0]
	}
	if len(args) > 1 && rightPath == "" {
		rightPath = args[1]
	}
	left, err := resolveStartPath(leftPath)
	if err != nil {
		return err
	}
	right, err := resolveStartPath(rightPath)
	if err != nil {
		return err
	}

	configManager, err := newConfigManager()
	if err != nil {
		return err
	}
	cfg, err := configManager.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if err := initLogging(cfg, configManager); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer logging.Sync()
	logging.S().Infof("Starting %s with config %s", constants.ApplicationName, configManager.Path())

	cwd, err := os.Getwd()
	if err != nil {
		cwd = string(filepath.Separator)
	}
	settings := cfg.PairSettings(cwd)
	if left != "" {
		settings.Left.Path = left
	}
	if right != "" {
		settings.Right.Path = right
	}

	pair, err := panel.NewPair(fileinfo.NewReader(), settings, logging.Named("panel"))
	if err != nil {
		return err
	}
	engine := jobs.NewEngine(
		jobs.WithLogger(logging.Named("jobs")),
		jobs.WithRefresher(pair),
		jobs.WithHistoryLimit(constants.HistoryMax),
	)

	// the program does not exist yet when the watcher starts
	var program atomic.Pointer[tea.Program]
	dw := watcher.NewDirectoryWatcher(func(dirs ...string) {
		if p := program.Load(); p != nil {
			p.Send(tui.DirsChangedMsg{Dirs: dirs})
		}
	}, constants.WatcherDelay, logging.Named("watcher"))
	if err := dw.Start(); err != nil {
		logging.Warn("Directory watching disabled", logging.Err(err))
	}
	defer dw.Stop()

	cmdr := commander.New(pair, engine, dw, logging.Named("commander"))
	model := tui.New(cmdr, tui.Options{
		ConfirmDelete: cfg.ShouldConfirmDelete(),
		Logger:        logging.Named("tui"),
	})
	p := tea.NewProgram(model, tea.WithAltScreen())
	program.Store(p)

	_, runErr := p.Run()
	program.Store(nil)
	if runErr != nil {
		logging.Error("UI terminated", logging.Err(runErr))
	}

	// let a cancelled operation reach its boundary before saving
	if op := engine.Current(); op != nil {
		<-op.Done()
	}

	cfg.ApplyPairSettings(cmdr.Settings())
	if err := configManager.Save(cfg); err != nil {
		logging.Warn("Saving configuration failed", logging.Err(err))
	}
	return runErr
}

func initLogging(cfg *config.Config, manager config.ManagerInterface) error {
	level := cfg.Log.Level
	if debugMode {
		level = "debug"
	}
	output := logPath
	if output == "" {
		output = cfg.Log.File
	}
	if output == "" {
		output = manager.DefaultLogPath()
	}
	expanded, err := homedir.Expand(output)
	if err != nil {
		return err
	}
	return logging.Init(logging.Config{
		Level:      level,
		Format:     cfg.Log.Format,
		OutputPath: expanded,
	})
}
