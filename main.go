package main

import (
	"fmt"
	"os"
	"path/filepath"

	"wisp/internal/client"
	"wisp/internal/controller"
	"wisp/internal/store"
	"wisp/internal/styles"
	"wisp/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

func newLogger() *zap.Logger {
	configDir, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return zap.NewNop()
		}
		configDir = filepath.Join(home, ".config")
	}
	logDir := filepath.Join(configDir, "wisp")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return zap.NewNop()
	}

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{filepath.Join(logDir, "wisp.log")}
	cfg.ErrorOutputPaths = cfg.OutputPaths
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func main() {
	log := newLogger()
	defer log.Sync()

	st, err := store.OpenDefault(log)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	cl := client.New(os.Getenv("WISP_BACKEND_URL"), log)

	// The program does not exist yet when the controller is built, so
	// events are forwarded through a pointer filled in below.
	var program *tea.Program
	ctrl := controller.New(st, cl, log, func(ev controller.Event) {
		if program != nil {
			program.Send(ev)
		}
	})

	styles.InitTheme()

	m := ui.InitialModel(ctrl, cl)
	program = tea.NewProgram(&m, tea.WithAltScreen())

	if _, err := program.Run(); err != nil {
		log.Error("program exited with error", zap.Error(err))
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	ctrl.StopInference()
}
