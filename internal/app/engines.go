package app

import (
	"log/slog"

	"github.com/MrWong99/hearken/internal/config"
	"github.com/MrWong99/hearken/pkg/engine"
	"github.com/MrWong99/hearken/pkg/engine/picovoice"
)

// DefaultRegistry returns a registry with the built-in engines.
func DefaultRegistry() *config.Registry {
	reg := config.NewRegistry()
	RegisterBuiltinEngines(reg)
	return reg
}

// RegisterBuiltinEngines wires the Porcupine and Rhino factories into reg.
func RegisterBuiltinEngines(reg *config.Registry) {
	reg.RegisterWakeWord(picovoice.PorcupineName, picovoice.NewWakeWord)

	reg.RegisterIntent(picovoice.RhinoName, func(cfg engine.IntentConfig) (engine.Intent, error) {
		r, err := picovoice.NewRhino(cfg)
		if err != nil {
			return nil, err
		}
		slog.Debug("rhino context loaded", "context_path", cfg.ContextPath, "info", r.ContextInfo())
		return r, nil
	})

	ww, in := reg.Names()
	slog.Debug("registered engines", "wake_word", ww, "intent", in)
}
