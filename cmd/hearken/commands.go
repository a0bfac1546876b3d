package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/MrWong99/hearken/internal/app"
	"github.com/MrWong99/hearken/internal/capture"
	"github.com/MrWong99/hearken/internal/config"
	"github.com/MrWong99/hearken/pkg/engine"
)

// cli holds the command-line state shared by all subcommands.
type cli struct {
	fs    afero.Fs
	level *slog.LevelVar
	// cmd is the subcommand being executed.
	cmd *cobra.Command

	configPath string

	logLevel             string
	accessKey            string
	keywordPath          string
	contextPath          string
	porcupineModelPath   string
	porcupineLibraryPath string
	rhinoModelPath       string
	rhinoLibraryPath     string
	porcupineSensitivity float32
	rhinoSensitivity     float32
	endpointDuration     float32
	requireEndpoint      bool
	metricsAddr          string

	backend     string
	drain       string
	deviceIndex int
	outputPath  string
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hearken",
		Short:         "Wake-word detection followed by speech-to-intent inference",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			c.cmd = cmd
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "path to a YAML configuration file")
	pf.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&c.accessKey, "access-key", "", "engine access key (overrides engines.access_key)")
	pf.StringVar(&c.keywordPath, "keyword-path", "", "wake-word keyword file")
	pf.StringVar(&c.contextPath, "context-path", "", "intent context file")
	pf.StringVar(&c.porcupineModelPath, "porcupine-model-path", "", "wake-word engine model file")
	pf.StringVar(&c.porcupineLibraryPath, "porcupine-library-path", "", "wake-word engine library")
	pf.StringVar(&c.rhinoModelPath, "rhino-model-path", "", "intent engine model file")
	pf.StringVar(&c.rhinoLibraryPath, "rhino-library-path", "", "intent engine library")
	pf.Float32Var(&c.porcupineSensitivity, "porcupine-sensitivity", 0.5, "wake-word sensitivity within [0, 1]")
	pf.Float32Var(&c.rhinoSensitivity, "rhino-sensitivity", 0.5, "intent sensitivity within [0, 1]")
	pf.Float32Var(&c.endpointDuration, "endpoint-duration", 1.0, "trailing silence in seconds that ends a command, within [0.5, 5]")
	pf.BoolVar(&c.requireEndpoint, "require-endpoint", true, "require trailing silence before inferring")
	pf.StringVar(&c.metricsAddr, "metrics-addr", "", "serve /metrics, /healthz and /readyz on this address")

	root.AddCommand(c.fileCmd(), c.micCmd(), c.devicesCmd(), c.versionCmd())
	return root
}

// ── Subcommands ───────────────────────────────────────────────────────────────

func (c *cli) fileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "file <input.wav>",
		Short: "Run the pipeline over a mono 16-bit WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			return c.runApp(cmd.Context(), cfg, func(ctx context.Context, a *app.App) error {
				return a.RunFile(ctx, args[0])
			})
		},
	}
}

func (c *cli) micCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mic",
		Short: "Listen on a microphone until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			stop := c.watchConfig()
			defer stop()
			return c.runApp(cmd.Context(), cfg, func(ctx context.Context, a *app.App) error {
				return a.RunMic(ctx)
			})
		},
	}
	c.addCaptureFlags(cmd)
	cmd.Flags().StringVar(&c.drain, "drain", string(config.DefaultDrain), "where push-backend frames are processed: inline or async")
	cmd.Flags().StringVar(&c.outputPath, "output-path", "", "record the captured stream to this WAV file")
	return cmd
}

func (c *cli) devicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List the capture devices of a backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backend := config.Backend(c.backend)
			if !c.flagSet("backend") && c.configPath != "" {
				if cfg, err := c.parseFile(); err == nil {
					backend = cfg.Capture.Backend
				}
			}
			return app.ListDevices(backend, cmd.OutOrStdout())
		},
	}
	c.addCaptureFlags(cmd)
	return cmd
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pipeline and engine versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err == nil {
				var a *app.App
				a, err = app.New(cfg, app.WithFs(c.fs))
				if err == nil {
					fmt.Fprintln(cmd.OutOrStdout(), a.Version())
					return a.Shutdown(context.Background())
				}
			}
			slog.Debug("engines unavailable, reporting CLI version", "err", err)
			fmt.Fprintln(cmd.OutOrStdout(), cliVersion())
			return nil
		},
	}
}

func (c *cli) addCaptureFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.backend, "backend", string(config.DefaultBackend), "capture backend: malgo or portaudio")
	cmd.Flags().IntVar(&c.deviceIndex, "audio-device-index", capture.DefaultDevice, "capture device index, -1 for the default device")
}

// ── Configuration ─────────────────────────────────────────────────────────────

// loadConfig reads the optional config file, layers explicitly set flags on
// top and validates the result.
func (c *cli) loadConfig() (*config.Config, error) {
	cfg, err := c.parseFile()
	if err != nil {
		return nil, err
	}
	c.applyFlags(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	c.level.Set(cfg.Server.LogLevel.Level())
	slog.Debug("configuration loaded", "config", c.configPath, "backend", cfg.Capture.Backend, "drain", cfg.Capture.Drain)
	return cfg, nil
}

func (c *cli) parseFile() (*config.Config, error) {
	if c.configPath == "" {
		return config.Parse(strings.NewReader(""))
	}
	f, err := c.fs.Open(c.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file %q not found", c.configPath)
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	return config.Parse(f)
}

// applyFlags overrides cfg with every flag the user set explicitly.
func (c *cli) applyFlags(cfg *config.Config) {
	ww := &cfg.Engines.WakeWord
	in := &cfg.Engines.Intent

	setString := func(name string, dst *string, v string) {
		if c.flagSet(name) {
			*dst = v
		}
	}
	setString("access-key", &cfg.Engines.AccessKey, c.accessKey)
	setString("keyword-path", &ww.KeywordPath, c.keywordPath)
	setString("context-path", &in.ContextPath, c.contextPath)
	setString("porcupine-model-path", &ww.ModelPath, c.porcupineModelPath)
	setString("porcupine-library-path", &ww.LibraryPath, c.porcupineLibraryPath)
	setString("rhino-model-path", &in.ModelPath, c.rhinoModelPath)
	setString("rhino-library-path", &in.LibraryPath, c.rhinoLibraryPath)
	setString("metrics-addr", &cfg.Server.MetricsAddr, c.metricsAddr)
	setString("output-path", &cfg.Capture.OutputPath, c.outputPath)

	if c.flagSet("log-level") {
		cfg.Server.LogLevel = config.LogLevel(c.logLevel)
	}
	if c.flagSet("porcupine-sensitivity") {
		ww.Sensitivity = engine.Ptr(c.porcupineSensitivity)
	}
	if c.flagSet("rhino-sensitivity") {
		in.Sensitivity = engine.Ptr(c.rhinoSensitivity)
	}
	if c.flagSet("endpoint-duration") {
		in.EndpointDuration = engine.Ptr(c.endpointDuration)
	}
	if c.flagSet("require-endpoint") {
		in.RequireEndpoint = engine.Ptr(c.requireEndpoint)
	}
	if c.flagSet("backend") {
		cfg.Capture.Backend = config.Backend(c.backend)
	}
	if c.flagSet("drain") {
		cfg.Capture.Drain = config.DrainMode(c.drain)
	}
	if c.flagSet("audio-device-index") {
		cfg.Capture.DeviceIndex = engine.Ptr(c.deviceIndex)
	}
}

// flagSet reports whether the named flag was given on the command line of
// the command being executed, including inherited persistent flags.
func (c *cli) flagSet(name string) bool {
	if c.cmd == nil {
		return false
	}
	f := c.cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}
