package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"lens-recorder/internal/config"
	"lens-recorder/internal/domain"
	"lens-recorder/internal/infrastructure/camera"
	"lens-recorder/internal/infrastructure/logger"
	"lens-recorder/internal/infrastructure/render"
)

// Options - флаги командной строки, общие для всех команд.
type Options struct {
	ConfigPath string
	EnvFiles   []string
	Addr       string
	Profile    string
	Facing     string
	Lens       string
	LogLevel   string
	Pretty     bool
}

// flagEnv сопоставляет флаги переменным окружения, которые они переопределяют.
var flagEnv = map[string]string{
	"addr":    "LENS_RECORDER_HTTP_ADDR",
	"profile": "LENS_RECORDER_PROFILE",
	"facing":  "LENS_RECORDER_CAMERA_FACING",
	"lens":    "LENS_RECORDER_LENS",
}

// NewRootCommand строит дерево команд lens-recorder.
func NewRootCommand() *cobra.Command {
	opts := &Options{}

	root := &cobra.Command{
		Use:           "lens-recorder",
		Short:         "Camera studio: preview, record, remux and export clips",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return Run(cmd.Context(), cfg)
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&opts.ConfigPath, "config", "c", "", "YAML configuration file")
	f.StringSliceVar(&opts.EnvFiles, "env-file", []string{".env"}, ".env files to load, missing ones are skipped")
	f.StringVar(&opts.Addr, "addr", "", "HTTP listen address")
	f.StringVar(&opts.Profile, "profile", "", "tuning profile: quality or performance")
	f.StringVar(&opts.Facing, "facing", "", "initial camera: user or environment")
	f.StringVar(&opts.Lens, "lens", "", "frame filter: none, grayscale or sepia")
	f.StringVar(&opts.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	f.BoolVar(&opts.Pretty, "pretty", false, "human readable logs")

	root.AddCommand(newDevicesCommand())
	return root
}

func newDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List the available cameras and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager := camera.NewMediaDevicesManager(zerolog.Nop())
			devices, err := manager.ListDevices(cmd.Context())
			if err != nil {
				return err
			}
			return printDevices(cmd.OutOrStdout(), devices)
		},
	}
}

func printDevices(w io.Writer, devices []domain.VideoDevice) error {
	if len(devices) == 0 {
		_, err := fmt.Fprintln(w, "No cameras found.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Available cameras:"); err != nil {
		return err
	}
	for i, d := range devices {
		facing := "unknown"
		if d.Facing != nil {
			facing = d.Facing.String()
		}
		if _, err := fmt.Fprintf(w, "[%d] %s (id=%s, facing=%s)\n", i, d.Label, d.ID, facing); err != nil {
			return err
		}
	}
	return nil
}

// loadConfig загружает конфигурацию; флаги важнее переменных окружения.
func loadConfig(cmd *cobra.Command, opts *Options) (*config.Config, error) {
	overrides := map[string]string{}
	for name, key := range flagEnv {
		if cmd.Flags().Changed(name) {
			v, _ := cmd.Flags().GetString(name)
			overrides[key] = v
		}
	}

	loader := config.Loader{
		Path:     opts.ConfigPath,
		EnvFiles: opts.EnvFiles,
		Logger:   zerolog.Nop(),
		Getenv: func(key string) string {
			if v, ok := overrides[key]; ok {
				return v
			}
			return os.Getenv(key)
		},
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if _, err := render.LensByName(cfg.Render.Lens); err != nil {
		return nil, fmt.Errorf("invalid configuration: render.lens: %w", err)
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = strings.ToLower(opts.LogLevel)
	}
	if opts.Pretty {
		cfg.Log.Pretty = true
	}

	logger.Configure(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	return cfg, nil
}
