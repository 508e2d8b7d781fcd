package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"coral/internal/accel"
	"coral/internal/config"
	"coral/internal/engine"
	"coral/internal/logger"
)

// ReadConfig returns the coral configuration based on the values provided in 'config.yaml'.
// The file is loaded from '/etc/coral', '$HOME/.coral', or the current working directory. If no configuration
// file is present, the default values are returned.
func ReadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()

	viper.SetTypeByDefaultValue(true)
	err := viper.ReadInConfig()
	if err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := ReadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	base, err := logger.NewLogger(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = base.Sync() }()
	log := base.With(zap.String("run_id", ulid.Make().String()))

	output, _ := cmd.Flags().GetString("output")

	s, err := newSession(*cfg, log)
	if err != nil {
		return err
	}
	defer s.close()

	log.Info("starting coral",
		zap.String("engine", s.engine.Name()),
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
		zap.Int("bit_depth", cfg.BitDepth),
		zap.String("source", cfg.Source),
		zap.String("aggregation", cfg.Aggregation))

	return present(cmd.Context(), s, *cfg, output)
}

// session is one engine with the device it runs on.
type session struct {
	engine engine.Engine
	device *accel.Device
	log    logger.Logger
}

func newSession(cfg config.Config, log logger.Logger) (*session, error) {
	opts, err := cfg.EngineOptions()
	if err != nil {
		return nil, err
	}
	opts.Logger = log
	s := &session{log: log}
	if opts.Kind == engine.Accelerated {
		dev, err := accel.NewDevice(cfg.DeviceOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to create device: %w", err)
		}
		s.device = dev
		opts.Device = dev
	}
	s.engine, err = engine.New(opts)
	if err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *session) start(ctx context.Context) *engine.Runner {
	return engine.Start(ctx, s.engine)
}

func (s *session) close() {
	if s.device == nil {
		return
	}
	if err := s.device.Close(); err != nil {
		s.log.Warn("device close failed", zap.Error(err))
	}
	s.device = nil
}
