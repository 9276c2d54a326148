package cmd

import (
	"context"
	"fmt"

	"firestige.xyz/lswitch/internal/config"
	"firestige.xyz/lswitch/internal/log"
	"firestige.xyz/lswitch/internal/metrics"
	"firestige.xyz/lswitch/internal/switching/engine"
	"firestige.xyz/lswitch/internal/switching/iface"
	"firestige.xyz/lswitch/internal/switching/table"
)

// env is what every host command needs before it can build a switch.
type env struct {
	cfg     *config.Config
	logger  log.Logger
	metrics *metrics.Metrics
	server  *metrics.Server
}

func setup(ctx context.Context, path string) (*env, error) {
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	return setupWith(ctx, cfg)
}

func setupWith(ctx context.Context, cfg *config.Config) (*env, error) {
	if err := log.Init(cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	e := &env{cfg: cfg, logger: log.GetLogger()}
	if cfg.Metrics.Enabled {
		e.metrics = metrics.New()
		e.server = metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path, e.metrics)
		if err := e.server.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start metrics server: %w", err)
		}
	}
	return e, nil
}

// interfaceNames prefers names from the command line over the config file.
func (e *env) interfaceNames(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if len(e.cfg.Switch.Interfaces) > 0 {
		return e.cfg.Switch.Interfaces, nil
	}
	return nil, fmt.Errorf("no interfaces: pass them as arguments or set switch.interfaces")
}

func (e *env) newEngine(names []string, tx engine.Transmitter, opts ...engine.Option) (*engine.Engine, error) {
	reg, err := iface.ConfigureNamed(names)
	if err != nil {
		return nil, err
	}
	tbl, err := table.New(e.cfg.Switch.TableCapacity)
	if err != nil {
		return nil, err
	}
	opts = append([]engine.Option{engine.WithLogger(e.logger)}, opts...)
	if e.metrics != nil {
		opts = append(opts, engine.WithRecorder(e.metrics))
	}

	e.logger.WithFields(map[string]interface{}{
		"interfaces": len(names),
		"capacity":   tbl.Capacity(),
	}).Info("switch configured")
	return engine.New(reg, tbl, tx, opts...), nil
}

func (e *env) close(ctx context.Context) {
	if e.server != nil {
		if err := e.server.Stop(ctx); err != nil {
			e.logger.WithError(err).Warn("metrics server stop failed")
		}
	}
}
