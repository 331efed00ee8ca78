// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/go-core-stack/iothrottle/api"
	"github.com/go-core-stack/iothrottle/blockio"
	"github.com/go-core-stack/iothrottle/config"
	"github.com/go-core-stack/iothrottle/loop"
	"github.com/go-core-stack/iothrottle/throttle"
	"github.com/go-core-stack/iothrottle/values"
)

type options struct {
	cfgPath  string
	cfgName  string
	cfgType  string
	listen   string
	duration time.Duration
	workload workload
	limiter  api.LimiterConfig
}

func main() {
	var opts options

	cfgPath, cfgName := values.GetConfigLocation()
	flag.StringVar(&opts.cfgPath, "config-path", cfgPath, "Directory holding the config file")
	flag.StringVar(&opts.cfgName, "config-name", cfgName, "Config file name without extension")
	flag.StringVar(&opts.cfgType, "config-type", "yaml", "Config file type")
	flag.StringVar(&opts.listen, "listen", "", "Serve the control API on this address, overrides the config")
	flag.DurationVar(&opts.duration, "duration", 10*time.Second, "Workload duration, 0 runs until interrupted")

	flag.IntVar(&opts.workload.workers, "workers", 4, "Workers issuing I/O per device")
	flag.IntVar(&opts.workload.blockSize, "block-size", 4096, "Size of every I/O operation")
	flag.Float64Var(&opts.workload.writeRatio, "write-ratio", 0.5, "Share of operations that are writes")

	flag.Float64Var(&opts.limiter.RPS, "limiter-rps", 10, "Control API maximum requests per second")
	flag.IntVar(&opts.limiter.Burst, "limiter-burst", 20, "Control API maximum burst")
	flag.BoolVar(&opts.limiter.Enabled, "limiter-enabled", true, "Enable the control API rate limiter")

	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := opts.workload.validate(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	if err := run(logger, opts); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func run(logger *slog.Logger, opts options) error {
	v := viper.New()
	var cfg config.Config
	err := config.Load(v, opts.cfgPath, opts.cfgType, opts.cfgName, &cfg)
	if err != nil {
		return err
	}
	logger.Info("config loaded", "devices", len(cfg.Devices), "at", cfg.LoadTime.Format(time.RFC3339))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workCtx := ctx
	if opts.duration > 0 {
		var cancel context.CancelFunc
		workCtx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	ev := loop.NewContext(ctx)
	defer ev.Stop()

	mgr := blockio.NewManager(throttle.NewMonotonicClock(), ev)
	if err := applyConfig(logger, mgr, &cfg); err != nil {
		return err
	}

	config.Watch(v, func(c *config.Config) {
		if err := applyConfig(logger, mgr, c); err != nil {
			logger.Error("failed to apply config update", "error", err)
		}
	})

	var wg sync.WaitGroup
	listen := cfg.Listen
	if opts.listen != "" {
		listen = opts.listen
	}
	if listen != "" {
		srv := api.New(logger, mgr, opts.limiter)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Serve(ctx, listen); err != nil {
				logger.Error("control API failed", "error", err)
			}
		}()
	}

	stats := opts.workload.run(workCtx, logger, mgr)
	for _, s := range stats {
		logger.Info("workload done", "device", s.device,
			"reads", s.ops[throttle.Read], "writes", s.ops[throttle.Write],
			"read_bps", s.rate(throttle.Read), "write_bps", s.rate(throttle.Write))
	}

	// the API stays up until interrupted
	if listen != "" {
		<-ctx.Done()
	}
	wg.Wait()
	return nil
}
