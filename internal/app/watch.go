package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"ecg-quality/internal/scheduler"
	"ecg-quality/internal/service"
)

// Watch polls an inbox directory and writes a report for every recording
// that lands in it, until interrupted.
func (a *App) Watch(ctx context.Context, opts WatchOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := a.Config.Watch
	if opts.Dir == "" {
		opts.Dir = cfg.Dir
	}
	if opts.Dir == "" {
		return errors.New("watch directory not set; pass DIR or configure watch.dir")
	}
	if opts.OutputDir == "" {
		opts.OutputDir = cfg.OutputDir
	}
	if opts.Interval <= 0 {
		opts.Interval = cfg.Interval
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     opts.Interval,
		AlignToStart: cfg.AlignToStart,
		Immediate:    true,
	}, a.Logger)

	svc := service.New(service.Options{
		Dir:       opts.Dir,
		OutputDir: opts.OutputDir,
		Pattern:   cfg.Pattern,
		Settle:    cfg.Settle,
		Params:    opts.Params,
		Pretty:    opts.Pretty,
	}, sched, a.newAnalyzer(nil), a.Logger)

	a.Logger.Info().Str("dir", opts.Dir).Dur("interval", opts.Interval).Msg("starting inbox watcher")
	err := svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watcher terminated with error")
		return err
	}

	a.Logger.Info().Msg("inbox watcher stopped")
	return nil
}
