package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ecg-quality/internal/analysis"
	"ecg-quality/internal/report"
	"ecg-quality/internal/scheduler"
)

// Options configure the inbox watcher.
type Options struct {
	Dir       string
	OutputDir string
	Pattern   string
	// Settle skips files modified more recently than this, so partially
	// copied exports are not picked up.
	Settle time.Duration
	Params analysis.Params
	Pretty bool
}

// Service polls an inbox directory and writes one report per recording.
type Service struct {
	scheduler *scheduler.Scheduler
	analyzer  *analysis.Analyzer
	opts      Options
	logger    zerolog.Logger

	// seen maps a path to the modification signature last processed.
	seen map[string]string
}

// New constructs the watch service.
func New(opts Options, sched *scheduler.Scheduler, analyzer *analysis.Analyzer, logger zerolog.Logger) *Service {
	if opts.Pattern == "" {
		opts.Pattern = "*.txt"
	}
	if opts.OutputDir == "" {
		opts.OutputDir = opts.Dir
	}
	return &Service{
		scheduler: sched,
		analyzer:  analyzer,
		opts:      opts,
		logger:    logger.With().Str("component", "service").Logger(),
		seen:      make(map[string]string),
	}
}

// Run begins the polling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	if err := os.MkdirAll(s.opts.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return s.scheduler.Run(ctx, s.ProcessTick)
}

// ProcessTick analyses every settled recording that is new or changed since
// the last tick. A failing recording is logged and not retried until it
// changes again.
func (s *Service) ProcessTick(ctx context.Context, at time.Time) error {
	pending, err := s.pending(at)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		s.logger.Debug().Time("tick", at).Msg("inbox empty")
		return nil
	}

	processed, failed := 0, 0
	for _, c := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.seen[c.path] = c.signature
		if err := s.process(ctx, c.path); err != nil {
			if errors.Is(err, context.Canceled) {
				delete(s.seen, c.path)
				return err
			}
			failed++
			s.logger.Error().Err(err).Str("file", c.path).Msg("处理失败")
			continue
		}
		processed++
	}

	s.logger.Info().Time("tick", at).Int("processed", processed).Int("failed", failed).Msg("inbox processed")
	return nil
}

type candidate struct {
	path      string
	signature string
}

func (s *Service) pending(at time.Time) ([]candidate, error) {
	matches, err := filepath.Glob(filepath.Join(s.opts.Dir, s.opts.Pattern))
	if err != nil {
		return nil, fmt.Errorf("scan inbox: %w", err)
	}
	sort.Strings(matches)

	var out []candidate
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if s.opts.Settle > 0 && at.Sub(info.ModTime()) < s.opts.Settle {
			continue
		}
		sig := fmt.Sprintf("%d:%d", info.Size(), info.ModTime().UnixNano())
		if s.seen[path] == sig {
			continue
		}
		out = append(out, candidate{path: path, signature: sig})
	}
	return out, nil
}

func (s *Service) process(ctx context.Context, path string) error {
	res, err := s.analyzer.RunFile(ctx, path, s.opts.Params)
	if err != nil {
		return err
	}

	target := ReportPath(s.opts.OutputDir, path)
	tmp := target + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := report.Encode(file, res.Report, s.opts.Pretty); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish report: %w", err)
	}

	s.logger.Info().Str("file", path).
		Str("report", target).
		Str("overall", res.Summary.Overall).
		Bool("usable", res.Summary.Usable).
		Msg("report written")
	return nil
}

// ReportPath is where the report of recording lands inside dir.
func ReportPath(dir, recording string) string {
	base := filepath.Base(recording)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, base+".report.json")
}
