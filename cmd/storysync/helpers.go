package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/storysync/internal/decompose"
	"github.com/mesh-intelligence/storysync/internal/github"
	"github.com/mesh-intelligence/storysync/internal/outline"
	"github.com/mesh-intelligence/storysync/internal/sqlite"
	"github.com/mesh-intelligence/storysync/internal/tracker"
	"github.com/mesh-intelligence/storysync/pkg/types"
)

// Preview sizes for dry-run outline output.
const (
	linkPreviewLines     = 40
	progressPreviewLines = 60
)

// session is an opened tracker plus the configuration it was opened with.
// The caller must defer Close.
type session struct {
	cfg     types.Config
	tracker types.Tracker
	dry     *tracker.DryRun
	local   *sqlite.Backend
	logger  *zap.Logger
}

// openSession builds the configuration and opens the configured tracker,
// wrapped for pacing and, in dry-run mode, write suppression.
func (a *app) openSession(ctx context.Context) (*session, error) {
	cfg, err := a.buildConfig()
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, logger: a.logger}

	var inner types.Tracker
	switch cfg.Backend {
	case types.BackendLocal:
		backend := sqlite.NewBackend(a.logger)
		if err := backend.Attach(cfg); err != nil {
			return nil, sysError(fmt.Errorf("attach local tracker: %w", err))
		}
		s.local, inner = backend, backend
	default:
		client, err := github.New(ctx, cfg.GitHub, a.logger)
		if err != nil {
			return nil, err
		}
		inner = tracker.NewPaced(client, cfg.Sync.RateDelay)
	}

	if cfg.DryRun {
		s.dry = tracker.NewDryRun(inner, a.logger)
		s.tracker = s.dry
	} else {
		s.tracker = inner
	}
	return s, nil
}

// Close releases the local backend, if any.
func (s *session) Close() error {
	if s.local != nil {
		return s.local.Detach()
	}
	return nil
}

// decomposer returns the model-backed decomposer. When no API key is set it
// returns nil if cached descriptors may still serve, and ErrMissingAPIKey
// otherwise.
func (s *session) decomposer(ctx context.Context) (types.Decomposer, error) {
	dc := s.cfg.Decompose
	if err := s.cfg.ValidateDecompose(); err != nil {
		if dc.CacheEnabled && !dc.Regenerate {
			s.logger.Warn("no decomposition API key; only cached tasks can be used")
			return nil, nil
		}
		return nil, err
	}
	gen, err := decompose.NewGenAIGenerator(ctx, dc)
	if err != nil {
		return nil, err
	}
	return decompose.NewDecomposer(gen, dc.MaxTasks, s.logger), nil
}

// cache returns the descriptor cache, or nil when caching is off.
func (s *session) cache() *decompose.Cache {
	if !s.cfg.Decompose.CacheEnabled {
		return nil
	}
	return decompose.NewCache(s.cfg.Decompose.CacheDir)
}

// liveIssues lists every issue, dropping dry-run placeholders that have no
// tracker URL to link to.
func (s *session) liveIssues(ctx context.Context) ([]types.TrackerIssue, error) {
	issues, err := s.tracker.ListIssues(ctx, types.IssueFilter{State: types.FilterAll})
	if err != nil {
		return nil, err
	}
	out := issues[:0]
	for _, is := range issues {
		if !types.SyntheticNumber(is.Number) {
			out = append(out, is)
		}
	}
	return out, nil
}

// readOutline reads the outline file.
func readOutline(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("outline %s: %w", path, types.ErrNotFound)
		}
		return "", sysError(fmt.Errorf("read outline: %w", err))
	}
	return string(data), nil
}

// writeOutline replaces the outline file atomically.
func writeOutline(path, text string) error {
	if err := atomic.WriteFile(path, bytes.NewReader([]byte(text))); err != nil {
		return sysError(fmt.Errorf("write outline: %w", err))
	}
	return nil
}

// finishOutline writes a changed outline, or prints a preview in dry-run
// mode.
func finishOutline(w io.Writer, s *session, text string, changed bool, preview int) error {
	if !changed {
		return nil
	}
	if s.cfg.DryRun {
		fmt.Fprintf(w, "--- dry run: first %d lines of the updated outline ---\n", preview)
		fmt.Fprintln(w, outline.Parse(text).Head(preview))
		return nil
	}
	return writeOutline(s.cfg.Outline.File, text)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sysError(fmt.Errorf("marshal JSON: %w", err))
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// parseNumbers parses issue number arguments.
func parseNumbers(args []string) ([]int, error) {
	out := make([]int, 0, len(args))
	for _, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: %q", types.ErrInvalidNumber, a)
		}
		out = append(out, n)
	}
	return out, nil
}
