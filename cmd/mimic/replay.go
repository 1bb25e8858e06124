package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/teslashibe/go-mimic/internal/config"
	"github.com/teslashibe/go-mimic/pkg/reference"
	"github.com/teslashibe/go-mimic/pkg/runner"
	"github.com/teslashibe/go-mimic/pkg/session"
	"github.com/teslashibe/go-mimic/pkg/store"
)

func replay(ctx context.Context, cfg *config.Config) error {
	if *replayFPS <= 0 {
		return fmt.Errorf("fps must be positive, got %v", *replayFPS)
	}

	lib, err := library(cfg)
	if err != nil {
		return err
	}
	refClip, err := resolveClip(lib, *replayRef)
	if err != nil {
		return err
	}
	playerClip, err := reference.LoadFromFile(*replayPlayer)
	if err != nil {
		return err
	}

	sess, err := session.New(cfg.Session, session.WithReference(refClip.Name))
	if err != nil {
		return err
	}

	opts := reference.CursorOptions{Speed: cfg.Runner.Cursor.Speed}
	rep, err := runner.Replay(sess, reference.NewCursor(refClip, opts), reference.NewCursor(playerClip, opts), 1 / *replayFPS)
	if err != nil {
		return err
	}

	if *replaySave && cfg.Store.Path != "" {
		db, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Save(ctx, rep); err != nil {
			return err
		}
	}

	if *replayJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	fmt.Printf("Reference: %s\n", refClip.Name)
	fmt.Printf("Player:    %s\n", playerClip.Name)
	fmt.Printf("Score:     %.1f%% (%s)\n", rep.Final, rep.Grade)
	fmt.Printf("Samples:   %d over %d ticks\n", rep.Samples, rep.Ticks)
	fmt.Printf("Shift:     %+d frames\n", rep.Shift)
	b := rep.Breakdown
	fmt.Printf("Breakdown: pose %s  position %s  rhythm %s\n", pct(b.Pose.OK, b.Pose.Score), pct(b.Position.OK, b.Position.Score), pct(b.Rhythm.OK, b.Rhythm.Score))
	return nil
}

func pct(ok bool, v float64) string {
	if !ok {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", v)
}
