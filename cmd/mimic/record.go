package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/teslashibe/go-mimic/internal/config"
	"github.com/teslashibe/go-mimic/pkg/mocopi"
	"github.com/teslashibe/go-mimic/pkg/reference"
	"github.com/teslashibe/go-mimic/pkg/skeleton"
)

func record(ctx context.Context, cfg *config.Config) error {
	if *recordFPS <= 0 {
		return fmt.Errorf("fps must be positive, got %v", *recordFPS)
	}

	name := *recordName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(*recordOut), filepath.Ext(*recordOut))
	}

	source := mocopi.NewSource(mocopi.SourceConfig{
		WorldSpace: cfg.Mocopi.WorldSpace,
		MaxAge:     cfg.Mocopi.MaxAge,
	})
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 2)
	go func() {
		errc <- mocopi.NewListener(mocopi.ListenerConfig{
			Address:     cfg.Mocopi.Address,
			RcvBuf:      cfg.Mocopi.RcvBuf,
			LogInterval: cfg.Mocopi.LogInterval,
		}, source).Run(ctx)
	}()
	if cfg.Mocopi.FeedURL != "" {
		go func() {
			errc <- mocopi.NewFeed(mocopi.FeedConfig{URL: cfg.Mocopi.FeedURL, Retry: time.Second}, source).Run(ctx)
		}()
	}

	fmt.Printf("🎬 Recording %q for %s in %s...\n", name, seconds(*recordDuration), seconds(*recordDelay))
	select {
	case <-time.After(*recordDelay):
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}

	rec := reference.NewRecorder(name, *recordDesc)
	period := time.Duration(float64(time.Second) / *recordFPS)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	deadline := time.After(*recordDuration)

	var pose skeleton.Pose
	last := time.Now()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-errc:
			return err
		case <-deadline:
			break loop
		case now := <-ticker.C:
			pose = source.PoseInto(pose)
			rec.Record(pose, now.Sub(last).Seconds())
			last = now
		}
	}

	if rec.Len() == 0 {
		return fmt.Errorf("no poses received, is the sensor streaming to %s?", cfg.Mocopi.Address)
	}

	clip := rec.Clip()
	clip.FrameRate = *recordFPS
	if err := reference.Save(*recordOut, clip); err != nil {
		return err
	}
	fmt.Printf("✅ Saved %d keyframes (%s) to %s\n", clip.Len(), seconds(clip.Duration), *recordOut)
	return nil
}
