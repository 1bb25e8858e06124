package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/teslashibe/go-mimic/internal/config"
	"github.com/teslashibe/go-mimic/internal/log"
	"github.com/teslashibe/go-mimic/pkg/hub"
	"github.com/teslashibe/go-mimic/pkg/mocopi"
	"github.com/teslashibe/go-mimic/pkg/report"
	"github.com/teslashibe/go-mimic/pkg/runner"
	"github.com/teslashibe/go-mimic/pkg/store"
	"github.com/teslashibe/go-mimic/pkg/web"
)

func serve(ctx context.Context, cfg *config.Config) error {
	if *servePort != "" {
		cfg.Server.Port = *servePort
	}
	if *serveFeed != "" {
		cfg.Mocopi.FeedURL = *serveFeed
	}
	if *serveUDP != "" {
		cfg.Mocopi.Address = *serveUDP
	}
	if *serveClip != "" {
		cfg.Runner.Clip = *serveClip
	}

	lib, err := library(cfg)
	if err != nil {
		return err
	}
	clip, err := resolveClip(lib, cfg.Runner.Clip)
	if err != nil {
		return err
	}
	lib.Register(clip)

	fmt.Println("🕺 Mimic")
	fmt.Println("========")
	fmt.Printf("Reference: %s (%s)\n", clip.Name, seconds(clip.Duration))
	fmt.Printf("Dashboard: http://localhost%s\n\n", cfg.Server.Addr())

	reports := hub.New("report")
	sinks := report.Multi{report.NewHubSink(reports)}

	if cfg.MQTT.Enabled {
		client, err := report.Connect(cfg.MQTT.MQTTConfig)
		if err != nil {
			log.Warn("MQTT unavailable, continuing without it", "broker", cfg.MQTT.Broker, "error", err)
		} else {
			defer client.Disconnect(250)
			sinks = append(sinks, report.NewMQTTSink(client, cfg.MQTT.MQTTConfig))
		}
	}

	var history web.History
	if cfg.Store.Path != "" && !*serveNoDB {
		db, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		history = db

		var stats *store.StatsFile
		if cfg.Store.Stats != "" {
			stats = store.NewStatsFile(cfg.Store.Stats)
		}
		sinks = append(sinks, store.NewSink(db, stats))
	}

	source := mocopi.NewSource(mocopi.SourceConfig{
		WorldSpace: cfg.Mocopi.WorldSpace,
		MaxAge:     cfg.Mocopi.MaxAge,
	})

	r, err := runner.New(runner.Config{
		Rate:    cfg.Runner.Rate(),
		Session: cfg.Session,
		Cursor:  cfg.Runner.Cursor,
		Sink:    sinks,
	}, clip, source)
	if err != nil {
		return err
	}

	onReset := func() {
		if err := r.Reset(ctx); err != nil {
			log.Warn("reset failed", "error", err)
		}
	}

	server := web.NewServer(web.Config{
		Controller: r,
		Library:    lib,
		History:    history,
		Hub:        reports,
		StaticDir:  cfg.Server.StaticDir,
	})

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				log.Error(name+" stopped", "error", err)
			}
		}()
	}

	run("hub", func(ctx context.Context) error { reports.Run(ctx); return nil })
	run("runner", r.Run)
	run("dashboard", func(ctx context.Context) error { return server.Run(ctx, cfg.Server.Addr()) })

	if !*serveNoUDP {
		listener := mocopi.NewListener(mocopi.ListenerConfig{
			Address:     cfg.Mocopi.Address,
			RcvBuf:      cfg.Mocopi.RcvBuf,
			LogInterval: cfg.Mocopi.LogInterval,
			OnReset:     onReset,
		}, source)
		run("mocopi listener", listener.Run)
	}
	if cfg.Mocopi.FeedURL != "" {
		feed := mocopi.NewFeed(mocopi.FeedConfig{URL: cfg.Mocopi.FeedURL, OnReset: onReset}, source)
		run("pose feed", feed.Run)
	}

	<-ctx.Done()
	fmt.Println("\n👋 Shutting down...")
	wg.Wait()

	final := r.Report()
	fmt.Printf("Last session: %s %.1f%% (%s)\n", final.Event, final.Score(), final.Grade)
	return nil
}
