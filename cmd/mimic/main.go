// Mimic - scores how closely a performer follows a reference motion
//
// Live scoring takes poses from a mocopi sensor (UDP or a JSON websocket
// feed), compares them against a reference clip, and publishes reports to
// the dashboard, MQTT and the session store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/teslashibe/go-mimic/internal/config"
	"github.com/teslashibe/go-mimic/internal/log"
	"github.com/teslashibe/go-mimic/pkg/reference"
)

var version = "0.1.0"

var (
	configPath = kingpin.Flag("config", "INI config file").Short('c').Default(config.Path(config.DefaultPath)).String()
	logLevel   = kingpin.Flag("log-level", "debug, info, warn or error").Short('l').Default("info").String()

	serveCmd   = kingpin.Command("serve", "Score a live performer against a reference clip").Default()
	serveClip  = serveCmd.Flag("clip", "Reference clip name or file").Short('r').String()
	servePort  = serveCmd.Flag("port", "Dashboard port").Short('p').String()
	serveFeed  = serveCmd.Flag("feed", "Websocket URL of a JSON pose feed").String()
	serveUDP   = serveCmd.Flag("udp", "mocopi UDP address").String()
	serveNoDB  = serveCmd.Flag("no-store", "Do not persist sessions").Bool()
	serveNoUDP = serveCmd.Flag("no-udp", "Do not listen for mocopi datagrams").Bool()

	replayCmd    = kingpin.Command("replay", "Score a recorded performance against a reference offline")
	replayRef    = replayCmd.Arg("reference", "Reference clip name or file").Required().String()
	replayPlayer = replayCmd.Arg("player", "Recorded performance clip file").Required().ExistingFile()
	replayFPS    = replayCmd.Flag("fps", "Replay tick rate").Default("60").Float64()
	replayJSON   = replayCmd.Flag("json", "Print the report as JSON").Bool()
	replaySave   = replayCmd.Flag("save", "Store the result in the session database").Bool()

	recordCmd      = kingpin.Command("record", "Record a performance from the sensor into a clip file")
	recordOut      = recordCmd.Arg("file", "Output clip file").Required().String()
	recordName     = recordCmd.Flag("name", "Clip name").String()
	recordDesc     = recordCmd.Flag("description", "Clip description").Default("").String()
	recordDuration = recordCmd.Flag("duration", "Recording length").Short('d').Default("10s").Duration()
	recordFPS      = recordCmd.Flag("fps", "Keyframe rate").Default("30").Float64()
	recordDelay    = recordCmd.Flag("delay", "Countdown before recording").Default("3s").Duration()

	clipsCmd  = kingpin.Command("clips", "List available reference clips")
	clipsFind = clipsCmd.Arg("query", "Filter by name").String()

	sniffCmd      = kingpin.Command("sniff", "Print mocopi packets as they arrive")
	sniffDuration = sniffCmd.Flag("duration", "Stop after this long, zero runs until interrupted").Short('d').Default("0s").Duration()
)

func main() {
	kingpin.Version(version)
	cmd := kingpin.Parse()

	log.Init(*logLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	if cfg.Path != "" {
		log.Info("config loaded", "path", cfg.Path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case serveCmd.FullCommand():
		err = serve(ctx, cfg)
	case replayCmd.FullCommand():
		err = replay(ctx, cfg)
	case recordCmd.FullCommand():
		err = record(ctx, cfg)
	case clipsCmd.FullCommand():
		err = clips(cfg)
	case sniffCmd.FullCommand():
		err = sniff(ctx, cfg)
	}

	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

// library loads the built-in clips plus the configured clip directory.
func library(cfg *config.Config) (*reference.Library, error) {
	lib := reference.NewLibrary()
	if err := lib.LoadBuiltIn(); err != nil {
		return nil, err
	}
	if cfg.Runner.ClipDir != "" {
		if err := lib.LoadDir(cfg.Runner.ClipDir); err != nil {
			return nil, fmt.Errorf("failed to load clips from %s: %w", cfg.Runner.ClipDir, err)
		}
	}
	return lib, nil
}

// resolveClip accepts a clip file path or a library name.
func resolveClip(lib *reference.Library, nameOrPath string) (*reference.Clip, error) {
	if st, err := os.Stat(nameOrPath); err == nil && !st.IsDir() {
		return reference.LoadFromFile(nameOrPath)
	}
	return lib.Get(nameOrPath)
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
