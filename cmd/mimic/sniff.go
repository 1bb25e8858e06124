package main

import (
	"context"
	"fmt"
	"time"

	"github.com/teslashibe/go-mimic/internal/config"
	"github.com/teslashibe/go-mimic/pkg/mocopi"
)

func sniff(ctx context.Context, cfg *config.Config) error {
	if *sniffDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *sniffDuration)
		defer cancel()
	}

	source := mocopi.NewSource(mocopi.SourceConfig{
		WorldSpace: cfg.Mocopi.WorldSpace,
		MaxAge:     cfg.Mocopi.MaxAge,
	})
	listener := mocopi.NewListener(mocopi.ListenerConfig{
		Address:     cfg.Mocopi.Address,
		RcvBuf:      cfg.Mocopi.RcvBuf,
		LogInterval: cfg.Mocopi.LogInterval,
		OnPacket:    printPacket,
		OnReset:     func() { fmt.Println("↺ reset command") },
	}, source)

	fmt.Printf("👂 Listening for mocopi packets on %s (Ctrl+C to stop)\n", cfg.Mocopi.Address)
	err := listener.Run(ctx)

	st := listener.Stats()
	fmt.Printf("\n%d packets: %d skeletons, %d frames, %d errors\n", st.Packets, st.Skeletons, st.Frames, st.Errors)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func printPacket(p *mocopi.Packet) {
	switch p.Kind {
	case mocopi.KindSkeleton:
		fmt.Printf("%s skeleton: %d bones\n", time.Now().Format("15:04:05.000"), len(p.Bones))
	case mocopi.KindFrame:
		hips := "-"
		for _, b := range p.Frame.Bones {
			if b.ID == 0 {
				hips = fmt.Sprintf("(%.2f, %.2f, %.2f)", b.Trans.Pos[0], b.Trans.Pos[1], b.Trans.Pos[2])
				break
			}
		}
		fmt.Printf("%s frame %d t=%d bones=%d hips=%s\n", time.Now().Format("15:04:05.000"), p.Frame.Number, p.Frame.Time, len(p.Frame.Bones), hips)
	}
}
