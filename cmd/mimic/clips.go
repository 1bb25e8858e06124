package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/teslashibe/go-mimic/internal/config"
)

func clips(cfg *config.Config) error {
	lib, err := library(cfg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDURATION\tKEYFRAMES\tJOINTS\tDESCRIPTION")

	match := map[string]bool{}
	if *clipsFind != "" {
		for _, n := range lib.Search(*clipsFind) {
			match[n] = true
		}
	}
	for _, info := range lib.Infos() {
		if *clipsFind != "" && !match[info.Name] {
			continue
		}
		fmt.Fprintf(w, "%s\t%.1fs\t%d\t%d\t%s\n", info.Name, info.Duration, info.Keyframes, info.Joints, info.Description)
	}
	return w.Flush()
}
