package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"colco/hue"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options are the command-line settings that are not part of Config.
type options struct {
	configPath  string
	writeConfig bool
}

// parseArgs loads the config file named by -config and applies the
// remaining flags on top of it.
func parseArgs(args []string) (*Config, options, error) {
	var opts options
	defaultPath, err := appPath("config.yaml")
	if err != nil {
		return nil, opts, err
	}

	fs := flag.NewFlagSet("colco", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", defaultPath, "path to config.yaml")
	fs.BoolVar(&opts.writeConfig, "write-config", false, "write the merged settings to the config file and exit")
	source := fs.String("source", "", "frame source: auto, screen, ffmpeg, pipewire, camera")
	mode := fs.String("mode", "", "sample mode: average or center")
	format := fs.String("format", "", "capture pixel format: bgrx, rgbx, bgra, rgba")
	guide := fs.Float64("guide", -1, "guide square side in native pixels (0 samples a single point)")
	hueFlag := fs.Bool("hue", false, "stream the sampled color to a Hue entertainment area")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return nil, opts, err
	}

	cfg, err := LoadConfig(opts.configPath)
	if err != nil {
		return nil, opts, err
	}
	if *source != "" {
		cfg.Source = *source
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if *format != "" {
		cfg.CaptureFormat = *format
	}
	if *guide >= 0 {
		cfg.GuideSize = *guide
	}
	if *hueFlag {
		cfg.Hue.Enabled = true
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, opts, err
	}
	return cfg, opts, nil
}

func run(args []string) error {
	cfg, opts, err := parseArgs(args)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if opts.writeConfig {
		if err := cfg.Save(opts.configPath); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		fmt.Printf("Wrote %s\n", opts.configPath)
		return nil
	}

	log := discardLogger()
	if logPath, err := appPath("colco.log"); err == nil {
		if l, closer, err := newLogger(logPath, cfg.LogLevel); err == nil {
			defer closer.Close()
			log = l
		}
	}

	var sink colorSink
	if cfg.Hue.Enabled {
		streamer, stop, err := startHue(log)
		if err != nil {
			return err
		}
		defer stop()
		sink = streamer
	}

	open := func() (FrameSource, string, error) { return OpenSource(cfg, log) }
	result, err := tea.NewProgram(newPicker(cfg, log, open, sink)).Run()
	if err != nil {
		return err
	}

	m := result.(picker)
	if m.src != nil {
		if err := m.src.Close(); err != nil {
			log.WithError(err).Debug("Closing frame source")
		}
	}
	return m.err
}

// startHue runs the setup flow, activates the chosen entertainment area
// and opens a streamer to it. stop closes the stream and deactivates the
// area.
func startHue(log *logrus.Logger) (*hue.Streamer, func(), error) {
	store, err := DefaultCredentialStore()
	if err != nil {
		return nil, nil, err
	}
	result, err := tea.NewProgram(newSetup(bridgeAPI{}, store, log)).Run()
	if err != nil {
		return nil, nil, err
	}
	m := result.(setup)
	if m.err != nil {
		return nil, nil, m.err
	}

	b, area := *m.bridge, *m.selectedArea
	client := hue.NewClient(hue.BaseURL(b.IP), m.creds.Username)

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := client.Activate(ctx, area.ID); err != nil {
		return nil, nil, err
	}
	streamer, err := hue.NewStreamer(ctx, b.IP, m.creds.Username, m.creds.Clientkey, area.ID, area.ChannelIDs)
	if err != nil {
		_ = client.Deactivate(context.Background(), area.ID)
		return nil, nil, err
	}

	log.WithFields(logrus.Fields{
		"function": "startHue",
		"bridge":   b.ID,
		"area":     area.Name,
	}).Info("Streaming to entertainment area")

	stop := func() {
		streamer.Close()
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := client.Deactivate(ctx, area.ID); err != nil {
			log.WithError(err).Warn("Deactivating entertainment area")
		}
	}
	return streamer, stop, nil
}
