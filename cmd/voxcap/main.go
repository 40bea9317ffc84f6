package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/pcrane/voxcap/internal/audio"
	"github.com/pcrane/voxcap/internal/config"
	"github.com/pcrane/voxcap/internal/logging"
	"github.com/pcrane/voxcap/internal/recorder"
	"github.com/pcrane/voxcap/internal/wav"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfg *config.Config
		log zerolog.Logger
	)

	root := &cobra.Command{
		Use:           "voxcap",
		Short:         "Record microphone audio to WAV files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			log = logging.New(cfg.LogLevel)
			return nil
		},
	}

	root.AddCommand(newRecordCmd(&cfg, &log))
	root.AddCommand(newDevicesCmd(&cfg, &log))
	root.AddCommand(newVersionCmd())
	return root
}

func newRecordCmd(cfg **config.Config, log *zerolog.Logger) *cobra.Command {
	var (
		output      string
		deviceIndex int
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record from the microphone until Ctrl+C or the duration ceiling",
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := audio.New(*log)
			if err != nil {
				return err
			}

			persister := wav.NewPersister(afero.NewOsFs(), *log)
			session := recorder.NewSession(backend, persister, *cfg, *log)
			defer session.Close()

			progress := &progressListener{log: *log, done: make(chan struct{})}
			session.Subscribe(progress)

			if deviceIndex >= 0 {
				dev, err := findDevice(backend, deviceIndex)
				if err != nil {
					return err
				}
				if err := backend.Verify(dev, (*cfg).Audio); err != nil {
					return err
				}
				if err := session.UseDevice(dev); err != nil {
					return err
				}
			}

			if err := session.Start(output); err != nil {
				return err
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case <-sigCh:
				log.Info().Msg("interrupt received, stopping")
				return session.Stop(true)
			case <-progress.done:
				// The ceiling stop fires this after the file is written.
				return nil
			}
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path (default: timestamped file in the output directory)")
	cmd.Flags().IntVarP(&deviceIndex, "device", "d", -1, "input device index (default: system default)")
	return cmd
}

func newDevicesCmd(cfg **config.Config, log *zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available audio input devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := audio.New(*log)
			if err != nil {
				return err
			}
			defer backend.Close()

			devices, err := backend.Devices()
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Println("no input devices found")
				return nil
			}

			for _, d := range devices {
				marker := " "
				if d.Default {
					marker = "*"
				}
				fmt.Printf("%s [%d] %s (%d input channel(s))\n", marker, d.Index, d.Name, d.MaxInputChannels)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("voxcap %s (%s)\n", Version, Commit)
		},
	}
}

func findDevice(backend audio.Backend, index int) (audio.Device, error) {
	devices, err := backend.Devices()
	if err != nil {
		return audio.Device{}, err
	}
	for _, d := range devices {
		if d.Index == index {
			return d, nil
		}
	}
	return audio.Device{}, &audio.DeviceError{Kind: audio.ErrNoInputDevice}
}

// progressListener logs session events as they occur and signals done once
// the recording has stopped and any file has been written.
type progressListener struct {
	log   zerolog.Logger
	bytes atomic.Int64
	done  chan struct{}
}

func (p *progressListener) RecordingStarted(path string) {
	p.log.Info().Str("path", path).Msg("recording")
}

func (p *progressListener) RecordingStopped(path string, d time.Duration) {
	e := p.log.Info().Dur("duration", d).Int64("bytes", p.bytes.Load())
	if path != "" {
		e = e.Str("path", path)
	}
	e.Msg("done")
	close(p.done)
}

func (p *progressListener) RecordingError(err error) {
	p.log.Error().Err(err).Msg("capture error")
}

func (p *progressListener) AudioChunk(chunk []byte) {
	p.bytes.Add(int64(len(chunk)))
}
