// cmd/keyer.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/morsekit/internal/generator"
	"github.com/ColonelBlimp/morsekit/internal/key"
	"github.com/ColonelBlimp/morsekit/internal/keyline"
)

var keyerCmd = &cobra.Command{
	Use:   "keyer",
	Short: "Drive the generator from a hardware iambic paddle",
	Long:  `Polls a paddle wired to a serial port's CTS/DSR lines and plays the resulting dots and dashes through the configured sound backend.`,
	RunE:  runKeyer,
}

func runKeyer(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	settings.WPM = resolveWPM(cmd, settings.WPM)
	if !settings.KeyerEnabled {
		return fmt.Errorf("keyer: keyer_enabled is false in configuration")
	}
	if settings.KeyerDevice == "" {
		return fmt.Errorf("keyer: keyer_device is not set")
	}

	gen, err := generator.New(settings.GenBackend, settings.GenDevice)
	if err != nil {
		return fmt.Errorf("keyer: %w", err)
	}
	defer func() {
		if err := gen.Delete(); err != nil {
			log.Error("keyer: delete generator", "error", err)
		}
	}()

	if err := gen.SetWPM(settings.WPM); err != nil {
		return fmt.Errorf("keyer: %w", err)
	}
	if err := gen.SetFrequencyHz(settings.GenFrequencyHz); err != nil {
		return fmt.Errorf("keyer: %w", err)
	}
	if err := gen.SetVolumePercent(settings.GenVolumePercent); err != nil {
		return fmt.Errorf("keyer: %w", err)
	}
	if err := gen.Start(); err != nil {
		return fmt.Errorf("keyer: %w", err)
	}

	src := keyline.New(settings.KeyerDevice, 0, 0)
	if err := src.Open(); err != nil {
		return fmt.Errorf("keyer: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Error("keyer: close key line", "error", err)
		}
	}()

	switch settings.KeyerMode {
	case "straight":
		straight := key.NewStraightKey(gen)
		src.SetCallback(func(ev keyline.PaddleEvent) {
			if err := straight.SetKeyValue(ev.Dot); err != nil {
				log.Error("keyer: set key value", "error", err)
			}
		})
	default:
		keyer := key.New(gen)
		src.SetCallback(func(ev keyline.PaddleEvent) {
			if err := keyer.NotifyPaddleEvent(ev.Dot, ev.Dash); err != nil {
				log.Error("keyer: notify paddle event", "error", err)
			}
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	log.Info("keyer armed", "device", settings.KeyerDevice, "mode", settings.KeyerMode, "wpm", settings.WPM)

	errCh := make(chan error, 1)
	go func() { errCh <- src.Run(ctx) }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			cancel()
			return fmt.Errorf("keyer: %w", err)
		}
	}

	// Give any in-flight element time to finish before tearing the
	// generator down.
	time.Sleep(50 * time.Millisecond)
	return gen.Stop()
}
