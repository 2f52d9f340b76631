// cmd/recv.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/morsekit/internal/cli/decode"
	"github.com/ColonelBlimp/morsekit/internal/receiver"
)

var recvCmd = &cobra.Command{
	Use:   "recv",
	Short: "Decode CW from audio input",
	Long:  `Listens on the configured audio input, detects CW tones and prints decoded characters and word spaces to stdout.`,
	RunE:  runRecv,
}

func runRecv(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	settings.WPM = resolveWPM(cmd, settings.WPM)

	decoder, err := decode.NewDecoder(*settings)
	if err != nil {
		return fmt.Errorf("recv: %w", err)
	}

	decoder.SetCallback(func(out decode.DecodedOutput) {
		if out.IsWordSpace {
			fmt.Print(" ")
		} else if out.Character != 0 {
			fmt.Print(string(out.Character))
		}
		if settings.Debug {
			if match, ok := decoder.Match(); ok {
				log.Debug("matched sequence", "text", match.Text)
			}
		}
	})
	if settings.Debug {
		decoder.SetCorrectedCallback(func(out receiver.CorrectedOutput) {
			log.Debug("sequence corrected", "text", out.Corrected, "confidence", out.Confidence, "timing_adjusted", out.TimingAdjusted)
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

	log.Info("listening for CW", "wpm", settings.WPM, "tone_frequency", settings.ToneFrequency)
	if err := decoder.Start(ctx); err != nil {
		return fmt.Errorf("recv: %w", err)
	}

	<-ctx.Done()

	if err := decoder.Stop(); err != nil {
		log.Error("recv: stop", "error", err)
	}
	fmt.Println()
	return nil
}
