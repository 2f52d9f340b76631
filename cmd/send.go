// cmd/send.go
package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/morsekit/internal/generator"
	"github.com/ColonelBlimp/morsekit/internal/tonequeue"
)

var sendCmd = &cobra.Command{
	Use:   "send [text]",
	Short: "Send text as CW audio",
	Long:  `Sends the given text (or stdin, if no argument is given) as CW audio through the configured sound backend.`,
	Args:  cobra.ArbitraryArgs,
	RunE:  runSend,
}

func slopeShapeFromName(name string) tonequeue.SlopeShape {
	switch name {
	case "linear":
		return tonequeue.SlopeLinear
	case "sine":
		return tonequeue.SlopeSine
	case "rectangular":
		return tonequeue.SlopeRectangular
	default:
		return tonequeue.SlopeRaisedCosine
	}
}

func runSend(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	text := strings.Join(args, " ")
	if len(args) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("send: read stdin: %w", err)
		}
		text = strings.Join(strings.Fields(string(data)), " ")
	}
	if text == "" {
		return fmt.Errorf("send: no text given")
	}

	gen, err := generator.New(settings.GenBackend, settings.GenDevice)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer func() {
		if err := gen.Delete(); err != nil {
			log.Error("send: delete generator", "error", err)
		}
	}()

	wpm := resolveWPM(cmd, settings.WPM)
	if err := gen.SetWPM(wpm); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if err := gen.SetFrequencyHz(settings.GenFrequencyHz); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if err := gen.SetVolumePercent(settings.GenVolumePercent); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if err := gen.SetGapUnits(settings.GenGapUnits); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if err := gen.SetWeightingPercent(settings.GenWeightingPercent); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	gen.SetSlopeShape(slopeShapeFromName(settings.GenSlope))
	gen.SetSlopeLengthMicroseconds(uint32(settings.GenSlopeLengthUs))

	log.Info("sending", "text", text, "wpm", wpm, "backend", settings.GenBackend)

	if err := gen.Start(); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if err := gen.EnqueueString(text); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if err := gen.WaitForToneQueue(); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return gen.Stop()
}
