// cmd/devices.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/morsekit/internal/cli/decode"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available audio capture devices",
	RunE:  runDevices,
}

func runDevices(_ *cobra.Command, _ []string) error {
	devices, err := decode.ListAudioDevices()
	if err != nil {
		return fmt.Errorf("devices: %w", err)
	}
	if len(devices) == 0 {
		fmt.Println("no capture devices found")
		return nil
	}
	for i, dev := range devices {
		fmt.Printf("  [%d] %s\n", i, dev.Name())
	}
	return nil
}
