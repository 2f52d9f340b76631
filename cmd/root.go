// cmd/root.go
package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ColonelBlimp/morsekit/internal/config"
	"github.com/ColonelBlimp/morsekit/internal/morsecode"
)

var rootCmd = &cobra.Command{
	Use:   "morsekit",
	Short: "Generate, key and decode CW (Morse code)",
	Long:  `morsekit sends, keys and decodes CW: a PCM tone generator, an iambic keyer and an audio-input decoder sharing one timing model.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "execution error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags (override config file)
	rootCmd.PersistentFlags().IntP("device", "d", -1, "audio device index (-1 for default)")
	rootCmd.PersistentFlags().IntP("wpm", "w", 0, "words per minute (0 = use config)")
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "enable debug output")

	cobra.CheckErr(viper.BindPFlag("device_index", rootCmd.PersistentFlags().Lookup("device")))
	cobra.CheckErr(viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")))

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(recvCmd)
	rootCmd.AddCommand(keyerCmd)
	rootCmd.AddCommand(devicesCmd)
}

func initConfig() {
	if err := config.Init(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}

// loadSettings fetches validated settings and raises the logger's level in
// debug mode.
func loadSettings() (*config.Settings, error) {
	settings, err := config.Get()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if settings.Debug {
		log.SetLevel(log.DebugLevel)
	}
	if settings.DictionaryPath != "" {
		if err := morsecode.LoadOverrides(settings.DictionaryPath); err != nil {
			return nil, fmt.Errorf("load dictionary overrides: %w", err)
		}
	}
	return settings, nil
}

// resolveWPM returns the configured WPM unless the --wpm flag was explicitly
// set on cmd, in which case the flag value wins.
func resolveWPM(cmd *cobra.Command, configured int) int {
	if f := cmd.Flags().Lookup("wpm"); f != nil && f.Changed {
		if v, err := cmd.Flags().GetInt("wpm"); err == nil && v > 0 {
			return v
		}
	}
	return configured
}
