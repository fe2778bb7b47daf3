// cmd/root.go
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ColonelBlimp/pskrtty/internal/cli/decode"
	"github.com/ColonelBlimp/pskrtty/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "pskrtty",
	Short: "RTTY and PSK31 decoder from audio input",
	Long: `A real-time RTTY (45.45 baud Baudot) and PSK31 (Varicode) decoder.
Samples a sound card or replays a WAV file at 9615 Hz and prints decoded text.`,
	RunE:          runDecoder,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags (override config file)
	rootCmd.PersistentFlags().StringP("mode", "m", "rtty", "decode mode: rtty or psk")
	rootCmd.PersistentFlags().IntP("device", "d", -1, "audio device index (-1 for default)")
	rootCmd.PersistentFlags().StringP("wav", "i", "", "decode a mono 16-bit WAV file instead of live audio")
	rootCmd.PersistentFlags().StringP("metrics", "M", "", "serve Prometheus metrics on this address")
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "enable debug output")
}

// bindFlags binds the global flags to their config keys.
func bindFlags() {
	flags := rootCmd.PersistentFlags()
	_ = viper.BindPFlag("mode", flags.Lookup("mode"))
	_ = viper.BindPFlag("device_index", flags.Lookup("device"))
	_ = viper.BindPFlag("wav_file", flags.Lookup("wav"))
	_ = viper.BindPFlag("metrics_addr", flags.Lookup("metrics"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
}

func initConfig() {
	bindFlags()
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(cmd *cobra.Command, debug bool) *log.Logger {
	logger := log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
		ReportTimestamp: true,
		Prefix:          config.AppName,
	})
	if debug {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func runDecoder(cmd *cobra.Command, _ []string) error {
	settings, err := config.Get()
	if err != nil {
		return err
	}
	logger := newLogger(cmd, settings.Debug)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := decode.NewDecoder(*settings, cmd.OutOrStdout(), logger)
	if err != nil {
		return err
	}

	src, closeSrc, err := decode.OpenSource(*settings)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeSrc(); cerr != nil {
			logger.Warn("close audio source", "err", cerr)
		}
	}()

	logger.Info("decoding",
		"mode", d.Scheduler().Mode(),
		"wav", settings.WAVFile,
		"device", settings.DeviceIndex,
	)
	return d.Run(ctx, src)
}
