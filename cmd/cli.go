// SPDX-License-Identifier: MIT
package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"thdscope/internal/config"
	"thdscope/pkg/build"
)

// ParseArgs builds the runtime configuration: defaults, then an
// optional YAML file, then environment overrides, then command line
// flags, each layer winning over the previous one.
func ParseArgs() (*config.Config, error) {
	buildInfo := build.GetBuildFlags()

	options, err := config.LoadConfig(configPathArg())
	if err != nil {
		return nil, err
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Run = true
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = "list"
			options.Run = false
		},
	}
	rootCmd.AddCommand(listCmd)

	// Analyzer role. A channel strip measures its own input and sends
	// telemetry; the master brain also receives telemetry from strips.
	rootCmd.PersistentFlags().StringVarP(&options.Mode, "mode", "m", options.Mode,
		"Analyzer mode: 'channel' measures and sends, 'master' aggregates")
	rootCmd.PersistentFlags().IntVarP(&options.ChannelID, "channel-id", "i", options.ChannelID,
		"Registry slot for this instance (0-7)")

	// Audio Device Configuration
	rootCmd.PersistentFlags().IntVarP(&options.DeviceID, "device", "d", options.DeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	rootCmd.PersistentFlags().IntVarP(&options.Channels, "channels", "c", options.Channels,
		"Number of input channels to capture (mixed to mono for analysis)")
	rootCmd.PersistentFlags().Float64VarP(&options.SampleRate, "sample-rate", "s", options.SampleRate,
		"Sample rate, measured in Hertz (Hz)")
	rootCmd.PersistentFlags().IntVarP(&options.FramesPerBuffer, "frames-per-buffer", "b", options.FramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	rootCmd.PersistentFlags().BoolVarP(&options.LowLatency, "low-latency", "l", options.LowLatency,
		"Use low latency mode for real-time processing")
	rootCmd.PersistentFlags().IntVarP(&options.FFTSize, "fft-size", "n", options.FFTSize,
		"Analysis window length in samples (power of 2, max 32768)")

	// Telemetry Configuration
	rootCmd.PersistentFlags().StringVarP(&options.TargetAddress, "target", "t", options.TargetAddress,
		"UDP address to send telemetry to (channel mode)")
	rootCmd.PersistentFlags().StringVarP(&options.ListenAddress, "listen", "L", options.ListenAddress,
		"UDP address to receive telemetry on (master mode)")
	rootCmd.PersistentFlags().StringVarP(&options.WebSocketPort, "websocket-port", "p", options.WebSocketPort,
		"Port for the WebSocket snapshot server (empty disables it)")

	// Recording Configuration
	rootCmd.PersistentFlags().BoolVarP(&options.Record, "record", "r", options.Record,
		"Record the analyzed mono signal to a WAV file")
	rootCmd.PersistentFlags().StringVarP(&options.OutputFile, "output", "o", options.OutputFile,
		"Output file name. Default is recording-DD-MM-YYYY-HHMMSS.wav")

	// Debug Configuration
	rootCmd.PersistentFlags().BoolVarP(&options.Verbose, "verbose", "v", options.Verbose,
		"Show verbose output")

	// Consumed before cobra runs; registered so it shows in help and
	// does not trip unknown-flag handling.
	rootCmd.PersistentFlags().StringP("config", "f", "",
		"Path to a YAML configuration file")

	// Defaults
	if options.OutputFile == "" {
		options.OutputFile = "recording-" +
			time.Now().UTC().Format("02-01-2006-150405") +
			".wav"
	}

	// Execute the CLI
	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	// Flags may have changed validated values (mode, window size), so
	// check the final composite once more.
	if err := options.Validate(); err != nil {
		return nil, err
	}

	return options, nil
}

// configPathArg scans the raw arguments for --config/-f ahead of flag
// parsing, since the file must be loaded before flag defaults are
// registered.
func configPathArg() string {
	args := os.Args[1:]
	for i, arg := range args {
		switch {
		case arg == "--config" || arg == "-f":
			if i+1 < len(args) {
				return args[i+1]
			}
		case len(arg) > len("--config=") && arg[:len("--config=")] == "--config=":
			return arg[len("--config="):]
		}
	}
	return ""
}
