// opsconsole is the operations console: a supervised shell command runner
// and a relay reachability prober behind one HTTP API.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"opsconsole/internal/config"
)

var (
	flagVerbose bool     // value of --verbose flag
	flagEnvFile []string // value of --env-file flag
)

func main() {
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "debug logging")
	rootCmd.PersistentFlags().StringSliceVar(&flagEnvFile, "env-file", nil, "dotenv files to load before reading configuration (default: .env if present)")

	rootCmd.SilenceErrors = true
	rootCmd.PersistentPreRunE = initConsole

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("opsconsole failed", "error", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "opsconsole",
	Short:        "Run shell commands and probe relays through an HTTP API",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("opsconsole: version info not available")
			return
		}
		fmt.Printf("opsconsole: %s\n", info.Main.Version)
		fmt.Printf("go:         %s\n", info.GoVersion)
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				fmt.Printf("commit:     %s\n", s.Value)
			}
		}
	},
}

// initConsole loads dotenv files and installs the JSON logger.
func initConsole(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(flagEnvFile...); err != nil {
		return err
	}

	level := config.GetLevelEnv("LOG_LEVEL", slog.LevelInfo)
	if flagVerbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}
