package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"opsconsole/internal/probe"
)

var flagExportDir string // value of probe --export flag

var probeCmd = &cobra.Command{
	Use:   "probe [FILE]",
	Short: "Probe the relays listed in FILE (or stdin) and print one per distinct identity",
	Args:  cobra.MaximumNArgs(1),
	RunE:  doProbe,
}

func init() {
	probeCmd.Flags().StringVar(&flagExportDir, "export", "", "also write the unique relays into this directory")
}

func doProbe(cmd *cobra.Command, args []string) error {
	in := cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	raw, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("reading relay list: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := probe.LoadConfigFromEnv()
	sweeper := probe.NewSweeper(cfg, probe.NewHTTPProber(cfg), nil)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout+time.Second)
		defer cancel()
		_ = sweeper.Close(closeCtx)
	}()

	if err := runProbe(ctx, sweeper, probe.ParseTargets(string(raw)), cmd.OutOrStdout()); err != nil {
		return err
	}

	if flagExportDir != "" {
		res, err := sweeper.Export(flagExportDir, time.Now())
		if err != nil {
			return err
		}
		slog.Info("Export written", "path", res.Path, "count", res.Count)
	}
	return nil
}

// runProbe runs one sweep to completion, or until ctx is done, and prints
// the unique relays to out.
func runProbe(ctx context.Context, sweeper *probe.Sweeper, targets []string, out io.Writer) error {
	if err := sweeper.Start(ctx, targets); err != nil {
		return err
	}

	select {
	case <-sweeper.Done():
	case <-ctx.Done():
		slog.Warn("Interrupted, cancelling sweep")
		sweeper.Cancel()
	}

	p := sweeper.Progress()
	slog.Info("Sweep summary",
		"total", p.Total,
		"tested", p.Current,
		"working", p.Working,
		"failed", p.Failed,
		"unique", p.UniqueIPs,
		"cancelled", p.CancelRequested,
	)

	_, err := sweeper.WriteUnique(out)
	return err
}
