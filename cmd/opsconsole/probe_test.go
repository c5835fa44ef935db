package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsconsole/internal/probe"
)

type tableProber map[string]probe.Result

func (p tableProber) Probe(_ context.Context, target string) probe.Result {
	return p[target]
}

func TestRunProbe(t *testing.T) {
	prober := tableProber{
		"10.0.0.1:80":          {Reachable: true, Identity: "198.51.100.1"},
		"10.0.0.2:80":          {Reachable: true, Identity: "198.51.100.1"},
		"socks5://10.0.0.3:80": {Reachable: true, Identity: "198.51.100.3"},
	}
	sweeper := probe.NewSweeper(probe.Config{Concurrency: 1}, prober, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sweeper.Close(ctx)
	})

	var out bytes.Buffer
	targets := probe.ParseTargets("10.0.0.1:80\n10.0.0.2:80\nsocks5://10.0.0.3:80\n10.0.0.9:80\n")
	require.NoError(t, runProbe(t.Context(), sweeper, targets, &out))

	assert.Equal(t, "10.0.0.1:80\nsocks5://10.0.0.3:80\n", out.String())
	p := sweeper.Progress()
	assert.Equal(t, 4, p.Current)
	assert.Equal(t, 1, p.Failed)
}

func TestRunProbe_EmptyInput(t *testing.T) {
	sweeper := probe.NewSweeper(probe.Config{}, tableProber{}, nil)
	t.Cleanup(func() { _ = sweeper.Close(context.Background()) })

	err := runProbe(t.Context(), sweeper, nil, &bytes.Buffer{})
	require.Error(t, err)
}
