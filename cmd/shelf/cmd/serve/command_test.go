package serve

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/shelf"
	"github.com/agentstation/shelf/internal/appcontext"
	"github.com/agentstation/shelf/internal/server"
	"github.com/agentstation/shelf/pkg/logging"
)

func TestParsePort(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"8080", 8080, false},
		{"1", 1, false},
		{"65535", 65535, false},
		{"0", 0, true},
		{"65536", 0, true},
		{"http", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePort(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseConfigOnlyAppliesChangedFlags(t *testing.T) {
	cmd := NewCommand(&appcontext.Mock{})
	require.NoError(t, cmd.ParseFlags([]string{"--port", "9090", "--admin-key", "k", "--rate-limit", "0"}))

	base := server.DefaultConfig()
	base.Debounce = 50 * time.Millisecond

	cfg, err := parseConfig(cmd, base)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "k", cfg.AdminKey)
	assert.True(t, cfg.AuthEnabled)
	assert.Equal(t, 0, cfg.RateLimit)
	assert.Equal(t, 50*time.Millisecond, cfg.Debounce, "unchanged flag keeps the base value")
	assert.Equal(t, base.PathPrefix, cfg.PathPrefix)
}

func TestParseConfigCORSOriginsEnableCORS(t *testing.T) {
	cmd := NewCommand(&appcontext.Mock{})
	require.NoError(t, cmd.ParseFlags([]string{"--cors=false", "--cors-origins", "https://a.example,https://b.example"}))

	cfg, err := parseConfig(cmd, server.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, cfg.CORSEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestParseConfigEnvironment(t *testing.T) {
	t.Setenv("HTTP_PORT", "7070")
	t.Setenv("HTTP_HOST", "0.0.0.0")

	cmd := NewCommand(&appcontext.Mock{})
	require.NoError(t, cmd.ParseFlags([]string{"--port", "9090"}))

	cfg, err := parseConfig(cmd, server.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "0.0.0.0", cfg.Host)

	t.Setenv("HTTP_PORT", "nope")
	_, err = parseConfig(cmd, server.DefaultConfig())
	assert.Error(t, err)
}

func TestParseConfigRejectsNegativeRateLimit(t *testing.T) {
	cmd := NewCommand(&appcontext.Mock{})
	require.NoError(t, cmd.ParseFlags([]string{"--rate-limit", "-1"}))
	_, err := parseConfig(cmd, server.DefaultConfig())
	assert.Error(t, err)
}

// lockedBuffer is written by the listener goroutine and read by the test.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServeShutsDownOnCancel(t *testing.T) {
	client, err := shelf.New(shelf.WithLogger(logging.NewNopLogger()))
	require.NoError(t, err)
	defer client.Close()

	logger := logging.NewTestLogger(t)
	cmd := NewCommand(&appcontext.Mock{ClientValue: client, Log: logger.Logger})
	out := &lockedBuffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--host", "127.0.0.1", "--port", "0"})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "listening on")
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
	assert.Contains(t, out.String(), "stopped gracefully")
	logger.AssertContains(t, "Server stopped gracefully")
}

func TestServeRequiresAdminKeyWithAuth(t *testing.T) {
	client, err := shelf.New(shelf.WithLogger(logging.NewNopLogger()))
	require.NoError(t, err)
	defer client.Close()

	cmd := NewCommand(&appcontext.Mock{ClientValue: client})
	cmd.SetArgs([]string{"--auth"})
	err = cmd.ExecuteContext(context.Background())
	assert.Error(t, err)
}
