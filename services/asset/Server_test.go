package asset

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bitcoin-sv/minichain/chaincfg"
	"github.com/bitcoin-sv/minichain/errors"
	"github.com/bitcoin-sv/minichain/services/blockchain"
	"github.com/bitcoin-sv/minichain/settings"
	"github.com/bitcoin-sv/minichain/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testSettings(addr string) *settings.Settings {
	params := chaincfg.RegressionNetParams

	return &settings.Settings{
		ChainCfgParams: &params,
		Asset: settings.AssetSettings{
			HTTPListenAddress: addr,
			APIPrefix:         "/api/v1",
		},
	}
}

func TestServer_Init(t *testing.T) {
	t.Run("missing listen address", func(t *testing.T) {
		s := NewServer(ulogger.TestLogger{}, testSettings(""), &blockchain.Mock{})

		err := s.Init(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrConfiguration))
	})

	t.Run("start before init", func(t *testing.T) {
		s := NewServer(ulogger.TestLogger{}, testSettings("127.0.0.1:0"), &blockchain.Mock{})

		err := s.Start(context.Background(), make(chan struct{}))
		require.Error(t, err)
	})
}

func TestServer_Health(t *testing.T) {
	client := &blockchain.Mock{}
	client.On("Health", mock.Anything, false).Return(http.StatusOK, "OK", nil)
	client.On("GetFSMCurrentState", mock.Anything).Return(blockchain.FSMStateSTOPPED, nil)

	s := NewServer(ulogger.TestLogger{}, testSettings("127.0.0.1:0"), client)

	status, _, err := s.Health(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	status, msg, err := s.Health(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, msg, "STOPPED")
}

func TestServer_StartStop(t *testing.T) {
	s := NewServer(ulogger.TestLogger{}, testSettings("127.0.0.1:0"), &blockchain.Mock{})
	require.NoError(t, s.Init(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	readyCh := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- s.Start(ctx, readyCh)
	}()

	select {
	case <-readyCh:
	case <-time.After(time.Second):
		t.Fatal("server did not become ready")
	}

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	require.NoError(t, s.Stop(context.Background()))
}
