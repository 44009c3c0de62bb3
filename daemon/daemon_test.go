package daemon

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/bitcoin-sv/minichain/settings"
	"github.com/bitcoin-sv/minichain/ulogger"
	"github.com/ordishs/gocore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gocore.Config().Set("network", "regtest")
	gocore.Config().Set("profilerAddr", "")
	gocore.Config().Set("prometheusEndpoint", "")
}

func testLoggerFactory(string) ulogger.Logger {
	return ulogger.TestLogger{}
}

func testSettings() *settings.Settings {
	tSettings := settings.NewSettings()
	tSettings.HealthCheckPort = 0
	tSettings.PrometheusEndpoint = ""
	tSettings.ProfilerAddr = ""
	tSettings.Asset.HTTPListenAddress = "localhost:0"
	tSettings.Miner.Interval = time.Hour

	return tSettings
}

func TestNew(t *testing.T) {
	d := New()
	require.NotNil(t, d)
	require.NotNil(t, d.doneCh)
	require.NotNil(t, d.stopCh)
	require.NotNil(t, d.ServiceManager)
}

func TestNew_WithOptions(t *testing.T) {
	t.Run("WithLoggerFactory", func(t *testing.T) {
		var loggerFactoryUsed bool

		d := New(WithLoggerFactory(func(serviceName string) ulogger.Logger {
			loggerFactoryUsed = true
			return ulogger.New(serviceName, ulogger.WithWriter(io.Discard))
		}))
		require.NotNil(t, d)

		assert.True(t, loggerFactoryUsed, "service manager logger should come from the factory")
	})

	t.Run("WithContext", func(t *testing.T) {
		customCtx, cancel := context.WithCancel(context.Background())

		d := New(WithContext(customCtx), WithLoggerFactory(testLoggerFactory))
		assert.Equal(t, customCtx, d.Ctx)

		cancel()

		select {
		case <-d.ServiceManager.Ctx.Done():
		case <-time.After(time.Second):
			t.Fatal("service manager context should follow the daemon context")
		}
	})
}

func TestShouldStart(t *testing.T) {
	gocore.Config().Set("startConfigApp", "true")

	tests := []struct {
		name     string
		app      string
		args     []string
		expected bool
	}{
		{"empty args", "test_app", []string{}, false},
		{"app flag present", "test_app", []string{"-test_app=1"}, true},
		{"app flag is lower cased", "TestApp", []string{"-testapp=1"}, true},
		{"app flag present but disabled", "test_app", []string{"-test_app=0"}, false},
		{"different app flag", "test_app", []string{"-other_app=1"}, false},
		{"enabled in config", "ConfigApp", []string{}, true},
		{"config overridden by flag", "ConfigApp", []string{"-configapp=0"}, false},
		{"config overridden by all=0", "ConfigApp", []string{"-all=0"}, false},
		{"flag wins over all=0", "test_app", []string{"-all=0", "-test_app=1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(WithLoggerFactory(testLoggerFactory))

			assert.Equal(t, tt.expected, d.shouldStart(tt.app, tt.args))

			if tt.expected {
				assert.Equal(t, 1, d.appCount)
			} else {
				assert.Equal(t, 0, d.appCount)
			}
		})
	}
}

func TestStart_NoServices(t *testing.T) {
	d := New(WithLoggerFactory(testLoggerFactory))

	done := make(chan struct{})

	go func() {
		d.Start(ulogger.TestLogger{}, []string{"-all=0"}, testSettings())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start should return when no service is selected")
	}

	require.NoError(t, d.Stop())
}

func TestStart_MinerWithoutBlockchain(t *testing.T) {
	d := New(WithLoggerFactory(testLoggerFactory))

	done := make(chan struct{})

	go func() {
		d.Start(ulogger.TestLogger{}, []string{"-all=0", "-miner=1"}, testSettings())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start should return when the services cannot be wired")
	}

	require.NoError(t, d.Stop(time.Second))
}

func TestStart_AllServices(t *testing.T) {
	d := New(WithLoggerFactory(testLoggerFactory))
	readyCh := make(chan struct{})

	go d.Start(ulogger.TestLogger{}, []string{"-all=0", "-blockchain=1", "-miner=1", "-asset=1"}, testSettings(), readyCh)

	select {
	case <-readyCh:
	case <-time.After(10 * time.Second):
		t.Fatal("services did not become ready")
	}

	addr := d.HealthAddr()
	require.NotEmpty(t, addr)

	t.Run("liveness", func(t *testing.T) {
		resp, err := http.Get("http://" + addr + "/health/liveness")
		require.NoError(t, err)

		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("readiness", func(t *testing.T) {
		resp, err := http.Get("http://" + addr + "/health/readiness")
		require.NoError(t, err)

		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), serviceBlockchainFormal)
		assert.Contains(t, string(body), serviceMinerFormal)
		assert.Contains(t, string(body), serviceAssetFormal)
	})

	require.NoError(t, d.Stop(10*time.Second))
}
