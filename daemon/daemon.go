package daemon

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bitcoin-sv/minichain/errors"
	"github.com/bitcoin-sv/minichain/settings"
	"github.com/bitcoin-sv/minichain/ulogger"
	"github.com/bitcoin-sv/minichain/util/servicemanager"
	"github.com/ordishs/gocore"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pprofRegistered   atomic.Bool
	metricsRegistered atomic.Bool
)

type externalService struct {
	Name     string
	InitFunc func() (servicemanager.Service, error)
}

type Daemon struct {
	Ctx           context.Context
	doneCh        chan struct{}
	closeDoneOnce sync.Once

	stopCh           chan struct{} // closed when all services have stopped
	closeStopOnce    sync.Once
	serverMu         sync.Mutex
	server           *http.Server
	healthAddr       string
	ServiceManager   *servicemanager.ServiceManager
	externalServices []*externalService
	loggerFactory    func(serviceName string) ulogger.Logger
	appCount         int
}

func New(opts ...Option) *Daemon {
	d := &Daemon{
		Ctx:              context.Background(),
		doneCh:           make(chan struct{}),
		stopCh:           make(chan struct{}),
		externalServices: make([]*externalService, 0),
		loggerFactory: func(serviceName string) ulogger.Logger {
			return ulogger.New(serviceName)
		},
	}

	for _, opt := range opts {
		opt(d)
	}

	d.ServiceManager = servicemanager.NewServiceManager(d.Ctx, d.loggerFactory("ServiceManager"))

	return d
}

// AddExternalService registers a service that is created and added to the service manager after
// the built-in services.
func (d *Daemon) AddExternalService(name string, initFunc func() (servicemanager.Service, error)) {
	d.externalServices = append(d.externalServices, &externalService{
		Name:     name,
		InitFunc: initFunc,
	})
}

// HealthAddr returns the address the health check server is listening on, or an empty string
// when it is not running.
func (d *Daemon) HealthAddr() string {
	d.serverMu.Lock()
	defer d.serverMu.Unlock()

	return d.healthAddr
}

func (d *Daemon) Stop(timeout ...time.Duration) error {
	logger := d.loggerFactory("Daemon")

	d.serverMu.Lock()
	if d.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := d.server.Shutdown(ctx); err != nil {
			logger.Warnf("Error shutting down health check server: %v", err)
		}
	}
	d.serverMu.Unlock()

	d.closeDoneOnce.Do(func() { close(d.doneCh) })

	if d.appCount == 0 {
		d.closeStopOnce.Do(func() { close(d.stopCh) })
		return nil
	}

	shutdownTimeout := 10 * time.Second
	if len(timeout) > 0 {
		shutdownTimeout = timeout[0]
	}

	select {
	case <-d.stopCh:
		return nil
	case <-time.After(shutdownTimeout):
		notReady := d.ServiceManager.ServicesNotReady()
		logger.Warnf("Timeout waiting for services to stop after %v (not ready: %v)", shutdownTimeout, notReady)

		return errors.NewProcessingError("timeout waiting for services to stop after %v", shutdownTimeout)
	}
}

// Start runs the services selected by args and the config until they stop, the service manager
// context is cancelled, or Stop is called. readyCh, when given, is closed once every service is ready.
func (d *Daemon) Start(logger ulogger.Logger, args []string, tSettings *settings.Settings, readyCh ...chan struct{}) {
	sm := d.ServiceManager

	var readyChInternal chan struct{}
	if len(readyCh) > 0 {
		readyChInternal = readyCh[0]
	}

	server, err := d.startHealthServer(logger, sm, tSettings)
	if err != nil {
		logger.Errorf("error starting health check server: %v", err)
	}

	if err = d.startServices(sm.Ctx, logger, tSettings, sm, args, readyChInternal); err != nil {
		logger.Errorf("error starting services: %v", err)
		sm.ForceShutdown()
		d.closeDoneOnce.Do(func() { close(d.doneCh) })
	}

	if d.appCount == 0 {
		if server != nil {
			_ = server.Close()
		}

		d.closeStopOnce.Do(func() { close(d.stopCh) })

		return
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- sm.Wait()
	}()

	select {
	case err = <-waitErr:
		if err != nil {
			logger.Errorf("services failed: %v", err)
		}
	case <-d.doneCh:
		logger.Infof("daemon shutdown requested")

		sm.ForceShutdown()

		logger.Infof("daemon shutdown waiting for services to finish")

		if err = <-waitErr; err != nil {
			logger.Errorf("error during service shutdown: %v", err)
		}

		logger.Infof("daemon shutdown completed")
	}

	if server != nil {
		_ = server.Close()
	}

	d.closeStopOnce.Do(func() { close(d.stopCh) })
}

// startHealthServer serves the aggregated health of the services and, when configured, the
// prometheus metrics on health_check_port.
func (d *Daemon) startHealthServer(logger ulogger.Logger, sm *servicemanager.ServiceManager, tSettings *settings.Settings) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", sm.HandleHealth)
	mux.HandleFunc("/health/readiness", sm.HandleHealth)
	mux.HandleFunc("/health/liveness", sm.HandleHealth)

	if tSettings.PrometheusEndpoint != "" {
		mux.Handle(tSettings.PrometheusEndpoint, promhttp.Handler())
	}

	port := tSettings.HealthCheckPort

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, errors.NewServiceError("health check listener on port %d", port, err)
	}

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 20 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	d.serverMu.Lock()
	d.server = server
	d.healthAddr = listener.Addr().String()
	d.serverMu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("health check server failed: %v", err)
		}
	}()

	logger.Infof("Health check endpoint listening on http://%s/health", listener.Addr())

	return server, nil
}

// shouldStart reports whether app was enabled with -app=1 on the command line, or, when it is not
// mentioned there and -all=0 was not passed, with startApp in the config.
func (d *Daemon) shouldStart(app string, args []string) bool {
	cmdArg := fmt.Sprintf("-%s=1", strings.ToLower(app))
	for _, cmd := range args {
		if cmd == cmdArg {
			d.appCount++
			return true
		}
	}

	cmdArg = fmt.Sprintf("-%s=0", strings.ToLower(app))
	for _, cmd := range args {
		if cmd == cmdArg {
			return false
		}
	}

	for _, cmd := range args {
		if cmd == "-all=0" {
			return false
		}
	}

	b := gocore.Config().GetBool(fmt.Sprintf("start%s", app))
	if b {
		d.appCount++
	}

	return b
}

func printUsage() {
	fmt.Println("usage: minichain [options]")
	fmt.Println("where options are:")
	fmt.Println("")
	fmt.Println("    -blockchain=<1|0>")
	fmt.Println("          whether to start the blockchain service")
	fmt.Println("")
	fmt.Println("    -miner=<1|0>")
	fmt.Println("          whether to start the miner")
	fmt.Println("")
	fmt.Println("    -asset=<1|0>")
	fmt.Println("          whether to start the asset HTTP API")
	fmt.Println("")
	fmt.Println("    -all=0")
	fmt.Println("          disable all services unless explicitly overridden")
	fmt.Println("")
}
