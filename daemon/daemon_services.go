package daemon

import (
	"context"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof on the default mux
	"sync"
	"time"

	"github.com/bitcoin-sv/minichain/errors"
	"github.com/bitcoin-sv/minichain/services/asset"
	"github.com/bitcoin-sv/minichain/services/blockchain"
	"github.com/bitcoin-sv/minichain/services/miner"
	"github.com/bitcoin-sv/minichain/settings"
	"github.com/bitcoin-sv/minichain/ulogger"
	"github.com/bitcoin-sv/minichain/util/servicemanager"
	"github.com/felixge/fgprof"
	"github.com/ordishs/gocore"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	serviceHelp             = "help"
	serviceBlockchainFormal = "Blockchain"
	serviceMinerFormal      = "Miner"
	serviceAssetFormal      = "Asset"

	loggerBlockchain = "bchn"
	loggerMiner      = "minr"
	loggerAsset      = "asset"
)

type serviceStarter struct {
	shouldStart bool
	startFunc   func() error
}

// startServices starts the services based on the command line arguments and the config file.
// The miner and the asset API run against the in-process blockchain service.
func (d *Daemon) startServices(ctx context.Context, logger ulogger.Logger, tSettings *settings.Settings,
	sm *servicemanager.ServiceManager, args []string, readyCh chan<- struct{}) error {
	var closeOnce sync.Once

	createLogger := d.loggerFactory

	help := d.shouldStart(serviceHelp, args)
	startBlockchain := d.shouldStart(serviceBlockchainFormal, args)
	startMiner := d.shouldStart(serviceMinerFormal, args)
	startAsset := d.shouldStart(serviceAssetFormal, args)

	d.appCount += len(d.externalServices)

	if help || d.appCount == 0 {
		d.appCount = 0

		printUsage()

		return nil
	}

	if (startMiner || startAsset) && !startBlockchain {
		return errors.NewConfigurationError("the miner and asset services require the blockchain service")
	}

	startProfiler(logger, tSettings)

	prometheusEndpoint := tSettings.PrometheusEndpoint
	if prometheusEndpoint != "" && !metricsRegistered.Load() {
		metricsRegistered.Store(true)
		logger.Infof("Starting prometheus endpoint on %s", prometheusEndpoint)
		http.Handle(prometheusEndpoint, promhttp.Handler())
	}

	var blockchainService *blockchain.Blockchain

	starters := []serviceStarter{
		{startBlockchain, func() (err error) {
			blockchainService, err = startBlockchainService(ctx, tSettings, sm, createLogger)
			return err
		}},
		{startMiner, func() error { return startMinerService(blockchainService, tSettings, sm, createLogger) }},
		{startAsset, func() error { return startAssetService(blockchainService, tSettings, sm, createLogger) }},
	}

	for _, s := range starters {
		if s.shouldStart {
			if err := s.startFunc(); err != nil {
				return err
			}
		}
	}

	for _, exService := range d.externalServices {
		service, err := exService.InitFunc()
		if err != nil {
			return err
		}

		if err = sm.AddService(exService.Name, service); err != nil {
			return err
		}
	}

	if readyCh != nil {
		sm.WaitForServiceToBeReady()
		closeOnce.Do(func() { close(readyCh) })
	}

	return nil
}

// startProfiler serves pprof and the gocore stats on the default mux when profilerAddr is set.
func startProfiler(logger ulogger.Logger, tSettings *settings.Settings) {
	profilerAddr := tSettings.ProfilerAddr
	if profilerAddr == "" || pprofRegistered.Load() {
		return
	}

	pprofRegistered.Store(true)

	go func() {
		logger.Infof("Profiler listening on http://%s/debug/pprof", profilerAddr)

		gocore.RegisterStatsHandlers()
		http.DefaultServeMux.Handle("/debug/fgprof", fgprof.Handler())

		logger.Infof("StatsServer listening on http://%s%s", profilerAddr, tSettings.Asset.StatsPrefix)

		server := &http.Server{
			Addr:              profilerAddr,
			ReadHeaderTimeout: 20 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		logger.Errorf("profiler stopped: %v", server.ListenAndServe())
	}()
}

func startBlockchainService(ctx context.Context, tSettings *settings.Settings,
	sm *servicemanager.ServiceManager, createLogger func(string) ulogger.Logger) (*blockchain.Blockchain, error) {
	blockchainService, err := blockchain.New(ctx, createLogger(loggerBlockchain), tSettings)
	if err != nil {
		return nil, err
	}

	return blockchainService, sm.AddService(serviceBlockchainFormal, blockchainService)
}

func startMinerService(blockchainClient blockchain.ClientI, tSettings *settings.Settings,
	sm *servicemanager.ServiceManager, createLogger func(string) ulogger.Logger) error {
	return sm.AddService(serviceMinerFormal, miner.New(createLogger(loggerMiner), tSettings, blockchainClient))
}

func startAssetService(blockchainClient blockchain.ClientI, tSettings *settings.Settings,
	sm *servicemanager.ServiceManager, createLogger func(string) ulogger.Logger) error {
	return sm.AddService(serviceAssetFormal, asset.NewServer(createLogger(loggerAsset), tSettings, blockchainClient))
}
