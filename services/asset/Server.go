package asset

import (
	"context"
	"net/http"

	"github.com/bitcoin-sv/minichain/errors"
	"github.com/bitcoin-sv/minichain/services/asset/httpimpl"
	"github.com/bitcoin-sv/minichain/services/blockchain"
	"github.com/bitcoin-sv/minichain/settings"
	"github.com/bitcoin-sv/minichain/ulogger"
	"github.com/bitcoin-sv/minichain/util/health"
	"golang.org/x/sync/errgroup"
)

// Server exposes the chain manager over HTTP.
type Server struct {
	logger           ulogger.Logger
	settings         *settings.Settings
	httpAddr         string
	httpServer       *httpimpl.HTTP
	blockchainClient blockchain.ClientI
}

func NewServer(logger ulogger.Logger, tSettings *settings.Settings, blockchainClient blockchain.ClientI) *Server {
	return &Server{
		logger:           logger,
		settings:         tSettings,
		blockchainClient: blockchainClient,
	}
}

func (v *Server) Health(ctx context.Context, checkLiveness bool) (int, string, error) {
	if checkLiveness {
		return http.StatusOK, "OK", nil
	}

	checks := []health.Check{
		{Name: "BlockchainClient", Check: v.blockchainClient.Health},
		{Name: "FSM", Check: blockchain.CheckFSM(v.blockchainClient)},
	}

	return health.CheckAll(ctx, checkLiveness, checks)
}

func (v *Server) Init(ctx context.Context) (err error) {
	v.httpAddr = v.settings.Asset.HTTPListenAddress
	if v.httpAddr == "" {
		return errors.NewConfigurationError("no asset_httpListenAddress setting found")
	}

	v.httpServer, err = httpimpl.New(v.logger, v.settings, v.blockchainClient)
	if err != nil {
		return errors.NewServiceError("error creating http server", err)
	}

	if err = v.httpServer.Init(ctx); err != nil {
		return errors.NewServiceError("error initializing http server", err)
	}

	return nil
}

func (v *Server) Start(ctx context.Context, readyCh chan<- struct{}) error {
	if v.httpServer == nil {
		return errors.NewServiceNotStartedError("[Asset] Init must be called before Start")
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := v.httpServer.Start(ctx, v.httpAddr)
		if err != nil {
			v.logger.Errorf("[Asset] error in http server: %v", err)
		}

		return err
	})

	close(readyCh)

	if err := g.Wait(); err != nil {
		return errors.NewServiceError("the main server has ended with error", err)
	}

	return nil
}

func (v *Server) Stop(ctx context.Context) error {
	if v.httpServer != nil {
		v.logger.Infof("[Asset] Stopping http server")

		if err := v.httpServer.Stop(ctx); err != nil {
			v.logger.Errorf("[Asset] error stopping http server: %v", err)
		}
	}

	return nil
}
