// Package httpimpl serves the chain manager over a JSON REST API.
package httpimpl

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bitcoin-sv/minichain/errors"
	"github.com/bitcoin-sv/minichain/services/blockchain"
	"github.com/bitcoin-sv/minichain/settings"
	"github.com/bitcoin-sv/minichain/ulogger"
	"github.com/bitcoin-sv/minichain/util/servicemanager"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/ordishs/gocore"
	"golang.org/x/time/rate"
)

var AssetStat = gocore.NewStat("Asset")

// HTTP handles the ledger API endpoints using the Echo framework.
type HTTP struct {
	logger           ulogger.Logger
	settings         *settings.Settings
	blockchainClient blockchain.ClientI
	e                *echo.Echo
	startTime        time.Time
}

// New creates the echo server with all routes and middleware.
//
// API Endpoints:
//
//	Health and Status:
//	- GET /alive: Service liveness check
//	- GET /health: Service health check with dependency status
//
//	Chain:
//	- GET /api/v1/chain: Canonical chain from genesis to the best block
//	- GET /api/v1/bestblock: Best block
//	- GET /api/v1/block/{hash}: Block by hash, canonical or on a fork
//	- GET /api/v1/forks: Blocks of every fork from the fork point to the fork tip
//	- GET /api/v1/chainwork: Cumulative work of the canonical chain
//	- GET /api/v1/valid: Full revalidation of the canonical chain
//	- GET /api/v1/fsm/state: Current state of the chain manager
//	- POST /api/v1/block: Submit a mined block
//
//	Transactions and balances:
//	- GET /api/v1/pending: Pending pool in arrival order
//	- GET /api/v1/balance/{address}: Confirmed balance of an address
//	- GET /api/v1/utxos/{address}: Confirmed outputs of an address
//	- POST /api/v1/tx: Submit a transaction to the pending pool
//	- POST /api/v1/mine: Mine the pending pool into a block
func New(logger ulogger.Logger, tSettings *settings.Settings, blockchainClient blockchain.ClientI) (*HTTP, error) {
	initPrometheusMetrics()

	if blockchainClient == nil {
		return nil, errors.NewConfigurationError("[Asset] blockchain client is required")
	}

	e := echo.New()
	e.Debug = tSettings.Asset.EchoDebug
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("4M"))
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.POST},
	}))

	e.Use(middleware.Gzip())

	if tSettings.Asset.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(tSettings.Asset.RateLimit))))
	}

	if e.Debug {
		e.Use(customLoggerMiddleware(logger))
	}

	h := &HTTP{
		logger:           logger,
		settings:         tSettings,
		blockchainClient: blockchainClient,
		e:                e,
		startTime:        time.Now(),
	}

	e.GET("/alive", func(c echo.Context) error {
		return c.String(http.StatusOK, fmt.Sprintf("Asset service is alive. Uptime: %s\n", time.Since(h.startTime)))
	})

	e.GET("/health", func(c echo.Context) error {
		logger.Debugf("[Asset_http] Health check")

		status, details, err := blockchainClient.Health(c.Request().Context(), false)
		if err != nil && status == http.StatusOK {
			status = http.StatusInternalServerError
		}

		return c.Blob(status, echo.MIMEApplicationJSON, []byte(details))
	})

	apiGroup := e.Group(tSettings.Asset.APIPrefix)

	apiGroup.GET("/chain", h.GetChain)
	apiGroup.GET("/bestblock", h.GetBestBlock)
	apiGroup.GET("/block/:hash", h.GetBlock)
	apiGroup.GET("/forks", h.GetForks)
	apiGroup.GET("/chainwork", h.GetChainWork)
	apiGroup.GET("/valid", h.GetChainValid)
	apiGroup.GET("/fsm/state", h.GetFSMState)
	apiGroup.POST("/block", h.SubmitBlock)

	apiGroup.GET("/pending", h.GetPending)
	apiGroup.GET("/balance/:address", h.GetBalance)
	apiGroup.GET("/utxos/:address", h.GetUtxos)
	apiGroup.POST("/tx", h.SubmitTransaction)
	apiGroup.POST("/mine", h.Mine)

	if tSettings.Asset.StatsPrefix != "" {
		e.GET(tSettings.Asset.StatsPrefix+"stats", AdaptStdHandler(gocore.HandleStats))
		e.GET(tSettings.Asset.StatsPrefix+"reset", AdaptStdHandler(gocore.ResetStats))
	}

	return h, nil
}

func AdaptStdHandler(handler func(w http.ResponseWriter, r *http.Request)) echo.HandlerFunc {
	return func(c echo.Context) error {
		handler(c.Response().Writer, c.Request())
		return nil
	}
}

func (h *HTTP) Init(_ context.Context) error {
	return nil
}

// Start serves on addr until ctx is done.
func (h *HTTP) Start(ctx context.Context, addr string) error {
	h.logger.Infof("[Asset] HTTP service listening on %s", addr)

	go func() {
		<-ctx.Done()

		h.logger.Infof("[Asset] HTTP (impl) service shutting down")

		if err := h.e.Shutdown(context.Background()); err != nil {
			h.logger.Errorf("[Asset] HTTP (impl) service shutdown error: %s", err)
		}
	}()

	servicemanager.AddListenerInfo(fmt.Sprintf("Asset HTTP listening on %s", addr))

	err := h.e.Start(addr)
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (h *HTTP) Stop(ctx context.Context) error {
	return h.e.Shutdown(ctx)
}

// ServeHTTP lets the API be mounted on another server or driven from tests.
func (h *HTTP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.e.ServeHTTP(w, r)
}

// Middleware to log HTTP requests using the custom logger
func customLoggerMiddleware(logger ulogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Infof("http request: ID=%s, Method=%s, URI=%s, RemoteAddr=%s Status=%d, Duration=%v, err=%v",
				c.Response().Header().Get(echo.HeaderXRequestID), c.Request().Method, c.Request().RequestURI,
				c.Request().RemoteAddr, c.Response().Status, time.Since(start), err)

			return err
		}
	}
}
