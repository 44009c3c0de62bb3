package httpimpl

import (
	"net/http"

	"github.com/bitcoin-sv/minichain/errors"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/labstack/echo/v4"
	"github.com/ordishs/gocore"
)

// GetChain returns the canonical chain from genesis to the best block.
func (h *HTTP) GetChain(c echo.Context) error {
	start := gocore.CurrentTime()

	blocks, err := h.blockchainClient.GetCanonicalChain(c.Request().Context())
	record(prometheusAssetHTTPGetChain, "GetChain", start, err)

	if err != nil {
		return sendErrorFromCode(c, err)
	}

	return c.JSON(http.StatusOK, blocks)
}

func (h *HTTP) GetBestBlock(c echo.Context) error {
	start := gocore.CurrentTime()

	block, err := h.blockchainClient.GetBestBlock(c.Request().Context())
	record(prometheusAssetHTTPGetBlock, "GetBestBlock", start, err)

	if err != nil {
		return sendErrorFromCode(c, err)
	}

	return c.JSON(http.StatusOK, block)
}

// GetBlock returns the block with the given hash, whether it is canonical or on a fork.
//
// Error Responses:
//   - 400 Bad Request: malformed hash
//   - 404 Not Found: unknown block
func (h *HTTP) GetBlock(c echo.Context) error {
	start := gocore.CurrentTime()

	hash, err := chainhash.NewHashFromStr(c.Param("hash"))
	if err != nil {
		err = errors.NewInvalidArgumentError("invalid block hash %q", c.Param("hash"), err)
		record(prometheusAssetHTTPGetBlock, "GetBlock", start, err)

		return sendErrorFromCode(c, err)
	}

	block, err := h.blockchainClient.GetBlock(c.Request().Context(), hash)
	record(prometheusAssetHTTPGetBlock, "GetBlock", start, err)

	if err != nil {
		return sendErrorFromCode(c, err)
	}

	return c.JSON(http.StatusOK, block)
}

// GetForks returns one list per fork tip, running from the first block after the fork point to
// the tip.
func (h *HTTP) GetForks(c echo.Context) error {
	start := gocore.CurrentTime()

	forks, err := h.blockchainClient.GetForks(c.Request().Context())
	record(prometheusAssetHTTPGetChain, "GetForks", start, err)

	if err != nil {
		return sendErrorFromCode(c, err)
	}

	return c.JSON(http.StatusOK, forks)
}

func (h *HTTP) GetChainWork(c echo.Context) error {
	start := gocore.CurrentTime()

	chainWork, err := h.blockchainClient.GetChainWork(c.Request().Context())
	record(prometheusAssetHTTPGetChain, "GetChainWork", start, err)

	if err != nil {
		return sendErrorFromCode(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"chainWork": chainWork.String()})
}

// GetChainValid revalidates the whole canonical chain.
func (h *HTTP) GetChainValid(c echo.Context) error {
	start := gocore.CurrentTime()

	valid, err := h.blockchainClient.IsChainValid(c.Request().Context())
	record(prometheusAssetHTTPGetChain, "GetChainValid", start, err)

	if err != nil {
		return sendErrorFromCode(c, err)
	}

	return c.JSON(http.StatusOK, map[string]bool{"valid": valid})
}

func (h *HTTP) GetFSMState(c echo.Context) error {
	state, err := h.blockchainClient.GetFSMCurrentState(c.Request().Context())
	if err != nil {
		return sendErrorFromCode(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"state": state.String()})
}
