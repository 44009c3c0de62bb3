package httpimpl

import (
	"net/http"

	"github.com/bitcoin-sv/minichain/errors"
	"github.com/bitcoin-sv/minichain/model"
	"github.com/labstack/echo/v4"
	"github.com/ordishs/gocore"
)

type submitTransactionResponse struct {
	TxID string `json:"txid"`
}

type submitBlockResponse struct {
	Hash  string `json:"hash"`
	Index uint32 `json:"index"`
}

type mineRequest struct {
	MinerAddress string `json:"minerAddress"`
}

// SubmitTransaction adds the JSON encoded transaction in the body to the pending pool.
//
// Error Responses:
//   - 400 Bad Request: malformed transaction
//   - 409 Conflict: already pending
//   - 422 Unprocessable Entity: rejected, see the code for the reason
func (h *HTTP) SubmitTransaction(c echo.Context) error {
	start := gocore.CurrentTime()

	tx := &model.Transaction{}

	err := decodeBody(c, tx)
	if err == nil {
		err = h.blockchainClient.SubmitTransaction(c.Request().Context(), tx)
	}

	record(prometheusAssetHTTPSubmitTransaction, "SubmitTransaction", start, err)

	if err != nil {
		return sendErrorFromCode(c, err)
	}

	h.logger.Debugf("[Asset_http] accepted transaction %s", tx.TxID())

	return c.JSON(http.StatusOK, submitTransactionResponse{TxID: tx.TxID().String()})
}

// SubmitBlock offers the JSON encoded block in the body to the chain manager. The block is
// accepted whether it extends the best chain or a fork.
func (h *HTTP) SubmitBlock(c echo.Context) error {
	start := gocore.CurrentTime()

	block := &model.Block{}

	err := decodeBody(c, block)
	if err == nil {
		err = h.blockchainClient.AddBlock(c.Request().Context(), block)
	}

	record(prometheusAssetHTTPSubmitBlock, "SubmitBlock", start, err)

	if err != nil {
		return sendErrorFromCode(c, err)
	}

	return c.JSON(http.StatusOK, submitBlockResponse{Hash: block.Hash().String(), Index: block.Index})
}

// Mine mines the pending pool into a block paying the requested address, or the configured miner
// address when none is given. It answers 204 No Content when nothing is pending.
func (h *HTTP) Mine(c echo.Context) error {
	start := gocore.CurrentTime()

	req := &mineRequest{}

	if c.Request().ContentLength != 0 {
		if err := decodeBody(c, req); err != nil {
			record(prometheusAssetHTTPMine, "Mine", start, err)
			return sendErrorFromCode(c, err)
		}
	}

	if req.MinerAddress == "" {
		req.MinerAddress = h.settings.Miner.Address
	}

	if req.MinerAddress == "" {
		err := errors.NewInvalidArgumentError("minerAddress is required")
		record(prometheusAssetHTTPMine, "Mine", start, err)

		return sendErrorFromCode(c, err)
	}

	block, err := h.blockchainClient.MineBlock(c.Request().Context(), req.MinerAddress)
	record(prometheusAssetHTTPMine, "Mine", start, err)

	if err != nil {
		return sendErrorFromCode(c, err)
	}

	if block == nil {
		return c.NoContent(http.StatusNoContent)
	}

	return c.JSON(http.StatusOK, block)
}
