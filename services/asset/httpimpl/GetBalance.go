package httpimpl

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/ordishs/gocore"
)

type balanceResponse struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

type utxoResponse struct {
	TxID      string `json:"txid"`
	Index     uint32 `json:"index"`
	Value     uint64 `json:"value"`
	Recipient string `json:"recipient"`
}

// GetBalance returns the confirmed balance of an address. Pending transactions are not counted.
//
// Example Response:
//
//	{
//	  "address": "alice",
//	  "balance": 50
//	}
func (h *HTTP) GetBalance(c echo.Context) error {
	start := gocore.CurrentTime()
	address := c.Param("address")

	balance, err := h.blockchainClient.GetBalance(c.Request().Context(), address)
	record(prometheusAssetHTTPGetUtxos, "GetBalance", start, err)

	if err != nil {
		return sendErrorFromCode(c, err)
	}

	return c.JSON(http.StatusOK, balanceResponse{Address: address, Balance: balance})
}

// GetUtxos returns the confirmed outputs owned by an address.
func (h *HTTP) GetUtxos(c echo.Context) error {
	start := gocore.CurrentTime()

	utxos, err := h.blockchainClient.GetUtxos(c.Request().Context(), c.Param("address"))
	record(prometheusAssetHTTPGetUtxos, "GetUtxos", start, err)

	if err != nil {
		return sendErrorFromCode(c, err)
	}

	resp := make([]utxoResponse, 0, len(utxos))

	for _, u := range utxos {
		resp = append(resp, utxoResponse{
			TxID:      u.TxID.String(),
			Index:     u.Index,
			Value:     u.Output.Value,
			Recipient: u.Output.Recipient,
		})
	}

	return c.JSON(http.StatusOK, resp)
}

// GetPending returns the pending pool in arrival order.
func (h *HTTP) GetPending(c echo.Context) error {
	start := gocore.CurrentTime()

	txs, err := h.blockchainClient.GetPendingTransactions(c.Request().Context())
	record(prometheusAssetHTTPGetUtxos, "GetPending", start, err)

	if err != nil {
		return sendErrorFromCode(c, err)
	}

	return c.JSON(http.StatusOK, txs)
}
