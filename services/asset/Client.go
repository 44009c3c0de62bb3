package asset

import (
	"context"
	"net/http"
	"time"

	"github.com/bitcoin-sv/minichain/errors"
	"github.com/bitcoin-sv/minichain/model"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/go-resty/resty/v2"
)

// Client talks to the asset HTTP API. Every error returned for a failed call is an *errors.Error
// carrying the application code sent by the server.
type Client struct {
	client *resty.Client
}

// UTXO is an unspent output as returned by the utxos endpoint.
type UTXO struct {
	TxID      string `json:"txid" csv:"txid"`
	Index     uint32 `json:"index" csv:"index"`
	Value     uint64 `json:"value" csv:"value"`
	Recipient string `json:"recipient" csv:"recipient"`
}

type apiError struct {
	Status int32  `json:"status"`
	Code   int32  `json:"code"`
	Err    string `json:"error"`
}

// NewClient creates a client for the API served under baseURL, e.g. http://localhost:8090/api/v1.
func NewClient(baseURL string, timeout time.Duration) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{client: client}
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) (*resty.Response, error) {
	apiErr := &apiError{}

	req := c.client.R().SetContext(ctx).SetError(apiErr)
	if result != nil {
		req.SetResult(result)
	}

	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewContextCanceledError("%s %s", method, path, err)
		}

		return nil, errors.NewServiceUnavailableError("%s %s", method, path, err)
	}

	if resp.IsError() {
		if apiErr.Err == "" {
			return nil, errors.NewServiceError("%s %s: %s", method, path, resp.Status())
		}

		return nil, errors.New(errors.ERR(apiErr.Code), apiErr.Err)
	}

	return resp, nil
}

func (c *Client) GetBalance(ctx context.Context, address string) (uint64, error) {
	var result struct {
		Balance uint64 `json:"balance"`
	}

	if _, err := c.do(ctx, http.MethodGet, "/balance/"+address, nil, &result); err != nil {
		return 0, err
	}

	return result.Balance, nil
}

func (c *Client) GetUtxos(ctx context.Context, address string) ([]UTXO, error) {
	var utxos []UTXO

	if _, err := c.do(ctx, http.MethodGet, "/utxos/"+address, nil, &utxos); err != nil {
		return nil, err
	}

	return utxos, nil
}

// SubmitTransaction submits tx to the pending pool and returns its id as computed by the server.
func (c *Client) SubmitTransaction(ctx context.Context, tx *model.Transaction) (*chainhash.Hash, error) {
	var result struct {
		TxID string `json:"txid"`
	}

	if _, err := c.do(ctx, http.MethodPost, "/tx", tx, &result); err != nil {
		return nil, err
	}

	return chainhash.NewHashFromStr(result.TxID)
}

func (c *Client) SubmitBlock(ctx context.Context, block *model.Block) error {
	_, err := c.do(ctx, http.MethodPost, "/block", block, nil)

	return err
}

// Mine asks the node to mine its pending pool. The block is nil when nothing was pending. An empty
// address lets the node pay its configured miner address.
func (c *Client) Mine(ctx context.Context, minerAddress string) (*model.Block, error) {
	block := &model.Block{}

	resp, err := c.do(ctx, http.MethodPost, "/mine", map[string]string{"minerAddress": minerAddress}, block)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() == http.StatusNoContent {
		return nil, nil
	}

	return block, nil
}

func (c *Client) GetChain(ctx context.Context) ([]*model.Block, error) {
	var blocks []*model.Block

	if _, err := c.do(ctx, http.MethodGet, "/chain", nil, &blocks); err != nil {
		return nil, err
	}

	return blocks, nil
}

func (c *Client) GetBestBlock(ctx context.Context) (*model.Block, error) {
	block := &model.Block{}

	if _, err := c.do(ctx, http.MethodGet, "/bestblock", nil, block); err != nil {
		return nil, err
	}

	return block, nil
}

func (c *Client) GetBlock(ctx context.Context, hash *chainhash.Hash) (*model.Block, error) {
	block := &model.Block{}

	if _, err := c.do(ctx, http.MethodGet, "/block/"+hash.String(), nil, block); err != nil {
		return nil, err
	}

	return block, nil
}

func (c *Client) GetForks(ctx context.Context) ([][]*model.Block, error) {
	var forks [][]*model.Block

	if _, err := c.do(ctx, http.MethodGet, "/forks", nil, &forks); err != nil {
		return nil, err
	}

	return forks, nil
}

func (c *Client) GetPendingTransactions(ctx context.Context) ([]*model.Transaction, error) {
	var txs []*model.Transaction

	if _, err := c.do(ctx, http.MethodGet, "/pending", nil, &txs); err != nil {
		return nil, err
	}

	return txs, nil
}

func (c *Client) IsChainValid(ctx context.Context) (bool, error) {
	var result struct {
		Valid bool `json:"valid"`
	}

	if _, err := c.do(ctx, http.MethodGet, "/valid", nil, &result); err != nil {
		return false, err
	}

	return result.Valid, nil
}
