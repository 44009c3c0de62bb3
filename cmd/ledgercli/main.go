// Package main implements ledgercli, a command line client for the ledger HTTP API.
//
// Usage:
//
//	ledgercli [--url http://localhost:8090/api/v1] <command> [arguments]
//
// Commands print their result as indented JSON on stdout; utxos can also print CSV.
package main

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/bitcoin-sv/minichain/errors"
	"github.com/bitcoin-sv/minichain/model"
	"github.com/bitcoin-sv/minichain/services/asset"
	"github.com/bitcoin-sv/minichain/settings"
	"github.com/bitcoin-sv/minichain/ulogger"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/gocarina/gocsv"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var logger = ulogger.New("ledgercli")

func main() {
	// a .env file may set LEDGERCLI_URL
	_ = godotenv.Load()

	tSettings := settings.NewSettings()

	if err := newApp(tSettings.CLI.URL, tSettings.CLI.Timeout).Run(os.Args); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func newApp(defaultURL string, defaultTimeout time.Duration) *cli.App {
	var client *asset.Client

	return &cli.App{
		Name:  "ledgercli",
		Usage: "A CLI tool to query and drive a ledger node",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Usage:   "Base URL of the ledger API",
				Value:   defaultURL,
				EnvVars: []string{"LEDGERCLI_URL"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Timeout of every request",
				Value: defaultTimeout,
			},
		},
		Before: func(c *cli.Context) error {
			client = asset.NewClient(c.String("url"), c.Duration("timeout"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "balance",
				Usage:     "Confirmed balance of an address",
				ArgsUsage: "<address>",
				Action: func(c *cli.Context) error {
					address, err := requiredArg(c, "address")
					if err != nil {
						return err
					}

					balance, err := client.GetBalance(c.Context, address)
					if err != nil {
						return err
					}

					return printJSON(c.App.Writer, map[string]any{"address": address, "balance": balance})
				},
			},
			{
				Name:      "utxos",
				Usage:     "Confirmed unspent outputs of an address",
				ArgsUsage: "<address>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Usage: "Output format, json or csv",
						Value: "json",
					},
				},
				Action: func(c *cli.Context) error {
					address, err := requiredArg(c, "address")
					if err != nil {
						return err
					}

					utxos, err := client.GetUtxos(c.Context, address)
					if err != nil {
						return err
					}

					switch c.String("format") {
					case "json":
						return printJSON(c.App.Writer, utxos)
					case "csv":
						return gocsv.Marshal(&utxos, c.App.Writer)
					default:
						return errors.NewInvalidArgumentError("unknown format %q", c.String("format"))
					}
				},
			},
			{
				Name:  "send",
				Usage: "Submit a JSON encoded transaction to the pending pool",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "file",
						Usage: "File holding the transaction, - for stdin",
						Value: "-",
					},
				},
				Action: func(c *cli.Context) error {
					tx, err := readTransaction(c)
					if err != nil {
						return err
					}

					txID, err := client.SubmitTransaction(c.Context, tx)
					if err != nil {
						return err
					}

					return printJSON(c.App.Writer, map[string]string{"txid": txID.String()})
				},
			},
			{
				Name:  "mine",
				Usage: "Mine the pending pool into a block",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "address",
						Usage: "Recipient of the block reward, defaults to the node's miner address",
					},
				},
				Action: func(c *cli.Context) error {
					block, err := client.Mine(c.Context, c.String("address"))
					if err != nil {
						return err
					}

					if block == nil {
						return printJSON(c.App.Writer, map[string]string{"result": "no pending transactions"})
					}

					return printJSON(c.App.Writer, block)
				},
			},
			{
				Name:  "chain",
				Usage: "Canonical chain from genesis to the best block",
				Action: func(c *cli.Context) error {
					blocks, err := client.GetChain(c.Context)
					if err != nil {
						return err
					}

					return printJSON(c.App.Writer, blocks)
				},
			},
			{
				Name:      "block",
				Usage:     "Block by hash, canonical or on a fork",
				ArgsUsage: "<hash>",
				Action: func(c *cli.Context) error {
					arg, err := requiredArg(c, "hash")
					if err != nil {
						return err
					}

					hash, err := chainhash.NewHashFromStr(arg)
					if err != nil {
						return errors.NewInvalidArgumentError("invalid block hash %q", arg, err)
					}

					block, err := client.GetBlock(c.Context, hash)
					if err != nil {
						return err
					}

					return printJSON(c.App.Writer, block)
				},
			},
			{
				Name:  "forks",
				Usage: "Blocks of every fork",
				Action: func(c *cli.Context) error {
					forks, err := client.GetForks(c.Context)
					if err != nil {
						return err
					}

					return printJSON(c.App.Writer, forks)
				},
			},
			{
				Name:  "pending",
				Usage: "Pending transactions in arrival order",
				Action: func(c *cli.Context) error {
					txs, err := client.GetPendingTransactions(c.Context)
					if err != nil {
						return err
					}

					return printJSON(c.App.Writer, txs)
				},
			},
			{
				Name:  "validate",
				Usage: "Revalidate the whole canonical chain",
				Action: func(c *cli.Context) error {
					valid, err := client.IsChainValid(c.Context)
					if err != nil {
						return err
					}

					if err = printJSON(c.App.Writer, map[string]bool{"valid": valid}); err != nil {
						return err
					}

					if !valid {
						return errors.NewProcessingError("chain is invalid")
					}

					return nil
				},
			},
		},
	}
}

func requiredArg(c *cli.Context, name string) (string, error) {
	if c.NArg() != 1 {
		return "", errors.NewInvalidArgumentError("expected exactly one argument <%s>", name)
	}

	return c.Args().First(), nil
}

func readTransaction(c *cli.Context) (*model.Transaction, error) {
	var (
		r   io.Reader
		err error
	)

	if file := c.String("file"); file == "-" {
		r = c.App.Reader
	} else {
		f, openErr := os.Open(file)
		if openErr != nil {
			return nil, errors.NewInvalidArgumentError("cannot open %s", file, openErr)
		}

		defer f.Close()

		r = f
	}

	tx := &model.Transaction{}
	if err = json.NewDecoder(r).Decode(tx); err != nil {
		return nil, errors.NewInvalidArgumentError("invalid transaction", err)
	}

	return tx, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
