package model

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"math"
	"time"

	"github.com/bitcoin-sv/minichain/errors"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
)

// TxOutput is a spendable amount locked to an opaque recipient address.
type TxOutput struct {
	Value     uint64
	Recipient string
}

// TxInput references an output of an earlier transaction. PublicKey and Signature form the
// authorization token; they are hashed into the transaction id but never verified unless an
// Authorizer other than AlwaysAuthorize is configured.
type TxInput struct {
	PreviousTxID chainhash.Hash
	OutputIndex  uint32
	PublicKey    []byte
	Signature    []byte
}

// Transaction moves value from inputs to outputs. The id is derived from the content when the
// transaction is constructed or decoded and is never recomputed afterwards. Inputs and Outputs
// must not hold nil entries; CheckEntries reports them and validation rejects such transactions.
type Transaction struct {
	Inputs    []*TxInput
	Outputs   []*TxOutput
	Timestamp int64 // unix nanoseconds

	id chainhash.Hash
}

// NewTransaction creates a transaction stamped with the current time.
func NewTransaction(inputs []*TxInput, outputs []*TxOutput) *Transaction {
	return NewTransactionWithTimestamp(inputs, outputs, time.Now().UnixNano())
}

// NewTransactionWithTimestamp creates a transaction with an explicit timestamp. The same inputs,
// outputs and timestamp always produce the same id.
func NewTransactionWithTimestamp(inputs []*TxInput, outputs []*TxOutput, timestamp int64) *Transaction {
	tx := &Transaction{
		Inputs:    inputs,
		Outputs:   outputs,
		Timestamp: timestamp,
	}

	tx.id = tx.CalculateTxID()

	return tx
}

// NewCoinbaseTransaction creates a zero-input reward transaction paying reward to recipient.
func NewCoinbaseTransaction(recipient string, reward uint64) *Transaction {
	return NewTransaction(nil, []*TxOutput{{Value: reward, Recipient: recipient}})
}

// TxID returns the id computed at construction.
func (tx *Transaction) TxID() *chainhash.Hash {
	id := tx.id
	return &id
}

func (tx *Transaction) String() string {
	return tx.id.String()
}

// IsCoinbase reports whether the transaction has no inputs.
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Inputs) == 0
}

// CheckEntries returns a TX_INVALID error when the transaction or one of its inputs or outputs
// is nil.
func (tx *Transaction) CheckEntries() error {
	if tx == nil {
		return errors.NewTxInvalidError("transaction is nil")
	}

	for i, input := range tx.Inputs {
		if input == nil {
			return errors.NewTxInvalidError("transaction %s input %d is nil", tx, i)
		}
	}

	for i, output := range tx.Outputs {
		if output == nil {
			return errors.NewTxInvalidError("transaction %s output %d is nil", tx, i)
		}
	}

	return nil
}

// TotalOutputValue sums the output values. Nil outputs count as zero.
func (tx *Transaction) TotalOutputValue() uint64 {
	var total uint64

	for _, output := range tx.Outputs {
		if output != nil {
			total += output.Value
		}
	}

	return total
}

// CalculateFee returns Σ inputValues − Σ outputs. A sum that overflows uint64, or a difference
// that does not fit in int64, is a TX_INVALID error.
func (tx *Transaction) CalculateFee(inputValues []uint64) (int64, error) {
	var totalIn uint64

	for _, v := range inputValues {
		if v > math.MaxUint64-totalIn {
			return 0, errors.NewTxInvalidError("transaction %s input value overflows", tx)
		}

		totalIn += v
	}

	var totalOut uint64

	for _, output := range tx.Outputs {
		if output == nil {
			continue
		}

		if output.Value > math.MaxUint64-totalOut {
			return 0, errors.NewTxInvalidError("transaction %s output value overflows", tx)
		}

		totalOut += output.Value
	}

	if totalIn >= totalOut {
		fee, err := safeconversion.Uint64ToInt64(totalIn - totalOut)
		if err != nil {
			return 0, errors.NewTxInvalidError("transaction %s fee out of range", tx, err)
		}

		return fee, nil
	}

	deficit, err := safeconversion.Uint64ToInt64(totalOut - totalIn)
	if err != nil {
		return 0, errors.NewTxInvalidError("transaction %s deficit out of range", tx, err)
	}

	return -deficit, nil
}

// CalculateTxID hashes the canonical serialization of the current content. It does not update
// the stored id; comparing both detects content changed after construction.
func (tx *Transaction) CalculateTxID() chainhash.Hash {
	return chainhash.HashH(tx.Bytes())
}

// Bytes returns the canonical serialization: inputs, outputs and timestamp, little endian,
// variable length fields prefixed with their uint32 length.
func (tx *Transaction) Bytes() []byte {
	var buf bytes.Buffer

	writeUint32(&buf, uint32(len(tx.Inputs))) //nolint:gosec // slice lengths fit in uint32

	for _, input := range tx.Inputs {
		if input == nil {
			input = &TxInput{}
		}

		buf.Write(input.PreviousTxID[:])
		writeUint32(&buf, input.OutputIndex)
		writeBytes(&buf, input.PublicKey)
		writeBytes(&buf, input.Signature)
	}

	writeUint32(&buf, uint32(len(tx.Outputs))) //nolint:gosec // slice lengths fit in uint32

	for _, output := range tx.Outputs {
		if output == nil {
			output = &TxOutput{}
		}

		writeUint64(&buf, output.Value)
		writeBytes(&buf, []byte(output.Recipient))
	}

	writeUint64(&buf, uint64(tx.Timestamp)) //nolint:gosec // bit pattern is what gets hashed

	return buf.Bytes()
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeUint32(buf, uint32(len(b))) //nolint:gosec // slice lengths fit in uint32
	buf.Write(b)
}

type txInputJSON struct {
	PreviousTxID string `json:"previousTxId"`
	OutputIndex  uint32 `json:"outputIndex"`
	PublicKey    string `json:"publicKey,omitempty"`
	Signature    string `json:"signature,omitempty"`
}

type txOutputJSON struct {
	Value     uint64 `json:"value"`
	Recipient string `json:"recipient"`
}

type transactionJSON struct {
	TxID      string         `json:"txid,omitempty"`
	Inputs    []txInputJSON  `json:"inputs"`
	Outputs   []txOutputJSON `json:"outputs"`
	Timestamp int64          `json:"timestamp"`
}

func (tx *Transaction) MarshalJSON() ([]byte, error) {
	if err := tx.CheckEntries(); err != nil {
		return nil, err
	}

	out := transactionJSON{
		TxID:      tx.id.String(),
		Inputs:    make([]txInputJSON, 0, len(tx.Inputs)),
		Outputs:   make([]txOutputJSON, 0, len(tx.Outputs)),
		Timestamp: tx.Timestamp,
	}

	for _, input := range tx.Inputs {
		out.Inputs = append(out.Inputs, txInputJSON{
			PreviousTxID: input.PreviousTxID.String(),
			OutputIndex:  input.OutputIndex,
			PublicKey:    hex.EncodeToString(input.PublicKey),
			Signature:    hex.EncodeToString(input.Signature),
		})
	}

	for _, output := range tx.Outputs {
		out.Outputs = append(out.Outputs, txOutputJSON{Value: output.Value, Recipient: output.Recipient})
	}

	return json.Marshal(out)
}

// UnmarshalJSON decodes a transaction and derives its id from the decoded content. A txid field,
// when present, must match the derived id.
func (tx *Transaction) UnmarshalJSON(data []byte) error {
	var in transactionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return errors.NewInvalidArgumentError("invalid transaction json", err)
	}

	decoded := Transaction{
		Inputs:    make([]*TxInput, 0, len(in.Inputs)),
		Outputs:   make([]*TxOutput, 0, len(in.Outputs)),
		Timestamp: in.Timestamp,
	}

	for i, input := range in.Inputs {
		prevTxID, err := chainhash.NewHashFromStr(input.PreviousTxID)
		if err != nil {
			return errors.NewInvalidArgumentError("input %d: invalid previous txid %q", i, input.PreviousTxID, err)
		}

		publicKey, err := hex.DecodeString(input.PublicKey)
		if err != nil {
			return errors.NewInvalidArgumentError("input %d: invalid public key", i, err)
		}

		signature, err := hex.DecodeString(input.Signature)
		if err != nil {
			return errors.NewInvalidArgumentError("input %d: invalid signature", i, err)
		}

		decoded.Inputs = append(decoded.Inputs, &TxInput{
			PreviousTxID: *prevTxID,
			OutputIndex:  input.OutputIndex,
			PublicKey:    publicKey,
			Signature:    signature,
		})
	}

	for _, output := range in.Outputs {
		decoded.Outputs = append(decoded.Outputs, &TxOutput{Value: output.Value, Recipient: output.Recipient})
	}

	decoded.id = decoded.CalculateTxID()

	if in.TxID != "" && in.TxID != decoded.id.String() {
		return errors.NewTxInvalidError("txid %s does not match content hash %s", in.TxID, decoded.id.String())
	}

	*tx = decoded

	return nil
}
