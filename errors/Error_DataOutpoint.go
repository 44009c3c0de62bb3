package errors

import (
	"encoding/json"
	"fmt"
)

// OutpointErrData identifies the output a rejected transaction tried to spend.
type OutpointErrData struct {
	TxID        string `json:"txid"`
	OutputIndex uint32 `json:"outputIndex"`
	Reason      string `json:"reason"`
}

func (e *OutpointErrData) Error() string {
	return fmt.Sprintf("outpoint %s:%d %s", e.TxID, e.OutputIndex, e.Reason)
}

func (e *OutpointErrData) GetData(key string) interface{} {
	switch key {
	case "txid":
		return e.TxID
	case "outputIndex":
		return e.OutputIndex
	case "reason":
		return e.Reason
	}

	return nil
}

func (e *OutpointErrData) SetData(key string, value interface{}) {
	switch key {
	case "txid":
		e.TxID, _ = value.(string)
	case "outputIndex":
		e.OutputIndex, _ = value.(uint32)
	case "reason":
		e.Reason, _ = value.(string)
	}
}

func (e *OutpointErrData) EncodeErrorData() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		return []byte{}
	}

	return data
}

// NewDoubleSpendErr returns a double spend error carrying the offending outpoint.
func NewDoubleSpendErr(txID string, index uint32, reason string) error {
	data := &OutpointErrData{
		TxID:        txID,
		OutputIndex: index,
		Reason:      reason,
	}

	return NewWithData(ERR_TX_INVALID_DOUBLE_SPEND, data, "tx invalid double spend")
}
