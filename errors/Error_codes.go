package errors

// ERR is the numeric error code carried by every *Error.
type ERR int32

// Error codes. The block and transaction rejection codes map one to one onto the
// rejection reasons of block acceptance and transaction submission.
const (
	ERR_UNKNOWN                 ERR = 0
	ERR_INVALID_ARGUMENT        ERR = 1
	ERR_NOT_FOUND               ERR = 2
	ERR_PROCESSING              ERR = 3
	ERR_CONFIGURATION           ERR = 4
	ERR_CONTEXT_CANCELED        ERR = 5
	ERR_ERROR                   ERR = 6
	ERR_STATE_ERROR             ERR = 7
	ERR_BLOCK_NOT_FOUND         ERR = 10
	ERR_BLOCK_INVALID           ERR = 11
	ERR_BLOCK_EXISTS            ERR = 12
	ERR_BLOCK_ORPHAN            ERR = 13
	ERR_COINBASE_MALFORMED      ERR = 14
	ERR_TX_NOT_FOUND            ERR = 30
	ERR_TX_INVALID              ERR = 31
	ERR_TX_INVALID_DOUBLE_SPEND ERR = 32
	ERR_TX_INSUFFICIENT_INPUT   ERR = 33
	ERR_TX_DUPLICATE            ERR = 34
	ERR_TX_ALREADY_EXISTS       ERR = 35
	ERR_SERVICE_UNAVAILABLE     ERR = 50
	ERR_SERVICE_NOT_STARTED     ERR = 51
	ERR_SERVICE_ERROR           ERR = 52
)

var ERR_name = map[int32]string{
	0:  "UNKNOWN",
	1:  "INVALID_ARGUMENT",
	2:  "NOT_FOUND",
	3:  "PROCESSING",
	4:  "CONFIGURATION",
	5:  "CONTEXT_CANCELED",
	6:  "ERROR",
	7:  "STATE_ERROR",
	10: "BLOCK_NOT_FOUND",
	11: "BLOCK_INVALID",
	12: "BLOCK_EXISTS",
	13: "BLOCK_ORPHAN",
	14: "COINBASE_MALFORMED",
	30: "TX_NOT_FOUND",
	31: "TX_INVALID",
	32: "TX_INVALID_DOUBLE_SPEND",
	33: "TX_INSUFFICIENT_INPUT",
	34: "TX_DUPLICATE",
	35: "TX_ALREADY_EXISTS",
	50: "SERVICE_UNAVAILABLE",
	51: "SERVICE_NOT_STARTED",
	52: "SERVICE_ERROR",
}

func (x ERR) String() string {
	if name, ok := ERR_name[int32(x)]; ok {
		return name
	}

	return "UNKNOWN"
}

// Enum returns the symbolic name of the code.
func (x ERR) Enum() string {
	return x.String()
}
