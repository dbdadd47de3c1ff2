package tx

import (
	"bytes"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/script"
)

// RecordFlagBytes tags ledger record outputs: "fvlt" in ASCII.
var RecordFlagBytes = []byte{0x66, 0x76, 0x6c, 0x74}

const (
	// RecordFlag is the string form of RecordFlagBytes.
	RecordFlag = "fvlt"

	// DustLimit is the minimum P2PKH output value in satoshis.
	DustLimit = uint64(546)

	// DefaultFeeRate is the default fee rate in sat/KB.
	DefaultFeeRate = uint64(1)

	// MaxPayloadSize bounds a single record payload.
	MaxPayloadSize = 100 * 1024

	// TxIDLen is the length of a transaction ID.
	TxIDLen = 32
)

// BuildRecordScript constructs OP_FALSE OP_RETURN <"fvlt"> <payload>.
func BuildRecordScript(payload []byte) (*script.Script, error) {
	if len(payload) == 0 || len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: size %d", ErrInvalidPayload, len(payload))
	}
	s := &script.Script{}
	*s = append(*s, script.Op0, script.OpRETURN)
	for _, push := range [][]byte{RecordFlagBytes, payload} {
		if err := s.AppendPushData(push); err != nil {
			return nil, fmt.Errorf("%w: OP_RETURN push data: %w", ErrScriptBuild, err)
		}
	}
	return s, nil
}

// ParseRecordScript extracts the payload from a record output script.
func ParseRecordScript(s *script.Script) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: script", ErrNilParam)
	}
	chunks, err := s.Chunks()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOPReturn, err)
	}
	if len(chunks) < 4 || chunks[0].Op != script.Op0 || chunks[1].Op != script.OpRETURN {
		return nil, fmt.Errorf("%w: expected OP_FALSE OP_RETURN <flag> <payload>", ErrNotRecordTx)
	}
	if !bytes.Equal(chunks[2].Data, RecordFlagBytes) {
		return nil, fmt.Errorf("%w: missing record flag", ErrNotRecordTx)
	}
	if len(chunks[3].Data) == 0 {
		return nil, fmt.Errorf("%w: payload is empty", ErrInvalidOPReturn)
	}
	return chunks[3].Data, nil
}

// EstimateFee estimates the transaction fee for a given size and fee rate.
// Returns ceil(txSizeBytes * feeRate / 1000).
func EstimateFee(txSizeBytes int, feeRate uint64) uint64 {
	if feeRate == 0 {
		feeRate = DefaultFeeRate
	}
	fee := uint64(txSizeBytes) * feeRate
	return (fee + 999) / 1000
}

// EstimateTxSize estimates the size of a record transaction in bytes.
func EstimateTxSize(numInputs, numOutputs int, payloadSize int) int {
	// Base: version(4) + locktime(4) + input count varint(1) + output count varint(1) = 10
	// Per input: prevhash(32) + previndex(4) + scriptlen varint(1) + script(~107 for P2PKH) + sequence(4) = 148
	// Per output: value(8) + scriptlen varint(1) + script(~25 for P2PKH) = 34
	// OP_RETURN output: value(8) + scriptlen varint(3) + OP_FALSE(1) + OP_RETURN(1) + pushdata
	base := 10
	inputs := numInputs * 148
	outputs := numOutputs * 34
	opReturn := 13 + 1 + len(RecordFlagBytes) + 5 + payloadSize

	return base + inputs + outputs + opReturn
}
