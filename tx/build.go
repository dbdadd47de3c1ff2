package tx

import (
	"fmt"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	"github.com/bsv-blockchain/go-sdk/transaction"
)

// BuildRecordTx constructs an unsigned record transaction.
//
// Output layout:
//
//	[0] OP_FALSE OP_RETURN "fvlt" <payload>  (0 sat)
//	[1] P2PKH -> changeHash                  (omitted if dust)
//
// All inputs are spent; the fee is estimated from the size with one change
// output included.
func BuildRecordTx(payload []byte, inputs []*UTXO, changeHash []byte, feeRate uint64) (*RecordTx, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no funding inputs", ErrNilParam)
	}
	if len(changeHash) != 20 {
		return nil, fmt.Errorf("%w: change hash must be 20 bytes", ErrNilParam)
	}
	opReturn, err := BuildRecordScript(payload)
	if err != nil {
		return nil, err
	}

	total := uint64(0)
	for i, in := range inputs {
		if in == nil {
			return nil, fmt.Errorf("%w: input[%d]", ErrNilParam, i)
		}
		total += in.Amount
	}

	fee := EstimateFee(EstimateTxSize(len(inputs), 1, len(payload)), feeRate)
	if total < fee {
		return nil, fmt.Errorf("%w: need %d sat, have %d sat", ErrInsufficientFunds, fee, total)
	}

	sdkTx := transaction.NewTransaction()
	for _, in := range inputs {
		h, err := chainhash.NewHash(in.TxID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid UTXO TxID: %w", ErrScriptBuild, err)
		}
		sdkTx.AddInput(&transaction.TransactionInput{
			SourceTXID:       h,
			SourceTxOutIndex: in.Vout,
			SequenceNumber:   transaction.DefaultSequenceNumber,
		})
	}

	sdkTx.Outputs = append(sdkTx.Outputs, &transaction.TransactionOutput{
		Satoshis:      0,
		LockingScript: opReturn,
	})

	result := &RecordTx{Fee: fee}
	change := total - fee
	if change > DustLimit {
		out, err := BuildP2PKHOutput(changeHash, change)
		if err != nil {
			return nil, err
		}
		sdkTx.Outputs = append(sdkTx.Outputs, out)
		result.ChangeUTXO = &UTXO{
			Vout:         1,
			Amount:       change,
			ScriptPubKey: []byte(*out.LockingScript),
		}
	} else {
		result.Fee = total
	}

	result.RawTx = sdkTx.Bytes()
	return result, nil
}

// SelectInputs picks UTXOs largest-first until they cover the fee for a
// payload of payloadSize bytes.
func SelectInputs(available []*UTXO, payloadSize int, feeRate uint64) ([]*UTXO, error) {
	sorted := make([]*UTXO, 0, len(available))
	for _, u := range available {
		if u != nil && u.Amount > 0 {
			sorted = append(sorted, u)
		}
	}
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Amount > sorted[j-1].Amount; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	var picked []*UTXO
	total := uint64(0)
	for _, u := range sorted {
		picked = append(picked, u)
		total += u.Amount
		if total >= EstimateFee(EstimateTxSize(len(picked), 1, payloadSize), feeRate) {
			return picked, nil
		}
	}
	return nil, fmt.Errorf("%w: %d sat across %d outputs", ErrInsufficientFunds, total, len(sorted))
}
