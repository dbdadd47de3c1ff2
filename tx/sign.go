package tx

import (
	"fmt"

	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/bsv-blockchain/go-sdk/transaction/template/p2pkh"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// SignRecordTx signs every input of rtx and returns the signed hex.
//
// utxos[i] signs input i; each must carry a PrivateKey and ScriptPubKey.
// On success rtx.RawTx and rtx.TxID hold the signed transaction and the
// change UTXO (if any) points at it.
func SignRecordTx(rtx *RecordTx, utxos []*UTXO) (string, error) {
	if rtx == nil {
		return "", fmt.Errorf("%w: RecordTx", ErrNilParam)
	}
	if len(rtx.RawTx) == 0 {
		return "", fmt.Errorf("%w: RawTx is empty", ErrSigningFailed)
	}
	if len(utxos) == 0 {
		return "", fmt.Errorf("%w: utxos", ErrNilParam)
	}

	sdkTx, err := transaction.NewTransactionFromBytes(rtx.RawTx)
	if err != nil {
		return "", fmt.Errorf("%w: failed to parse raw tx: %w", ErrSigningFailed, err)
	}
	if len(utxos) != len(sdkTx.Inputs) {
		return "", fmt.Errorf("%w: have %d UTXOs but tx has %d inputs",
			ErrSigningFailed, len(utxos), len(sdkTx.Inputs))
	}

	for i, utxo := range utxos {
		if utxo == nil {
			return "", fmt.Errorf("%w: utxo[%d] is nil", ErrNilParam, i)
		}
		if utxo.PrivateKey == nil {
			return "", fmt.Errorf("%w: utxo[%d] has nil PrivateKey", ErrSigningFailed, i)
		}
		if len(utxo.ScriptPubKey) == 0 {
			return "", fmt.Errorf("%w: utxo[%d] has empty ScriptPubKey", ErrSigningFailed, i)
		}

		unlocker, err := p2pkh.Unlock(utxo.PrivateKey, nil)
		if err != nil {
			return "", fmt.Errorf("%w: unlocker for input %d: %w", ErrSigningFailed, i, err)
		}
		sdkTx.Inputs[i].SetSourceTxOutput(&transaction.TransactionOutput{
			Satoshis:      utxo.Amount,
			LockingScript: script.NewFromBytes(utxo.ScriptPubKey),
		})
		sdkTx.Inputs[i].UnlockingScriptTemplate = unlocker
	}

	if err := sdkTx.Sign(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}

	rtx.RawTx = sdkTx.Bytes()
	rtx.TxID = sdkTx.TxID().CloneBytes()
	if rtx.ChangeUTXO != nil {
		rtx.ChangeUTXO.TxID = rtx.TxID
	}
	return sdkTx.Hex(), nil
}

// TxIDString returns the display-order hex of a 32-byte txid.
func TxIDString(txid []byte) string {
	h, err := chainhashFromBytes(txid)
	if err != nil {
		return ""
	}
	return h.String()
}

// BuildP2PKHScript creates a P2PKH locking script for the given public key.
func BuildP2PKHScript(pubKey *ec.PublicKey) ([]byte, error) {
	if pubKey == nil {
		return nil, fmt.Errorf("%w: public key", ErrNilParam)
	}
	addr, err := script.NewAddressFromPublicKey(pubKey, true)
	if err != nil {
		return nil, fmt.Errorf("%w: address from pubkey: %w", ErrScriptBuild, err)
	}
	lockScript, err := p2pkh.Lock(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: P2PKH lock script: %w", ErrScriptBuild, err)
	}
	return []byte(*lockScript), nil
}

// BuildP2PKHOutput creates a P2PKH output paying satoshis to pubKeyHash.
func BuildP2PKHOutput(pubKeyHash []byte, satoshis uint64) (*transaction.TransactionOutput, error) {
	addr, err := script.NewAddressFromPublicKeyHash(pubKeyHash, true)
	if err != nil {
		return nil, fmt.Errorf("%w: address from hash: %w", ErrScriptBuild, err)
	}
	lockScript, err := p2pkh.Lock(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: P2PKH lock: %w", ErrScriptBuild, err)
	}
	return &transaction.TransactionOutput{
		Satoshis:      satoshis,
		LockingScript: lockScript,
	}, nil
}
