package tx

import (
	"encoding/hex"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

// UTXO represents an unspent transaction output used to fund a record tx.
type UTXO struct {
	TxID         []byte         `json:"txid"`          // 32 bytes, internal byte order
	Vout         uint32         `json:"vout"`
	Amount       uint64         `json:"amount"`        // satoshis
	ScriptPubKey []byte         `json:"script_pubkey"` // locking script bytes
	PrivateKey   *ec.PrivateKey `json:"-"`             // signing key (not serialized)
}

// NewUTXOFromHex builds a UTXO from the display-order txid and hex script
// returned by a node RPC.
func NewUTXOFromHex(txidHex string, vout uint32, amount uint64, scriptHex string, key *ec.PrivateKey) (*UTXO, error) {
	h, err := chainhash.NewHashFromHex(txidHex)
	if err != nil {
		return nil, fmt.Errorf("%w: txid %q: %w", ErrNilParam, txidHex, err)
	}
	script, err := hex.DecodeString(scriptHex)
	if err != nil {
		return nil, fmt.Errorf("%w: script hex: %w", ErrScriptBuild, err)
	}
	return &UTXO{
		TxID:         h.CloneBytes(),
		Vout:         vout,
		Amount:       amount,
		ScriptPubKey: script,
		PrivateKey:   key,
	}, nil
}

func chainhashFromBytes(b []byte) (*chainhash.Hash, error) {
	return chainhash.NewHash(b)
}

// Outpoint returns "txid:vout" with the txid in display order.
func (u *UTXO) Outpoint() string {
	h, err := chainhashFromBytes(u.TxID)
	if err != nil {
		return fmt.Sprintf("%x:%d", u.TxID, u.Vout)
	}
	return fmt.Sprintf("%s:%d", h.String(), u.Vout)
}

// RecordTx wraps a built record transaction.
type RecordTx struct {
	RawTx      []byte // Serialized transaction bytes
	TxID       []byte // Transaction hash (32 bytes), set after signing
	Fee        uint64
	ChangeUTXO *UTXO // Output 1: change back to the funding key (nil if dust)
}
