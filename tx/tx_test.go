package tx

import (
	"bytes"
	"testing"

	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
)

func generateTestKeyPair(t *testing.T) (*ec.PrivateKey, *ec.PublicKey) {
	t.Helper()
	privKey, err := ec.NewPrivateKey()
	require.NoError(t, err)
	return privKey, privKey.PubKey()
}

func testFeeUTXO(t *testing.T, priv *ec.PrivateKey, amount uint64, fill byte) *UTXO {
	t.Helper()
	lock, err := BuildP2PKHScript(priv.PubKey())
	require.NoError(t, err)
	return &UTXO{
		TxID:         bytes.Repeat([]byte{fill}, 32),
		Vout:         0,
		Amount:       amount,
		ScriptPubKey: lock,
		PrivateKey:   priv,
	}
}

func pubKeyHash(t *testing.T, pub *ec.PublicKey) []byte {
	t.Helper()
	addr, err := script.NewAddressFromPublicKey(pub, true)
	require.NoError(t, err)
	return addr.PublicKeyHash
}

// --- Record script ---

func TestRecordScript_RoundTrip(t *testing.T) {
	payload := []byte{0x01, 0x01, 0x01, 0x02, 0x01, 0x01}
	s, err := BuildRecordScript(payload)
	require.NoError(t, err)

	got, err := ParseRecordScript(s)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestBuildRecordScript_InvalidPayload(t *testing.T) {
	_, err := BuildRecordScript(nil)
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = BuildRecordScript(make([]byte, MaxPayloadSize+1))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestParseRecordScript_Rejects(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		_, err := ParseRecordScript(nil)
		assert.ErrorIs(t, err, ErrNilParam)
	})

	t.Run("p2pkh", func(t *testing.T) {
		_, pub := generateTestKeyPair(t)
		lock, err := BuildP2PKHScript(pub)
		require.NoError(t, err)
		_, err = ParseRecordScript(script.NewFromBytes(lock))
		assert.ErrorIs(t, err, ErrNotRecordTx)
	})

	t.Run("wrong flag", func(t *testing.T) {
		s := &script.Script{}
		*s = append(*s, script.Op0, script.OpRETURN)
		require.NoError(t, s.AppendPushData([]byte("meta")))
		require.NoError(t, s.AppendPushData([]byte{0x01}))
		_, err := ParseRecordScript(s)
		assert.ErrorIs(t, err, ErrNotRecordTx)
	})
}

// --- Fee estimation ---

func TestEstimateFee(t *testing.T) {
	assert.Equal(t, uint64(1), EstimateFee(1, 1))
	assert.Equal(t, uint64(1), EstimateFee(1000, 1))
	assert.Equal(t, uint64(2), EstimateFee(1001, 1))
	assert.Equal(t, uint64(50), EstimateFee(1000, 50))
	assert.Equal(t, EstimateFee(500, DefaultFeeRate), EstimateFee(500, 0))
}

func TestEstimateTxSize_GrowsWithPayload(t *testing.T) {
	small := EstimateTxSize(1, 1, 10)
	large := EstimateTxSize(1, 1, 1000)
	assert.Equal(t, 990, large-small)
	assert.Equal(t, 148, EstimateTxSize(2, 1, 10)-small)
}

// --- Build ---

func TestBuildRecordTx(t *testing.T) {
	priv, pub := generateTestKeyPair(t)
	in := testFeeUTXO(t, priv, 10000, 0x01)

	rtx, err := BuildRecordTx([]byte("payload"), []*UTXO{in}, pubKeyHash(t, pub), 1)
	require.NoError(t, err)
	require.NotNil(t, rtx.ChangeUTXO)
	assert.Equal(t, uint64(10000)-rtx.Fee, rtx.ChangeUTXO.Amount)
	assert.Equal(t, uint32(1), rtx.ChangeUTXO.Vout)

	sdkTx, err := transaction.NewTransactionFromBytes(rtx.RawTx)
	require.NoError(t, err)
	require.Len(t, sdkTx.Inputs, 1)
	require.Len(t, sdkTx.Outputs, 2)
	assert.Equal(t, uint64(0), sdkTx.Outputs[0].Satoshis)

	got, err := ParseRecordScript(sdkTx.Outputs[0].LockingScript)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestBuildRecordTx_DustChangeOmitted(t *testing.T) {
	priv, pub := generateTestKeyPair(t)
	in := testFeeUTXO(t, priv, DustLimit, 0x02)

	rtx, err := BuildRecordTx([]byte("x"), []*UTXO{in}, pubKeyHash(t, pub), 1)
	require.NoError(t, err)
	assert.Nil(t, rtx.ChangeUTXO)
	assert.Equal(t, DustLimit, rtx.Fee)

	sdkTx, err := transaction.NewTransactionFromBytes(rtx.RawTx)
	require.NoError(t, err)
	assert.Len(t, sdkTx.Outputs, 1)
}

func TestBuildRecordTx_Errors(t *testing.T) {
	priv, pub := generateTestKeyPair(t)
	pkh := pubKeyHash(t, pub)

	_, err := BuildRecordTx([]byte("x"), nil, pkh, 1)
	assert.ErrorIs(t, err, ErrNilParam)

	_, err = BuildRecordTx([]byte("x"), []*UTXO{testFeeUTXO(t, priv, 1000, 1)}, []byte{1, 2}, 1)
	assert.ErrorIs(t, err, ErrNilParam)

	_, err = BuildRecordTx(nil, []*UTXO{testFeeUTXO(t, priv, 1000, 1)}, pkh, 1)
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = BuildRecordTx([]byte("x"), []*UTXO{testFeeUTXO(t, priv, 0, 1)}, pkh, 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestSelectInputs(t *testing.T) {
	priv, _ := generateTestKeyPair(t)
	small := testFeeUTXO(t, priv, 1, 0x01)
	big := testFeeUTXO(t, priv, 5000, 0x02)

	picked, err := SelectInputs([]*UTXO{small, nil, big}, 100, 1)
	require.NoError(t, err)
	require.Len(t, picked, 1)
	assert.Same(t, big, picked[0])

	_, err = SelectInputs([]*UTXO{small}, 100, 1000)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = SelectInputs(nil, 100, 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

// --- Sign ---

func TestSignRecordTx(t *testing.T) {
	priv, pub := generateTestKeyPair(t)
	inputs := []*UTXO{testFeeUTXO(t, priv, 3000, 0x01), testFeeUTXO(t, priv, 4000, 0x02)}

	rtx, err := BuildRecordTx([]byte("record"), inputs, pubKeyHash(t, pub), 1)
	require.NoError(t, err)

	hexTx, err := SignRecordTx(rtx, inputs)
	require.NoError(t, err)
	assert.NotEmpty(t, hexTx)
	require.Len(t, rtx.TxID, TxIDLen)
	assert.Equal(t, rtx.TxID, rtx.ChangeUTXO.TxID)

	sdkTx, err := transaction.NewTransactionFromBytes(rtx.RawTx)
	require.NoError(t, err)
	for i, in := range sdkTx.Inputs {
		assert.NotNil(t, in.UnlockingScript, "input %d should be signed", i)
	}
	assert.Equal(t, sdkTx.TxID().String(), TxIDString(rtx.TxID))
}

func TestSignRecordTx_Errors(t *testing.T) {
	priv, pub := generateTestKeyPair(t)
	in := testFeeUTXO(t, priv, 3000, 0x01)
	rtx, err := BuildRecordTx([]byte("record"), []*UTXO{in}, pubKeyHash(t, pub), 1)
	require.NoError(t, err)

	_, err = SignRecordTx(nil, []*UTXO{in})
	assert.ErrorIs(t, err, ErrNilParam)

	_, err = SignRecordTx(rtx, nil)
	assert.ErrorIs(t, err, ErrNilParam)

	_, err = SignRecordTx(rtx, []*UTXO{in, in})
	assert.ErrorIs(t, err, ErrSigningFailed)

	noKey := *in
	noKey.PrivateKey = nil
	_, err = SignRecordTx(rtx, []*UTXO{&noKey})
	assert.ErrorIs(t, err, ErrSigningFailed)

	_, err = SignRecordTx(&RecordTx{}, []*UTXO{in})
	assert.ErrorIs(t, err, ErrSigningFailed)
}

func TestNewUTXOFromHex(t *testing.T) {
	priv, _ := generateTestKeyPair(t)
	txid := "0102030405060708091011121314151617181920212223242526272829303132"

	u, err := NewUTXOFromHex(txid, 3, 1000, "76a914000000000000000000000000000000000000000088ac", priv)
	require.NoError(t, err)
	assert.Equal(t, txid+":3", u.Outpoint())
	assert.Len(t, u.ScriptPubKey, 25)
	// Internal byte order is reversed from display order.
	assert.Equal(t, byte(0x32), u.TxID[0])

	_, err = NewUTXOFromHex("zz", 0, 1, "", priv)
	assert.ErrorIs(t, err, ErrNilParam)

	_, err = NewUTXOFromHex(txid, 0, 1, "zz", priv)
	assert.ErrorIs(t, err, ErrScriptBuild)
}
