package wallet

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

// --- Mnemonic tests ---

func TestGenerateMnemonic(t *testing.T) {
	for bits, words := range map[int]int{Mnemonic12Words: 12, Mnemonic24Words: 24} {
		m, err := GenerateMnemonic(bits)
		require.NoError(t, err)
		assert.Len(t, strings.Fields(m), words)
		assert.True(t, ValidateMnemonic(m))
	}

	_, err := GenerateMnemonic(192)
	assert.ErrorIs(t, err, ErrInvalidEntropy)
}

func TestValidateMnemonic(t *testing.T) {
	tests := []struct {
		name     string
		mnemonic string
		valid    bool
	}{
		{"valid 12-word", testMnemonic, true},
		{"invalid words", "foo bar baz qux quux corge grault garply waldo fred plugh xyzzy", false},
		{"empty", "", false},
		{"partial", "abandon abandon", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidateMnemonic(tt.mnemonic))
		})
	}
}

// --- Seed tests ---

func TestSeedFromMnemonic_KnownVector(t *testing.T) {
	seed, err := SeedFromMnemonic(testMnemonic, "")
	require.NoError(t, err)
	assert.Equal(t,
		"5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aaed6f6da5fc19a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2d2ce9e38e4",
		hex.EncodeToString(seed))

	withPass, err := SeedFromMnemonic(testMnemonic, "pass")
	require.NoError(t, err)
	assert.NotEqual(t, seed, withPass)

	_, err = SeedFromMnemonic("not a mnemonic", "")
	assert.ErrorIs(t, err, ErrInvalidMnemonic)
}

func TestEncryptDecryptSeed(t *testing.T) {
	seed := make([]byte, 64)
	for i := range seed {
		seed[i] = byte(i)
	}

	enc1, err := EncryptSeed(seed, "pw")
	require.NoError(t, err)
	enc2, err := EncryptSeed(seed, "pw")
	require.NoError(t, err)
	assert.NotEqual(t, enc1, enc2, "salt and nonce are random")

	dec, err := DecryptSeed(enc1, "pw")
	require.NoError(t, err)
	assert.Equal(t, seed, dec)

	_, err = DecryptSeed(enc1, "wrong")
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	corrupted := append([]byte{}, enc1...)
	corrupted[SaltLen+NonceLen+5] ^= 0xFF
	_, err = DecryptSeed(corrupted, "pw")
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = DecryptSeed([]byte{1, 2, 3}, "pw")
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = EncryptSeed(nil, "pw")
	assert.ErrorIs(t, err, ErrInvalidSeed)
}

func TestSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", SeedFileName)
	seed, err := SeedFromMnemonic(testMnemonic, "")
	require.NoError(t, err)

	require.NoError(t, SaveSeedFile(path, seed, "pw"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadSeedFile(path, "pw")
	require.NoError(t, err)
	assert.Equal(t, seed, loaded)

	_, err = LoadSeedFile(path, "nope")
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = LoadSeedFile(filepath.Join(t.TempDir(), "missing"), "pw")
	assert.ErrorIs(t, err, ErrSeedFileMissing)
}

// --- HD derivation tests ---

func newTestWallet(t *testing.T, network string) *Wallet {
	t.Helper()
	seed, err := SeedFromMnemonic(testMnemonic, "")
	require.NoError(t, err)
	w, err := NewWallet(seed, network)
	require.NoError(t, err)
	return w
}

func TestFundingKey(t *testing.T) {
	w := newTestWallet(t, "mainnet")
	assert.True(t, w.Mainnet())

	kp, err := w.FundingKey()
	require.NoError(t, err)
	assert.Equal(t, "m/44'/236'/0'/0/0", kp.Path)
	require.NotNil(t, kp.PrivateKey)
	assert.Equal(t, kp.PrivateKey.PubKey().Compressed(), kp.PublicKey.Compressed())

	again, err := newTestWallet(t, "mainnet").FundingKey()
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey.Compressed(), again.PublicKey.Compressed(), "derivation is deterministic")

	change, err := w.DeriveFundingKey(InternalChain, 0)
	require.NoError(t, err)
	assert.Equal(t, "m/44'/236'/0'/1/0", change.Path)
	assert.NotEqual(t, kp.PublicKey.Compressed(), change.PublicKey.Compressed())

	_, err = w.DeriveFundingKey(ExternalChain, Hardened)
	assert.ErrorIs(t, err, ErrDerivationFailed)
}

func TestKeyPair_Address(t *testing.T) {
	main, err := newTestWallet(t, "mainnet").FundingKey()
	require.NoError(t, err)
	test, err := newTestWallet(t, "regtest").FundingKey()
	require.NoError(t, err)

	mainAddr, err := main.Address()
	require.NoError(t, err)
	testAddr, err := test.Address()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(mainAddr, "1"), mainAddr)
	assert.True(t, strings.HasPrefix(testAddr, "m") || strings.HasPrefix(testAddr, "n"), testAddr)

	pkh, err := main.PubKeyHash()
	require.NoError(t, err)
	assert.Len(t, pkh, 20)
	testPKH, err := test.PubKeyHash()
	require.NoError(t, err)
	assert.Equal(t, pkh, testPKH, "same key, different encoding")
}

func TestNewWallet_Errors(t *testing.T) {
	_, err := NewWallet(nil, "mainnet")
	assert.ErrorIs(t, err, ErrInvalidSeed)

	_, err = NewWallet(make([]byte, 64), "moonnet")
	assert.ErrorIs(t, err, ErrInvalidNetwork)
}
