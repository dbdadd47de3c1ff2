package wallet

import (
	"fmt"

	bip32 "github.com/bsv-blockchain/go-sdk/compat/bip32"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
	chaincfg "github.com/bsv-blockchain/go-sdk/transaction/chaincfg"
)

const (
	PurposeBIP44 = 44
	CoinType     = 236

	// FundingAccount is the BIP44 account that pays ledger fees.
	FundingAccount = 0

	ExternalChain = 0
	InternalChain = 1

	Hardened = 0x80000000
)

// Wallet derives keys from a BIP39 seed.
type Wallet struct {
	masterKey *bip32.ExtendedKey
	mainnet   bool
}

// KeyPair holds a derived key and its path.
type KeyPair struct {
	PrivateKey *ec.PrivateKey `json:"-"`
	PublicKey  *ec.PublicKey  `json:"public_key"`
	Path       string         `json:"path"`

	mainnet bool
}

// NewWallet creates a Wallet for network ("mainnet", "testnet" or "regtest").
func NewWallet(seed []byte, network string) (*Wallet, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}

	var params *chaincfg.Params
	switch network {
	case "mainnet", "":
		params = &chaincfg.MainNet
	case "testnet", "regtest":
		params = &chaincfg.TestNet
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidNetwork, network)
	}

	masterKey, err := bip32.NewMaster(seed, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}
	return &Wallet{masterKey: masterKey, mainnet: params == &chaincfg.MainNet}, nil
}

// Mainnet reports whether addresses use the mainnet encoding.
func (w *Wallet) Mainnet() bool { return w.mainnet }

// FundingKey returns the key at m/44'/236'/0'/0/0.
func (w *Wallet) FundingKey() (*KeyPair, error) {
	return w.DeriveFundingKey(ExternalChain, 0)
}

// DeriveFundingKey derives m/44'/236'/0'/chain/index.
func (w *Wallet) DeriveFundingKey(chain, index uint32) (*KeyPair, error) {
	if index >= Hardened {
		return nil, fmt.Errorf("%w: index %d is hardened", ErrDerivationFailed, index)
	}

	key := w.masterKey
	steps := []uint32{PurposeBIP44 + Hardened, CoinType + Hardened, FundingAccount + Hardened, chain, index}
	for depth, step := range steps {
		child, err := key.Child(step)
		if err != nil {
			return nil, fmt.Errorf("%w: depth %d: %w", ErrDerivationFailed, depth, err)
		}
		key = child
	}

	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: extract EC private key: %w", ErrDerivationFailed, err)
	}
	return &KeyPair{
		PrivateKey: priv,
		PublicKey:  priv.PubKey(),
		Path:       fmt.Sprintf("m/44'/236'/0'/%d/%d", chain, index),
		mainnet:    w.mainnet,
	}, nil
}

// Address returns the P2PKH address of the key.
func (k *KeyPair) Address() (string, error) {
	addr, err := script.NewAddressFromPublicKey(k.PublicKey, k.mainnet)
	if err != nil {
		return "", fmt.Errorf("wallet: address: %w", err)
	}
	return addr.AddressString, nil
}

// PubKeyHash returns HASH160 of the compressed public key.
func (k *KeyPair) PubKeyHash() ([]byte, error) {
	addr, err := script.NewAddressFromPublicKey(k.PublicKey, k.mainnet)
	if err != nil {
		return nil, fmt.Errorf("wallet: address: %w", err)
	}
	return addr.PublicKeyHash, nil
}
