package model

import (
	"crypto/ecdsa"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrBadPrivateKey = errors.New("wallet: invalid private key material")

// WalletCredential holds the signing identity for one wallet. The key stays
// in process memory only: String, GoString and log marshaling expose the
// address and nothing else.
type WalletCredential struct {
	Address common.Address

	key *ecdsa.PrivateKey
}

// NewWalletCredential parses a hex-encoded private key (with or without the
// 0x prefix) and derives the wallet address from it.
func NewWalletCredential(hexKey string) (*WalletCredential, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, ErrBadPrivateKey
	}

	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, ErrBadPrivateKey
	}

	return &WalletCredential{
		Address: crypto.PubkeyToAddress(key.PublicKey),
		key:     key,
	}, nil
}

// Key returns the signing key. Callers scope its use to a single signing
// operation and must not persist or log it.
func (w *WalletCredential) Key() *ecdsa.PrivateKey {
	return w.key
}

func (w *WalletCredential) String() string {
	return w.Address.Hex()
}

func (w *WalletCredential) GoString() string {
	return w.Address.Hex()
}
