package engine

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/tyler-smith/go-bip32"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // RIPEMD-160 is required by the Bitcoin protocol (Hash160)
	"golang.org/x/crypto/sha3"
)

// derivationPath formats the BIP-44 path of an external address.
func derivationPath(coinType, index uint32) string {
	return fmt.Sprintf("m/44'/%d'/0'/0/%d", coinType, index)
}

// deriveKey derives a child private key from a BIP-39 seed using BIP-32/BIP-44.
// Path: m/44'/{coinType}'/0'/0/{index}
func deriveKey(seed []byte, coinType uint32, index uint32) (*btcec.PrivateKey, error) {
	masterKey, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}

	// m/44'
	purpose, err := masterKey.NewChildKey(bip32.FirstHardenedChild + 44)
	if err != nil {
		return nil, fmt.Errorf("derive purpose: %w", err)
	}

	// m/44'/{coinType}'
	coin, err := purpose.NewChildKey(bip32.FirstHardenedChild + coinType)
	if err != nil {
		return nil, fmt.Errorf("derive coin: %w", err)
	}

	// m/44'/{coinType}'/0'
	account, err := coin.NewChildKey(bip32.FirstHardenedChild + 0)
	if err != nil {
		return nil, fmt.Errorf("derive account: %w", err)
	}

	// m/44'/{coinType}'/0'/0
	change, err := account.NewChildKey(0)
	if err != nil {
		return nil, fmt.Errorf("derive change: %w", err)
	}

	// m/44'/{coinType}'/0'/0/{index}
	child, err := change.NewChildKey(index)
	if err != nil {
		return nil, fmt.Errorf("derive child: %w", err)
	}

	priv, _ := btcec.PrivKeyFromBytes(child.Key)
	return priv, nil
}

func hash160(data []byte) []byte {
	sha := sha256.Sum256(data)
	ripe := ripemd160.New()
	ripe.Write(sha[:])
	return ripe.Sum(nil)
}

func doubleSHA256(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:]
}

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

func base58CheckEncode(version byte, payload []byte) string {
	data := make([]byte, 0, 1+len(payload)+4)
	data = append(data, version)
	data = append(data, payload...)

	// Checksum = first 4 bytes of double SHA256
	checksum := doubleSHA256(data)
	data = append(data, checksum[:4]...)

	return base58.Encode(data)
}

// base58CheckDecode reverses base58CheckEncode and verifies the checksum.
func base58CheckDecode(s string) (version byte, payload []byte, err error) {
	data := base58.Decode(s)
	if len(data) < 5 {
		return 0, nil, fmt.Errorf("base58 %q: too short", s)
	}
	body, sum := data[:len(data)-4], data[len(data)-4:]
	want := doubleSHA256(body)
	for i := range sum {
		if sum[i] != want[i] {
			return 0, nil, fmt.Errorf("base58 %q: bad checksum", s)
		}
	}
	return body[0], body[1:], nil
}
