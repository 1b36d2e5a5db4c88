package engine

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
)

// DerivedAddress is one address of a wallet together with the key path it
// came from.
type DerivedAddress struct {
	Address        string
	DerivationPath string
	PublicKey      string
	Index          uint32
}

// addressCodec turns a public key into an address and checks addresses.
// Each chain family implements its own.
type addressCodec interface {
	Encode(pub *btcec.PublicKey) string
	Validate(addr string) error
}

// btcCodec produces P2PKH (legacy 1...) addresses: Base58Check(0x00 + Hash160(pubKey)).
type btcCodec struct{}

func (btcCodec) Encode(pub *btcec.PublicKey) string {
	return base58CheckEncode(0x00, hash160(pub.SerializeCompressed()))
}

func (btcCodec) Validate(addr string) error {
	version, payload, err := base58CheckDecode(addr)
	if err != nil {
		return err
	}
	if (version != 0x00 && version != 0x05) || len(payload) != 20 {
		return fmt.Errorf("not a bitcoin address: %s", addr)
	}
	return nil
}

// ethCodec produces 0x-prefixed hex addresses: the last 20 bytes of
// Keccak256(uncompressed pubKey without its 0x04 prefix).
type ethCodec struct{}

func (ethCodec) Encode(pub *btcec.PublicKey) string {
	hash := keccak256(pub.SerializeUncompressed()[1:])
	return "0x" + hex.EncodeToString(hash[12:])
}

func (ethCodec) Validate(addr string) error {
	if !strings.HasPrefix(addr, "0x") || len(addr) != 42 {
		return fmt.Errorf("not an ethereum address: %s", addr)
	}
	if _, err := hex.DecodeString(addr[2:]); err != nil {
		return fmt.Errorf("not an ethereum address: %s", addr)
	}
	return nil
}

// trxCodec uses the Ethereum hash with TRON's 0x41 prefix and Base58Check.
type trxCodec struct{}

func (trxCodec) Encode(pub *btcec.PublicKey) string {
	hash := keccak256(pub.SerializeUncompressed()[1:])
	return base58CheckEncode(0x41, hash[12:])
}

func (trxCodec) Validate(addr string) error {
	version, payload, err := base58CheckDecode(addr)
	if err != nil {
		return err
	}
	if version != 0x41 || len(payload) != 20 {
		return fmt.Errorf("not a tron address: %s", addr)
	}
	return nil
}

// deriveAddress derives the external address at index for a plugin.
func deriveAddress(p *Plugin, seed []byte, index uint32) (DerivedAddress, error) {
	key, err := deriveKey(seed, p.CoinType, index)
	if err != nil {
		return DerivedAddress{}, fmt.Errorf("derive key: %w", err)
	}
	pub := key.PubKey()
	return DerivedAddress{
		Address:        p.codec.Encode(pub),
		DerivationPath: derivationPath(p.CoinType, index),
		PublicKey:      hex.EncodeToString(pub.SerializeCompressed()),
		Index:          index,
	}, nil
}
