package wasmdeploy

import (
	"fmt"
	"strings"

	"github.com/cosmos/cosmos-sdk/crypto/hd"
	"github.com/cosmos/cosmos-sdk/crypto/keyring"
	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/cosmos/cosmos-sdk/types/tx/signing"
	"github.com/cosmos/go-bip39"
)

// SignerUID is the keyring entry name of the deployer key.
const SignerUID = "deployer"

// Signer holds the deployer key in an in-memory keyring. The mnemonic is
// never written to disk.
type Signer struct {
	enc    EncodingConfig
	kr     keyring.Keyring
	addr   sdk.AccAddress
	bech32 string
	pubKey cryptotypes.PubKey
	hdPath string
	prefix string
}

// NewSigner derives the deployer key from mnemonic along cfg.HDPath.
func NewSigner(cfg *Config, mnemonic string) (*Signer, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if mnemonic == "" {
		return nil, ErrMissingMnemonic
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	enc, err := NewEncodingConfig(cfg.Bech32Prefix)
	if err != nil {
		return nil, err
	}

	kr := keyring.NewInMemory(enc.Codec)
	record, err := kr.NewAccount(SignerUID, mnemonic, "", cfg.HDPath, hd.Secp256k1)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	addr, err := record.GetAddress()
	if err != nil {
		return nil, fmt.Errorf("key address: %w", err)
	}
	pubKey, err := record.GetPubKey()
	if err != nil {
		return nil, fmt.Errorf("key pubkey: %w", err)
	}
	encoded, err := bech32.ConvertAndEncode(cfg.Bech32Prefix, addr)
	if err != nil {
		return nil, fmt.Errorf("encode address: %w", err)
	}

	return &Signer{
		enc:    enc,
		kr:     kr,
		addr:   addr,
		bech32: encoded,
		pubKey: pubKey,
		hdPath: cfg.HDPath,
		prefix: cfg.Bech32Prefix,
	}, nil
}

// Address returns the bech32 address with the configured prefix.
func (s *Signer) Address() string {
	return s.bech32
}

// AccAddress returns the raw account address bytes.
func (s *Signer) AccAddress() sdk.AccAddress {
	return s.addr
}

// PubKey returns the secp256k1 public key.
func (s *Signer) PubKey() cryptotypes.PubKey {
	return s.pubKey
}

// HDPath returns the derivation path used for the key.
func (s *Signer) HDPath() string {
	return s.hdPath
}

// Keyring exposes the in-memory keyring for transaction signing.
func (s *Signer) Keyring() keyring.Keyring {
	return s.kr
}

// Encoding returns the encoding config bound to the signer's prefix.
func (s *Signer) Encoding() EncodingConfig {
	return s.enc
}

// Sign signs raw bytes in direct mode.
func (s *Signer) Sign(msg []byte) ([]byte, error) {
	sig, _, err := s.kr.Sign(SignerUID, msg, signing.SignMode_SIGN_MODE_DIRECT)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return sig, nil
}
