package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyPrefix is the human-readable part used when rendering keys as bech32.
const KeyPrefix = "pl"

// KeyLength is the size in bytes of every party and record identifier.
const KeyLength = 32

var (
	ErrInvalidKeyLength = errors.New("crypto: key must be 32 bytes")
	ErrInvalidSignature = errors.New("crypto: invalid signature")
)

// Key is an opaque 32-byte identifier. Parties (lenders, borrowers,
// guarantors), programs and records are all addressed by a Key.
type Key [KeyLength]byte

// KeyFromBytes copies b into a Key, rejecting inputs of the wrong size.
func KeyFromBytes(b []byte) (Key, error) {
	var k Key
	if len(b) != KeyLength {
		return k, fmt.Errorf("%w (got %d)", ErrInvalidKeyLength, len(b))
	}
	copy(k[:], b)
	return k, nil
}

// String renders the key as bech32 with the "pl" prefix.
func (k Key) String() string {
	conv, err := bech32.ConvertBits(k[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(KeyPrefix, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Hex returns the 0x-prefixed hex form of the key.
func (k Key) Hex() string { return "0x" + hex.EncodeToString(k[:]) }

func (k Key) Bytes() []byte {
	out := make([]byte, KeyLength)
	copy(out, k[:])
	return out
}

func (k Key) IsZero() bool { return k == Key{} }

// MarshalText encodes the key as bech32 so keys render readably in JSON.
func (k Key) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText accepts either the bech32 or the 0x-hex representation.
func (k *Key) UnmarshalText(text []byte) error {
	decoded, err := DecodeKey(string(text))
	if err != nil {
		return err
	}
	*k = decoded
	return nil
}

// DecodeKey parses a bech32 ("pl1...") or 0x-prefixed hex key.
func DecodeKey(s string) (Key, error) {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		raw, err := hex.DecodeString(trimmed[2:])
		if err != nil {
			return Key{}, fmt.Errorf("crypto: decode hex key: %w", err)
		}
		return KeyFromBytes(raw)
	}
	prefix, decoded, err := bech32.Decode(trimmed)
	if err != nil {
		return Key{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if prefix != KeyPrefix {
		return Key{}, fmt.Errorf("crypto: unexpected key prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Key{}, fmt.Errorf("error converting bits: %w", err)
	}
	return KeyFromBytes(conv)
}

// NamedKey derives a well-known key from a label. Built-in program ids are
// produced this way.
func NamedKey(label string) Key {
	return Key(crypto.Keccak256Hash([]byte("pooledger/name"), []byte(label)))
}

// DeriveAddress computes the record address owned by program for the given
// base key and seed. The same inputs always produce the same address, which
// lets a program verify that a record belongs to a party without storing an
// explicit back-reference.
func DeriveAddress(base Key, seed string, program Key) Key {
	return Key(crypto.Keccak256Hash(base[:], []byte(seed), program[:], []byte("pooledger/address")))
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

// Key returns the 32-byte party key controlled by this private key.
func (k *PrivateKey) Key() Key {
	return KeyFromPublic(&k.PrivateKey.PublicKey)
}

// Sign produces a 65-byte recoverable signature over a 32-byte digest.
func (k *PrivateKey) Sign(digest []byte) ([]byte, error) {
	return crypto.Sign(digest, k.PrivateKey)
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// KeyFromPublic maps a secp256k1 public key to its party key: the keccak256
// hash of the uncompressed point without the format byte.
func KeyFromPublic(pub *ecdsa.PublicKey) Key {
	raw := crypto.FromECDSAPub(pub)
	return Key(crypto.Keccak256Hash(raw[1:]))
}

// RecoverSigner returns the party key that produced sig over digest.
func RecoverSigner(digest, sig []byte) (Key, error) {
	if len(sig) != crypto.SignatureLength {
		return Key{}, ErrInvalidSignature
	}
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return KeyFromPublic(pub), nil
}
