package tx

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"

	"pooledger/crypto"
)

var (
	ErrNoInstructions = errors.New("tx: transaction carries no instructions")
	ErrUnsigned       = errors.New("tx: transaction is not signed")
	ErrTooManyInstrs  = errors.New("tx: too many instructions")
)

// MaxInstructions bounds the number of instructions in one transaction.
const MaxInstructions = 16

// Instruction routes Data to Program with the listed account keys.
type Instruction struct {
	Program  crypto.Key    `json:"program"`
	Accounts []crypto.Key  `json:"accounts"`
	Data     hexutil.Bytes `json:"data"`
}

// Transaction is an ordered list of instructions authorised by a single
// secp256k1 signature. Every instruction runs against the same staged state
// and the transaction commits only if all succeed.
type Transaction struct {
	Instructions []Instruction `json:"instructions"`
	Nonce        uint64        `json:"nonce"`
	Signature    hexutil.Bytes `json:"signature,omitempty"`

	signer *crypto.Key
}

type rlpInstruction struct {
	Program  []byte
	Accounts [][]byte
	Data     []byte
}

func (tx *Transaction) unsignedPayload() ([]byte, error) {
	instrs := make([]rlpInstruction, len(tx.Instructions))
	for i, ins := range tx.Instructions {
		accounts := make([][]byte, len(ins.Accounts))
		for j, acct := range ins.Accounts {
			accounts[j] = acct.Bytes()
		}
		instrs[i] = rlpInstruction{Program: ins.Program.Bytes(), Accounts: accounts, Data: ins.Data}
	}
	return rlp.EncodeToBytes(struct {
		Instructions []rlpInstruction
		Nonce        uint64
	}{instrs, tx.Nonce})
}

// SigningHash is the digest the signer signs: blake3 over the RLP encoding of
// the instructions and nonce.
func (tx *Transaction) SigningHash() ([32]byte, error) {
	payload, err := tx.unsignedPayload()
	if err != nil {
		return [32]byte{}, err
	}
	return blake3.Sum256(payload), nil
}

// Hash identifies the signed transaction and is used for replay protection.
func (tx *Transaction) Hash() ([32]byte, error) {
	payload, err := tx.unsignedPayload()
	if err != nil {
		return [32]byte{}, err
	}
	return blake3.Sum256(append(payload, tx.Signature...)), nil
}

// Validate performs stateless shape checks.
func (tx *Transaction) Validate() error {
	if len(tx.Instructions) == 0 {
		return ErrNoInstructions
	}
	if len(tx.Instructions) > MaxInstructions {
		return fmt.Errorf("%w: %d > %d", ErrTooManyInstrs, len(tx.Instructions), MaxInstructions)
	}
	if len(tx.Signature) == 0 {
		return ErrUnsigned
	}
	return nil
}

// Sign attaches a recoverable signature over SigningHash.
func (tx *Transaction) Sign(key *crypto.PrivateKey) error {
	digest, err := tx.SigningHash()
	if err != nil {
		return err
	}
	sig, err := key.Sign(digest[:])
	if err != nil {
		return err
	}
	tx.Signature = sig
	signer := key.Key()
	tx.signer = &signer
	return nil
}

// Signer recovers the 32-byte key that signed the transaction.
func (tx *Transaction) Signer() (crypto.Key, error) {
	if tx.signer != nil {
		return *tx.signer, nil
	}
	if len(tx.Signature) == 0 {
		return crypto.Key{}, ErrUnsigned
	}
	digest, err := tx.SigningHash()
	if err != nil {
		return crypto.Key{}, err
	}
	signer, err := crypto.RecoverSigner(digest[:], tx.Signature)
	if err != nil {
		return crypto.Key{}, err
	}
	tx.signer = &signer
	return signer, nil
}

// FormatHash renders a transaction hash as 0x-prefixed lower-case hex.
func FormatHash(hash [32]byte) string {
	return "0x" + hex.EncodeToString(hash[:])
}

// ParseHash normalises and validates a transaction hash expressed as a hex
// string.
func ParseHash(ref string) ([32]byte, error) {
	var hash [32]byte
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return hash, fmt.Errorf("tx: hash required")
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
	}
	if len(trimmed) != 64 {
		return hash, fmt.Errorf("tx: hash must be 32 bytes (got %d hex chars)", len(trimmed))
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return hash, fmt.Errorf("tx: decode hash: %w", err)
	}
	copy(hash[:], decoded)
	return hash, nil
}
