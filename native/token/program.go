package token

import (
	"encoding/binary"
	"errors"
	"fmt"

	"pooledger/crypto"
	nativecommon "pooledger/native/common"
)

// ModuleName is used for pause guards and logging.
const ModuleName = "token"

// Instruction tags understood by the token program.
const (
	TagInitializeAccount byte = 0
	TagMint              byte = 1
	TagTransfer          byte = 2
	TagSetCustodian      byte = 3
)

var (
	ErrUnknownInstruction = errors.New("token: unknown instruction")
	ErrMalformedPayload   = errors.New("token: malformed instruction payload")
	ErrMissingSignature   = errors.New("token: required signer missing")
)

// Execute applies a single token instruction.
//
//	0 InitializeAccount  accounts: payer*, account           data: custodian [32]
//	1 Mint               accounts: authority*, account       data: amount u64
//	2 Transfer           accounts: custodian*, from, to      data: amount u64
//	3 SetCustodian       accounts: custodian*, account       data: next [32]
func (l *Ledger) Execute(inv nativecommon.Invocation) error {
	if len(inv.Data) == 0 {
		return ErrMalformedPayload
	}
	tag, payload := inv.Data[0], inv.Data[1:]
	cursor := inv.Cursor()
	signer, err := cursor.Next()
	if err != nil {
		return err
	}
	if !inv.IsSigner(signer) {
		return ErrMissingSignature
	}
	auth := nativecommon.SignerAuthority{signer}

	switch tag {
	case TagInitializeAccount:
		account, err := cursor.Next()
		if err != nil {
			return err
		}
		custodian, err := readKey(payload)
		if err != nil {
			return err
		}
		return l.InitializeAccount(account, custodian)
	case TagMint:
		account, err := cursor.Next()
		if err != nil {
			return err
		}
		amount, err := readAmount(payload)
		if err != nil {
			return err
		}
		return l.Mint(account, auth, inv.Program, amount)
	case TagTransfer:
		from, err := cursor.Next()
		if err != nil {
			return err
		}
		to, err := cursor.Next()
		if err != nil {
			return err
		}
		amount, err := readAmount(payload)
		if err != nil {
			return err
		}
		return l.Transfer(from, to, auth, inv.Program, amount)
	case TagSetCustodian:
		account, err := cursor.Next()
		if err != nil {
			return err
		}
		next, err := readKey(payload)
		if err != nil {
			return err
		}
		return l.SetCustodian(account, auth, inv.Program, next)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownInstruction, tag)
	}
}

func readKey(payload []byte) (crypto.Key, error) {
	if len(payload) < crypto.KeyLength {
		return crypto.Key{}, ErrMalformedPayload
	}
	return crypto.KeyFromBytes(payload[:crypto.KeyLength])
}

func readAmount(payload []byte) (uint64, error) {
	if len(payload) < 8 {
		return 0, ErrMalformedPayload
	}
	return binary.LittleEndian.Uint64(payload[:8]), nil
}

// EncodeInitializeAccount builds the instruction data for InitializeAccount.
func EncodeInitializeAccount(custodian crypto.Key) []byte {
	return append([]byte{TagInitializeAccount}, custodian[:]...)
}

// EncodeMint builds the instruction data for Mint.
func EncodeMint(amount uint64) []byte { return encodeAmount(TagMint, amount) }

// EncodeTransfer builds the instruction data for Transfer.
func EncodeTransfer(amount uint64) []byte { return encodeAmount(TagTransfer, amount) }

// EncodeSetCustodian builds the instruction data for SetCustodian.
func EncodeSetCustodian(next crypto.Key) []byte {
	return append([]byte{TagSetCustodian}, next[:]...)
}

func encodeAmount(tag byte, amount uint64) []byte {
	out := make([]byte, 9)
	out[0] = tag
	binary.LittleEndian.PutUint64(out[1:], amount)
	return out
}
