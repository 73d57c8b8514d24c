package tx

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"pooledger/crypto"
)

func sampleTx() *Transaction {
	return &Transaction{
		Instructions: []Instruction{{
			Program:  crypto.NamedKey("program"),
			Accounts: []crypto.Key{crypto.NamedKey("a"), crypto.NamedKey("b")},
			Data:     []byte{7, 1, 2},
		}},
		Nonce: 9,
	}
}

func TestSignAndRecover(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	tx := sampleTx()
	require.NoError(t, tx.Sign(key))
	require.NoError(t, tx.Validate())

	raw, err := json.Marshal(tx)
	require.NoError(t, err)
	var decoded Transaction
	require.NoError(t, json.Unmarshal(raw, &decoded))

	signer, err := decoded.Signer()
	require.NoError(t, err)
	require.Equal(t, key.Key(), signer)

	h1, err := tx.Hash()
	require.NoError(t, err)
	h2, err := decoded.Hash()
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestTamperingChangesSigner(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	tx := sampleTx()
	require.NoError(t, tx.Sign(key))

	tampered := &Transaction{Instructions: tx.Instructions, Nonce: tx.Nonce + 1, Signature: tx.Signature}
	signer, err := tampered.Signer()
	if err == nil {
		require.NotEqual(t, key.Key(), signer)
	}
}

func TestValidate(t *testing.T) {
	require.ErrorIs(t, (&Transaction{}).Validate(), ErrNoInstructions)
	require.ErrorIs(t, sampleTx().Validate(), ErrUnsigned)
	big := &Transaction{Instructions: make([]Instruction, MaxInstructions+1), Signature: []byte{1}}
	require.True(t, errors.Is(big.Validate(), ErrTooManyInstrs))
}

func TestParseHash(t *testing.T) {
	var hash [32]byte
	hash[0] = 0xab
	parsed, err := ParseHash(FormatHash(hash))
	require.NoError(t, err)
	require.Equal(t, hash, parsed)
	_, err = ParseHash("0x1234")
	require.Error(t, err)
}
