package common

import (
	"errors"
	"fmt"

	"pooledger/crypto"
)

// ErrNotEnoughAccounts is returned when an instruction names fewer accounts
// than the operation requires.
var ErrNotEnoughAccounts = errors.New("not enough account keys")

// Invocation is one instruction routed to a program. Signers holds the keys
// whose signatures were verified by the host.
type Invocation struct {
	Program  crypto.Key
	Signers  []crypto.Key
	Accounts []crypto.Key
	Data     []byte
}

// IsSigner reports whether key signed the enclosing transaction.
func (inv Invocation) IsSigner(key crypto.Key) bool {
	for _, signer := range inv.Signers {
		if signer == key {
			return true
		}
	}
	return false
}

// Cursor returns a cursor over the invocation's account list.
func (inv Invocation) Cursor() *AccountCursor {
	return &AccountCursor{accounts: inv.Accounts}
}

// AccountCursor hands out accounts in declaration order.
type AccountCursor struct {
	accounts []crypto.Key
	next     int
}

// Next returns the next account or ErrNotEnoughAccounts.
func (c *AccountCursor) Next() (crypto.Key, error) {
	if c.next >= len(c.accounts) {
		return crypto.Key{}, fmt.Errorf("%w: want index %d of %d", ErrNotEnoughAccounts, c.next, len(c.accounts))
	}
	key := c.accounts[c.next]
	c.next++
	return key, nil
}

// SignerAuthority authorises any custodian that signed the transaction.
type SignerAuthority []crypto.Key

func (s SignerAuthority) Authorizes(custodian, _ crypto.Key) bool {
	if custodian.IsZero() {
		return false
	}
	for _, signer := range s {
		if signer == custodian {
			return true
		}
	}
	return false
}
