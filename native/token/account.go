package token

import (
	"encoding/binary"
	"errors"

	"pooledger/crypto"
)

// AccountSize is the fixed byte width of a token account record.
const AccountSize = crypto.KeyLength + 8

var errShortAccount = errors.New("token: account record truncated")

// Account is a single-asset balance held under a custodian. Only a party
// that the custodian authorises may move funds out.
type Account struct {
	Custodian crypto.Key
	Balance   uint64
}

func (a Account) Initialized() bool { return !a.Custodian.IsZero() }

func decodeAccount(data []byte) (Account, error) {
	var acct Account
	if len(data) < AccountSize {
		return acct, errShortAccount
	}
	copy(acct.Custodian[:], data[:crypto.KeyLength])
	acct.Balance = binary.LittleEndian.Uint64(data[crypto.KeyLength:AccountSize])
	return acct, nil
}

func encodeAccount(acct Account) []byte {
	out := make([]byte, AccountSize)
	copy(out, acct.Custodian[:])
	binary.LittleEndian.PutUint64(out[crypto.KeyLength:], acct.Balance)
	return out
}
