package events

import "pooledger/crypto"

const (
	TypeTokenTransfer        = "token.transfer"
	TypeTokenMint            = "token.mint"
	TypeTokenCustodianChange = "token.custodian_changed"
)

// TokenTransfer is emitted whenever units move between two token accounts.
type TokenTransfer struct {
	From    crypto.Key
	To      crypto.Key
	Amount  uint64
	Invoker crypto.Key
}

func (TokenTransfer) EventType() string { return TypeTokenTransfer }

func (e TokenTransfer) Event() Event {
	attrs := map[string]string{
		"from":   e.From.String(),
		"to":     e.To.String(),
		"amount": uintToString(e.Amount),
	}
	if !e.Invoker.IsZero() {
		attrs["invoker"] = e.Invoker.String()
	}
	return Event{Type: TypeTokenTransfer, Attributes: attrs}
}

type TokenMint struct {
	Account crypto.Key
	Amount  uint64
}

func (TokenMint) EventType() string { return TypeTokenMint }

func (e TokenMint) Event() Event {
	return Event{
		Type: TypeTokenMint,
		Attributes: map[string]string{
			"account": e.Account.String(),
			"amount":  uintToString(e.Amount),
		},
	}
}

type TokenCustodianChanged struct {
	Account  crypto.Key
	Previous crypto.Key
	Current  crypto.Key
}

func (TokenCustodianChanged) EventType() string { return TypeTokenCustodianChange }

func (e TokenCustodianChanged) Event() Event {
	return Event{
		Type: TypeTokenCustodianChange,
		Attributes: map[string]string{
			"account":  e.Account.String(),
			"previous": e.Previous.String(),
			"current":  e.Current.String(),
		},
	}
}
