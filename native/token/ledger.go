package token

import (
	"errors"
	"fmt"
	"math"

	"pooledger/core/events"
	"pooledger/core/state"
	"pooledger/crypto"
)

var (
	ErrNotTokenAccount        = errors.New("token: record is not owned by the token program")
	ErrAccountNotInitialized  = errors.New("token: account not initialised")
	ErrAccountInitialized     = errors.New("token: account already initialised")
	ErrUnauthorized           = errors.New("token: authority does not control account")
	ErrInsufficientFunds      = errors.New("token: insufficient funds")
	ErrBalanceOverflow        = errors.New("token: balance overflow")
	ErrZeroCustodian          = errors.New("token: custodian must not be zero")
	ErrMintAuthorityNotConfig = errors.New("token: mint authority not configured")
	errNilState               = errors.New("token: state not configured")
)

// Authority decides whether an outbound movement from an account held by
// custodian is permitted when requested by invoker. Signer sets and derived
// vault signers both satisfy it.
type Authority interface {
	Authorizes(custodian, invoker crypto.Key) bool
}

type ledgerState interface {
	Record(addr crypto.Key) (*state.Record, error)
	PutRecord(addr crypto.Key, rec *state.Record) error
}

// Ledger is the fungible-token transfer service. Balances live in records
// owned by the token program id.
type Ledger struct {
	state         ledgerState
	program       crypto.Key
	mintAuthority crypto.Key
	emitter       events.Emitter
}

// NewLedger creates a ledger for the token program id.
func NewLedger(program crypto.Key) *Ledger {
	return &Ledger{program: program, emitter: events.NoopEmitter{}}
}

// Program returns the token program id.
func (l *Ledger) Program() crypto.Key { return l.program }

// SetState wires the ledger to the record store.
func (l *Ledger) SetState(s ledgerState) { l.state = s }

// SetMintAuthority configures the key allowed to mint new units.
func (l *Ledger) SetMintAuthority(key crypto.Key) { l.mintAuthority = key }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) load(addr crypto.Key) (*state.Record, Account, error) {
	if l.state == nil {
		return nil, Account{}, errNilState
	}
	rec, err := l.state.Record(addr)
	if err != nil {
		return nil, Account{}, fmt.Errorf("token: load %s: %w", addr, err)
	}
	if rec.Owner != l.program {
		return nil, Account{}, ErrNotTokenAccount
	}
	acct, err := decodeAccount(rec.Data)
	if err != nil {
		return nil, Account{}, err
	}
	return rec, acct, nil
}

func (l *Ledger) loadInitialized(addr crypto.Key) (*state.Record, Account, error) {
	rec, acct, err := l.load(addr)
	if err != nil {
		return nil, Account{}, err
	}
	if !acct.Initialized() {
		return nil, Account{}, ErrAccountNotInitialized
	}
	return rec, acct, nil
}

func (l *Ledger) store(addr crypto.Key, rec *state.Record, acct Account) error {
	rec.Data = encodeAccount(acct)
	return l.state.PutRecord(addr, rec)
}

// Account returns the decoded token account at addr.
func (l *Ledger) Account(addr crypto.Key) (Account, error) {
	_, acct, err := l.loadInitialized(addr)
	return acct, err
}

// Balance returns the current balance of addr.
func (l *Ledger) Balance(addr crypto.Key) (uint64, error) {
	acct, err := l.Account(addr)
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// Custodian returns the key that controls outbound movements from addr.
func (l *Ledger) Custodian(addr crypto.Key) (crypto.Key, error) {
	acct, err := l.Account(addr)
	if err != nil {
		return crypto.Key{}, err
	}
	return acct.Custodian, nil
}

// InitializeAccount binds a freshly allocated record to custodian.
func (l *Ledger) InitializeAccount(addr, custodian crypto.Key) error {
	if custodian.IsZero() {
		return ErrZeroCustodian
	}
	rec, acct, err := l.load(addr)
	if err != nil {
		return err
	}
	if acct.Initialized() {
		return ErrAccountInitialized
	}
	return l.store(addr, rec, Account{Custodian: custodian})
}

// Transfer moves amount from one account to another. The source custodian
// must be authorised by auth for the given invoker.
func (l *Ledger) Transfer(from, to crypto.Key, auth Authority, invoker crypto.Key, amount uint64) error {
	fromRec, fromAcct, err := l.loadInitialized(from)
	if err != nil {
		return err
	}
	if auth == nil || !auth.Authorizes(fromAcct.Custodian, invoker) {
		return ErrUnauthorized
	}
	toRec, toAcct, err := l.loadInitialized(to)
	if err != nil {
		return err
	}
	if fromAcct.Balance < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, fromAcct.Balance, amount)
	}
	if from == to {
		return nil
	}
	if toAcct.Balance > math.MaxUint64-amount {
		return ErrBalanceOverflow
	}
	fromAcct.Balance -= amount
	toAcct.Balance += amount
	if err := l.store(from, fromRec, fromAcct); err != nil {
		return err
	}
	if err := l.store(to, toRec, toAcct); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenTransfer{From: from, To: to, Amount: amount, Invoker: invoker}.Event())
	return nil
}

// Mint creates amount new units in addr. Only the configured mint authority
// may mint.
func (l *Ledger) Mint(addr crypto.Key, auth Authority, invoker crypto.Key, amount uint64) error {
	if l.mintAuthority.IsZero() {
		return ErrMintAuthorityNotConfig
	}
	if auth == nil || !auth.Authorizes(l.mintAuthority, invoker) {
		return ErrUnauthorized
	}
	rec, acct, err := l.loadInitialized(addr)
	if err != nil {
		return err
	}
	if acct.Balance > math.MaxUint64-amount {
		return ErrBalanceOverflow
	}
	acct.Balance += amount
	if err := l.store(addr, rec, acct); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenMint{Account: addr, Amount: amount}.Event())
	return nil
}

// SetCustodian hands control of addr to next. The current custodian must be
// authorised by auth.
func (l *Ledger) SetCustodian(addr crypto.Key, auth Authority, invoker, next crypto.Key) error {
	if next.IsZero() {
		return ErrZeroCustodian
	}
	rec, acct, err := l.loadInitialized(addr)
	if err != nil {
		return err
	}
	if auth == nil || !auth.Authorizes(acct.Custodian, invoker) {
		return ErrUnauthorized
	}
	previous := acct.Custodian
	acct.Custodian = next
	if err := l.store(addr, rec, acct); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenCustodianChanged{Account: addr, Previous: previous, Current: next}.Event())
	return nil
}
