package poollend

import (
	"errors"
	"fmt"
	"time"

	"pooledger/core/events"
	"pooledger/core/state"
	"pooledger/crypto"
	nativecommon "pooledger/native/common"
	"pooledger/native/token"
)

var errNilState = errors.New("poollend engine: state not configured")

var _ token.Authority = crypto.VaultSigner{}

type engineState interface {
	Record(addr crypto.Key) (*state.Record, error)
	PutRecord(addr crypto.Key, rec *state.Record) error
}

type tokenLedger interface {
	Balance(addr crypto.Key) (uint64, error)
	Custodian(addr crypto.Key) (crypto.Key, error)
	Transfer(from, to crypto.Key, auth token.Authority, invoker crypto.Key, amount uint64) error
	SetCustodian(addr crypto.Key, auth token.Authority, invoker, next crypto.Key) error
}

// Engine executes pooled-lending operations. Every record the engine mutates
// must be owned by its program id. All writes go through the configured
// state, which the host stages and commits atomically per invocation.
type Engine struct {
	state        engineState
	tokens       tokenLedger
	program      crypto.Key
	rent         state.Rent
	vault        crypto.VaultSigner
	airdropVault crypto.VaultSigner
	emitter      events.Emitter
	nowFn        func() int64
	pauses       nativecommon.PauseView
}

// NewEngine constructs an engine for program. Vault signers are derived from
// the fixed seeds and the program id.
func NewEngine(program crypto.Key, rent state.Rent) *Engine {
	return &Engine{
		program:      program,
		rent:         rent,
		vault:        crypto.DeriveVaultSigner(VaultSeed, program),
		airdropVault: crypto.DeriveVaultSigner(AirdropVaultSeed, program),
		emitter:      events.NoopEmitter{},
		nowFn:        func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(s engineState) { e.state = s }

// SetTokens wires the token transfer service.
func (e *Engine) SetTokens(t tokenLedger) { e.tokens = t }

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Program returns the program id.
func (e *Engine) Program() crypto.Key { return e.program }

// VaultSigner returns the derived custodian of the lending vault.
func (e *Engine) VaultSigner() crypto.VaultSigner { return e.vault }

// AirdropVaultSigner returns the derived custodian of the airdrop vault.
func (e *Engine) AirdropVaultSigner() crypto.VaultSigner { return e.airdropVault }

func (e *Engine) emit(p events.Payload) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(p.Event())
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// Execute decodes and applies one instruction.
func (e *Engine) Execute(inv nativecommon.Invocation) error {
	if e.state == nil || e.tokens == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	ins, err := DecodeInstruction(inv.Data)
	if err != nil {
		return err
	}
	c := &call{inv: inv, cursor: inv.Cursor()}
	switch ins.Tag {
	case TagContribute:
		return e.contribute(c, ins.Amount, ins.LenderID)
	case TagWithdrawLenderBalance:
		return e.withdrawLenderBalance(c, ins.LenderID)
	case TagWithdrawCollected:
		return e.withdrawCollected(c)
	case TagTransferVaultOwnership:
		return e.transferVaultOwnership(c, false)
	case TagInitializeLenderLedger:
		return e.initializeLedger(c)
	case TagInitializeBorrowerRecord:
		return e.initializeBorrower(c)
	case TagInitializeGuarantorRecord:
		return e.initializeGuarantor(c)
	case TagPayInstallment:
		return e.payInstallment(c, ins.Amount)
	case TagInitializeLoan:
		return e.initializeLoan(c, LoanParams{
			Target:             ins.TargetAmount,
			InstallmentCount:   ins.InstallmentCount,
			FundraisingDays:    ins.FundraisingDays,
			FirstRepaymentDays: ins.FirstRepaymentDays,
		})
	case TagAirdropTestFunds:
		return e.airdrop(c)
	case TagTransferAirdropVaultOwnership:
		return e.transferVaultOwnership(c, true)
	case TagReturnFundsToLenders, TagCloseLoanRecord:
		// Accepted without effect.
		return nil
	default:
		return ErrInvalidInstruction
	}
}

// call tracks the account cursor of one invocation.
type call struct {
	inv    nativecommon.Invocation
	cursor *nativecommon.AccountCursor
}

func (c *call) next() (crypto.Key, error) {
	key, err := c.cursor.Next()
	if err != nil {
		return crypto.Key{}, fmt.Errorf("%w: %v", ErrNotEnoughAccounts, err)
	}
	return key, nil
}

func (c *call) signer() (crypto.Key, error) {
	key, err := c.next()
	if err != nil {
		return crypto.Key{}, err
	}
	if !c.inv.IsSigner(key) {
		return crypto.Key{}, ErrMissingSignature
	}
	return key, nil
}

func (c *call) accounts(n int) ([]crypto.Key, error) {
	out := make([]crypto.Key, n)
	for i := range out {
		key, err := c.next()
		if err != nil {
			return nil, err
		}
		out[i] = key
	}
	return out, nil
}

// loadOwned fetches a program-owned record of exactly size bytes.
func (e *Engine) loadOwned(addr crypto.Key, size int) (*state.Record, error) {
	rec, err := e.state.Record(addr)
	if err != nil {
		if errors.Is(err, state.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRecordMissing, addr)
		}
		return nil, err
	}
	if rec.Owner != e.program {
		return nil, fmt.Errorf("%w: %s", ErrNotProgramOwned, addr)
	}
	if len(rec.Data) != size {
		return nil, fmt.Errorf("%w: %s has %d bytes, want %d", ErrRecordSize, addr, len(rec.Data), size)
	}
	return rec, nil
}

// loadForInit additionally applies the durability precondition.
func (e *Engine) loadForInit(addr crypto.Key, size int) (*state.Record, error) {
	rec, err := e.loadOwned(addr, size)
	if err != nil {
		return nil, err
	}
	if !e.rent.IsExempt(rec.Deposit, len(rec.Data)) {
		return nil, ErrNotRentExempt
	}
	return rec, nil
}

func (e *Engine) put(addr crypto.Key, rec *state.Record, data []byte) error {
	rec.Data = data
	return e.state.PutRecord(addr, rec)
}

// requireVault confirms the token account at vault is custodied by signer.
func (e *Engine) requireVault(vault crypto.Key, signer crypto.VaultSigner) error {
	custodian, err := e.tokens.Custodian(vault)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	if custodian != signer.Key() {
		return ErrVaultCustody
	}
	return nil
}

// transferMeasured moves amount from -> to and returns the realised change
// of the measured account's balance: an increase when measureInbound,
// otherwise a decrease.
func (e *Engine) transferMeasured(from, to crypto.Key, auth token.Authority, amount uint64, measure crypto.Key, measureInbound bool) (uint64, error) {
	before, err := e.tokens.Balance(measure)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	if err := e.tokens.Transfer(from, to, auth, e.program, amount); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	after, err := e.tokens.Balance(measure)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	if measureInbound {
		if after < before {
			return 0, ErrAmountMismatch
		}
		return after - before, nil
	}
	if after > before {
		return 0, ErrAmountMismatch
	}
	return before - after, nil
}
