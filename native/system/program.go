package system

import (
	"encoding/binary"
	"errors"
	"fmt"

	"pooledger/core/state"
	"pooledger/crypto"
	nativecommon "pooledger/native/common"
)

// ModuleName is used for pause guards and logging.
const ModuleName = "system"

// MaxRecordSize caps a single allocation. The largest record in use is the
// lender ledger at a little over 3 MiB.
const MaxRecordSize = 4 << 20

// TagCreateRecord is the only instruction the system program understands.
const TagCreateRecord byte = 0

var (
	ErrUnknownInstruction = errors.New("system: unknown instruction")
	ErrMalformedPayload   = errors.New("system: malformed instruction payload")
	ErrMissingSignature   = errors.New("system: payer must sign")
	ErrAddressMismatch    = errors.New("system: record address does not match derivation")
	ErrRecordExists       = errors.New("system: record already exists")
	ErrInvalidSize        = errors.New("system: invalid record size")
	errNilState           = errors.New("system: state not configured")
)

type programState interface {
	Exists(addr crypto.Key) (bool, error)
	PutRecord(addr crypto.Key, rec *state.Record) error
}

// Program allocates zero-filled records at seed-derived addresses and
// assigns them to an owning program.
type Program struct {
	state programState
	rent  state.Rent
}

func NewProgram(rent state.Rent) *Program {
	return &Program{rent: rent}
}

func (p *Program) SetState(s programState) { p.state = s }

// Rent returns the durability parameters used when funding records.
func (p *Program) Rent() state.Rent { return p.rent }

// CreateRecordParams describes one allocation. A zero Deposit is replaced by
// the rent minimum for Size.
type CreateRecordParams struct {
	Payer   crypto.Key
	Seed    string
	Size    uint64
	Deposit uint64
	Owner   crypto.Key
}

// CreateRecord allocates the record and returns its address.
func (p *Program) CreateRecord(addr crypto.Key, params CreateRecordParams) error {
	if p.state == nil {
		return errNilState
	}
	if params.Size == 0 || params.Size > MaxRecordSize {
		return fmt.Errorf("%w: %d", ErrInvalidSize, params.Size)
	}
	if expected := crypto.DeriveAddress(params.Payer, params.Seed, params.Owner); expected != addr {
		return ErrAddressMismatch
	}
	exists, err := p.state.Exists(addr)
	if err != nil {
		return err
	}
	if exists {
		return ErrRecordExists
	}
	deposit := params.Deposit
	if deposit == 0 {
		deposit = p.rent.MinimumDeposit(int(params.Size))
	}
	return p.state.PutRecord(addr, &state.Record{
		Owner:   params.Owner,
		Deposit: deposit,
		Data:    make([]byte, params.Size),
	})
}

// Execute applies a system instruction.
//
//	0 CreateRecord  accounts: payer*, record
//	                data: size u64 | deposit u64 | owner [32] | seed bytes
func (p *Program) Execute(inv nativecommon.Invocation) error {
	if len(inv.Data) == 0 {
		return ErrMalformedPayload
	}
	if inv.Data[0] != TagCreateRecord {
		return fmt.Errorf("%w: %d", ErrUnknownInstruction, inv.Data[0])
	}
	payload := inv.Data[1:]
	if len(payload) < 16+crypto.KeyLength {
		return ErrMalformedPayload
	}
	cursor := inv.Cursor()
	payer, err := cursor.Next()
	if err != nil {
		return err
	}
	if !inv.IsSigner(payer) {
		return ErrMissingSignature
	}
	addr, err := cursor.Next()
	if err != nil {
		return err
	}
	owner, err := crypto.KeyFromBytes(payload[16 : 16+crypto.KeyLength])
	if err != nil {
		return err
	}
	return p.CreateRecord(addr, CreateRecordParams{
		Payer:   payer,
		Size:    binary.LittleEndian.Uint64(payload[0:8]),
		Deposit: binary.LittleEndian.Uint64(payload[8:16]),
		Owner:   owner,
		Seed:    string(payload[16+crypto.KeyLength:]),
	})
}

// EncodeCreateRecord builds CreateRecord instruction data.
func EncodeCreateRecord(size, deposit uint64, owner crypto.Key, seed string) []byte {
	out := make([]byte, 1+16+crypto.KeyLength+len(seed))
	out[0] = TagCreateRecord
	binary.LittleEndian.PutUint64(out[1:9], size)
	binary.LittleEndian.PutUint64(out[9:17], deposit)
	copy(out[17:17+crypto.KeyLength], owner[:])
	copy(out[17+crypto.KeyLength:], seed)
	return out
}
