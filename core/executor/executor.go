package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"pooledger/core/events"
	"pooledger/core/state"
	"pooledger/core/tx"
	"pooledger/crypto"
	nativecommon "pooledger/native/common"
	"pooledger/native/poollend"
	"pooledger/native/system"
	"pooledger/native/token"
	"pooledger/observability"
	"pooledger/storage"
)

var (
	ErrReplay         = errors.New("executor: transaction already committed")
	ErrUnknownProgram = errors.New("executor: unknown program")
	ErrQuotaExceeded  = errors.New("executor: signer quota exceeded")
	ErrInvalidTx      = errors.New("executor: invalid transaction")
)

var (
	// SystemProgramID addresses the record allocation program.
	SystemProgramID = crypto.NamedKey("pooledger/system")
	// TokenProgramID addresses the token program.
	TokenProgramID = crypto.NamedKey("pooledger/token")
	// DefaultLendingProgramID is used when the configuration does not name
	// another lending program seed.
	DefaultLendingProgramID = crypto.NamedKey("pooledger/poollend")
)

// Status is the terminal state of a submitted transaction.
type Status string

const (
	StatusCommitted Status = "committed"
	StatusFailed    Status = "failed"
)

// Receipt describes the outcome of one transaction. Failed receipts name the
// instruction that aborted the transaction; none of its writes persist.
type Receipt struct {
	Hash              string         `json:"hash"`
	Signer            crypto.Key     `json:"signer"`
	Status            Status         `json:"status"`
	Error             string         `json:"error,omitempty"`
	Kind              string         `json:"kind,omitempty"`
	FailedInstruction *int           `json:"failedInstruction,omitempty"`
	Program           string         `json:"program,omitempty"`
	Instruction       string         `json:"instruction,omitempty"`
	Events            []events.Event `json:"events,omitempty"`
	Timestamp         int64          `json:"timestamp"`
}

// Committed reports whether the transaction's writes were persisted.
func (r *Receipt) Committed() bool { return r != nil && r.Status == StatusCommitted }

// Journal persists receipts for later query. Implementations must tolerate
// being called with failed receipts.
type Journal interface {
	RecordReceipt(ctx context.Context, receipt *Receipt) error
}

// Config selects program ids and the ledger-wide policies.
type Config struct {
	LendingProgram crypto.Key
	Rent           state.Rent
	MintAuthority  crypto.Key
	Paused         []string
	Quota          nativecommon.Quota
}

type program interface {
	Execute(inv nativecommon.Invocation) error
}

// Executor is the host runtime. It serialises transactions, stages every write
// in an overlay, and commits the overlay together with the replay marker in a
// single batch. Events buffered during execution are only published after the
// commit succeeds.
type Executor struct {
	mu sync.Mutex

	db      storage.Database
	manager *state.Manager

	system  *system.Program
	tokens  *token.Ledger
	lending *poollend.Engine
	reader  *token.Ledger

	pauses    nativecommon.PauseView
	quota     *nativecommon.QuotaTracker
	publisher events.Emitter
	journal   Journal
	nowFn     func() int64
	logger    *slog.Logger
	metrics   *observability.ExecutorMetrics
}

// New constructs an executor over db.
func New(db storage.Database, cfg Config) *Executor {
	if cfg.LendingProgram.IsZero() {
		cfg.LendingProgram = DefaultLendingProgramID
	}
	if cfg.Rent == (state.Rent{}) {
		cfg.Rent = state.DefaultRent()
	}
	manager := state.NewManager(db)
	pauses := nativecommon.NewPauseSet(cfg.Paused)

	tokens := token.NewLedger(TokenProgramID)
	tokens.SetMintAuthority(cfg.MintAuthority)
	reader := token.NewLedger(TokenProgramID)
	reader.SetState(manager)

	lending := poollend.NewEngine(cfg.LendingProgram, cfg.Rent)
	lending.SetPauses(pauses)

	return &Executor{
		db:        db,
		manager:   manager,
		system:    system.NewProgram(cfg.Rent),
		tokens:    tokens,
		lending:   lending,
		reader:    reader,
		pauses:    pauses,
		quota:     nativecommon.NewQuotaTracker(cfg.Quota),
		publisher: events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().Unix() },
		logger:    slog.Default(),
	}
}

// SetPublisher configures where committed events are delivered.
func (e *Executor) SetPublisher(p events.Emitter) {
	if p == nil {
		p = events.NoopEmitter{}
	}
	e.publisher = p
}

// SetJournal configures the receipt journal. Nil disables journalling.
func (e *Executor) SetJournal(j Journal) { e.journal = j }

// SetLogger overrides the structured logger.
func (e *Executor) SetLogger(l *slog.Logger) {
	if l != nil {
		e.logger = l
	}
}

// SetMetrics enables prometheus instrumentation.
func (e *Executor) SetMetrics(m *observability.ExecutorMetrics) { e.metrics = m }

// SetNowFunc overrides the clock. Primarily intended for tests.
func (e *Executor) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	e.nowFn = now
}

// LendingProgram returns the lending program id.
func (e *Executor) LendingProgram() crypto.Key { return e.lending.Program() }

// VaultSigner returns the derived custodian of the lending vault.
func (e *Executor) VaultSigner() crypto.VaultSigner { return e.lending.VaultSigner() }

// AirdropVaultSigner returns the derived custodian of the airdrop vault.
func (e *Executor) AirdropVaultSigner() crypto.VaultSigner { return e.lending.AirdropVaultSigner() }

const tracerName = "pooledger/executor"

// Submit validates, executes and commits a signed transaction. Errors are
// returned for transactions rejected before execution (malformed, replayed,
// over quota); execution failures are reported through a failed receipt.
func (e *Executor) Submit(ctx context.Context, transaction *tx.Transaction) (*Receipt, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "executor.Submit")
	defer span.End()

	receipt, err := e.submit(ctx, transaction)
	if err != nil {
		if transaction != nil {
			if hash, hashErr := transaction.Hash(); hashErr == nil {
				span.SetAttributes(attribute.String("tx.hash", tx.FormatHash(hash)))
			}
		}
		span.SetAttributes(attribute.String("error.kind", ClassifyError(err)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("tx.hash", receipt.Hash),
		attribute.String("tx.status", string(receipt.Status)),
		attribute.Int("tx.instructions", len(transaction.Instructions)),
	)
	if !receipt.Committed() {
		span.SetAttributes(attribute.String("error.kind", receipt.Kind))
		span.SetStatus(codes.Error, receipt.Error)
	}
	return receipt, nil
}

func (e *Executor) submit(ctx context.Context, transaction *tx.Transaction) (*Receipt, error) {
	if transaction == nil {
		return nil, fmt.Errorf("%w: nil transaction", ErrInvalidTx)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := transaction.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTx, err)
	}
	signer, err := transaction.Signer()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTx, err)
	}
	hash, err := transaction.Hash()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTx, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	started := time.Now()
	now := e.nowFn()

	seen, err := e.manager.TransactionSeen(hash)
	if err != nil {
		return nil, err
	}
	if seen {
		return nil, ErrReplay
	}
	if err := e.quota.Consume(signer, now); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuotaExceeded, err)
	}

	receipt := &Receipt{
		Hash:      tx.FormatHash(hash),
		Signer:    signer,
		Timestamp: now,
	}
	overlay := state.NewOverlay(e.manager)
	recorder := &events.Recorder{}
	e.wire(overlay, recorder, now)

	signers := []crypto.Key{signer}
	for i, ins := range transaction.Instructions {
		module, prog, err := e.route(ins.Program)
		if err == nil {
			err = nativecommon.Guard(e.pauses, module)
		}
		if err == nil {
			err = prog.Execute(nativecommon.Invocation{
				Program:  ins.Program,
				Signers:  signers,
				Accounts: ins.Accounts,
				Data:     ins.Data,
			})
		}
		e.metrics.RecordInstruction(module, err == nil)
		if err != nil {
			overlay.Discard()
			idx := i
			receipt.Status = StatusFailed
			receipt.Error = err.Error()
			receipt.Kind = ClassifyError(err)
			receipt.FailedInstruction = &idx
			receipt.Program = module
			receipt.Instruction = describeInstruction(module, ins.Data)
			e.finish(ctx, receipt, started)
			return receipt, nil
		}
	}

	receipt.Status = StatusCommitted
	receipt.Events = recorder.Events()
	marker, err := json.Marshal(receipt)
	if err != nil {
		return nil, err
	}
	batch := e.db.NewBatch()
	if err := overlay.Commit(batch); err != nil {
		return nil, err
	}
	state.MarkTransactionSeen(batch, hash, marker)
	if err := batch.Write(); err != nil {
		return nil, fmt.Errorf("executor: commit: %w", err)
	}
	for _, evt := range recorder.Drain() {
		e.publisher.Emit(evt)
	}
	e.finish(ctx, receipt, started)
	return receipt, nil
}

func (e *Executor) wire(overlay *state.Overlay, recorder *events.Recorder, now int64) {
	e.system.SetState(overlay)
	e.tokens.SetState(overlay)
	e.tokens.SetEmitter(recorder)
	e.lending.SetState(overlay)
	e.lending.SetTokens(e.tokens)
	e.lending.SetEmitter(recorder)
	e.lending.SetNowFunc(func() int64 { return now })
}

func (e *Executor) route(id crypto.Key) (string, program, error) {
	switch id {
	case SystemProgramID:
		return system.ModuleName, e.system, nil
	case TokenProgramID:
		return token.ModuleName, e.tokens, nil
	case e.lending.Program():
		return poollend.ModuleName, e.lending, nil
	default:
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownProgram, id)
	}
}

func (e *Executor) finish(ctx context.Context, receipt *Receipt, started time.Time) {
	committed := receipt.Committed()
	e.metrics.RecordTransaction(committed, receipt.Kind, time.Since(started), time.Unix(receipt.Timestamp, 0))
	if committed {
		e.logger.Info("transaction committed",
			slog.String("tx", receipt.Hash),
			slog.String("signer", receipt.Signer.String()),
			slog.Int("events", len(receipt.Events)))
	} else {
		e.logger.Warn("transaction failed",
			slog.String("tx", receipt.Hash),
			slog.String("program", receipt.Program),
			slog.String("instruction", receipt.Instruction),
			slog.String("kind", receipt.Kind),
			slog.String("error", receipt.Error))
	}
	if e.journal == nil {
		return
	}
	if err := e.journal.RecordReceipt(ctx, receipt); err != nil {
		e.logger.Error("journal write failed", slog.String("tx", receipt.Hash), slog.Any("error", err))
	}
}

// Receipt returns the stored receipt of a committed transaction.
func (e *Executor) Receipt(hash [32]byte) (*Receipt, error) {
	raw, err := e.manager.TransactionMarker(hash)
	if err != nil {
		return nil, err
	}
	var receipt Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, fmt.Errorf("executor: decode receipt: %w", err)
	}
	return &receipt, nil
}

func describeInstruction(module string, data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if module == poollend.ModuleName {
		return poollend.Tag(data[0]).String()
	}
	return fmt.Sprintf("%s/%d", module, data[0])
}

// ClassifyError maps an execution failure to a stable kind name.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	if kind := poollend.KindOf(err); kind != poollend.KindUnknown {
		return kind.String()
	}
	switch {
	case errors.Is(err, nativecommon.ErrModulePaused):
		return "ModulePaused"
	case errors.Is(err, ErrUnknownProgram),
		errors.Is(err, nativecommon.ErrNotEnoughAccounts),
		errors.Is(err, token.ErrUnknownInstruction),
		errors.Is(err, token.ErrMalformedPayload),
		errors.Is(err, system.ErrUnknownInstruction),
		errors.Is(err, system.ErrMalformedPayload),
		errors.Is(err, system.ErrInvalidSize):
		return poollend.KindInvalidInstruction.String()
	case errors.Is(err, token.ErrMissingSignature),
		errors.Is(err, token.ErrUnauthorized),
		errors.Is(err, system.ErrMissingSignature):
		return poollend.KindMissingAuthorization.String()
	case errors.Is(err, token.ErrNotTokenAccount),
		errors.Is(err, system.ErrAddressMismatch):
		return poollend.KindRecordOwnershipMismatch.String()
	case errors.Is(err, token.ErrInsufficientFunds),
		errors.Is(err, token.ErrBalanceOverflow):
		return poollend.KindAmountMismatch.String()
	case errors.Is(err, token.ErrAccountInitialized),
		errors.Is(err, token.ErrAccountNotInitialized),
		errors.Is(err, system.ErrRecordExists),
		errors.Is(err, state.ErrRecordNotFound):
		return poollend.KindStorageLayoutError.String()
	default:
		return poollend.KindUnknown.String()
	}
}
