package executor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"pooledger/core/events"
	"pooledger/core/state"
	"pooledger/core/tx"
	"pooledger/crypto"
	nativecommon "pooledger/native/common"
	"pooledger/native/poollend"
	"pooledger/native/system"
	"pooledger/native/token"
	"pooledger/storage"
)

type memJournal struct {
	mu       sync.Mutex
	receipts []*Receipt
}

func (j *memJournal) RecordReceipt(_ context.Context, r *Receipt) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.receipts = append(j.receipts, r)
	return nil
}

type harness struct {
	t         *testing.T
	exec      *Executor
	admin     *crypto.PrivateKey
	published *events.Recorder
	journal   *memJournal
	nonce     uint64
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	admin, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	cfg := Config{MintAuthority: admin.Key()}
	if mutate != nil {
		mutate(&cfg)
	}
	h := &harness{
		t:         t,
		exec:      New(storage.NewMemDB(), cfg),
		admin:     admin,
		published: &events.Recorder{},
		journal:   &memJournal{},
	}
	h.exec.SetPublisher(h.published)
	h.exec.SetJournal(h.journal)
	h.exec.SetNowFunc(func() int64 { return 1_700_000_000 })
	return h
}

func (h *harness) sign(key *crypto.PrivateKey, instrs ...tx.Instruction) *tx.Transaction {
	h.t.Helper()
	h.nonce++
	transaction := &tx.Transaction{Instructions: instrs, Nonce: h.nonce}
	require.NoError(h.t, transaction.Sign(key))
	return transaction
}

func (h *harness) submit(key *crypto.PrivateKey, instrs ...tx.Instruction) *Receipt {
	h.t.Helper()
	receipt, err := h.exec.Submit(context.Background(), h.sign(key, instrs...))
	require.NoError(h.t, err)
	return receipt
}

func createRecord(payer crypto.Key, seed string, size int, owner crypto.Key) (crypto.Key, tx.Instruction) {
	addr := crypto.DeriveAddress(payer, seed, owner)
	return addr, tx.Instruction{
		Program:  SystemProgramID,
		Accounts: []crypto.Key{payer, addr},
		Data:     system.EncodeCreateRecord(uint64(size), 0, owner, seed),
	}
}

func (h *harness) wallet(seed string, custodian *crypto.PrivateKey, balance uint64) crypto.Key {
	h.t.Helper()
	addr, create := createRecord(custodian.Key(), seed, token.AccountSize, TokenProgramID)
	instrs := []tx.Instruction{create, {
		Program:  TokenProgramID,
		Accounts: []crypto.Key{custodian.Key(), addr},
		Data:     token.EncodeInitializeAccount(custodian.Key()),
	}}
	receipt := h.submit(custodian, instrs...)
	require.True(h.t, receipt.Committed(), receipt.Error)
	if balance > 0 {
		receipt = h.submit(h.admin, tx.Instruction{
			Program:  TokenProgramID,
			Accounts: []crypto.Key{h.admin.Key(), addr},
			Data:     token.EncodeMint(balance),
		})
		require.True(h.t, receipt.Committed(), receipt.Error)
	}
	return addr
}

func transfer(custodian, from, to crypto.Key, amount uint64) tx.Instruction {
	return tx.Instruction{
		Program:  TokenProgramID,
		Accounts: []crypto.Key{custodian, from, to},
		Data:     token.EncodeTransfer(amount),
	}
}

func TestSubmitCommitsAndPublishes(t *testing.T) {
	h := newHarness(t, nil)
	addr := h.wallet("main", h.admin, 1_000)

	view, err := h.exec.TokenAccount(addr)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), view.Balance)
	require.Equal(t, h.admin.Key(), view.Custodian)

	published := h.published.Events()
	require.NotEmpty(t, published)
	require.Equal(t, events.TypeTokenMint, published[len(published)-1].Type)
	require.Len(t, h.journal.receipts, 2)
}

func TestFailedInstructionDiscardsEarlierWrites(t *testing.T) {
	h := newHarness(t, nil)
	from := h.wallet("from", h.admin, 100)
	to := h.wallet("to", h.admin, 0)
	before := len(h.published.Events())

	receipt := h.submit(h.admin,
		transfer(h.admin.Key(), from, to, 60),
		transfer(h.admin.Key(), from, to, 60),
	)
	require.Equal(t, StatusFailed, receipt.Status)
	require.NotNil(t, receipt.FailedInstruction)
	require.Equal(t, 1, *receipt.FailedInstruction)
	require.Equal(t, token.ModuleName, receipt.Program)
	require.Equal(t, poollend.KindAmountMismatch.String(), receipt.Kind)
	require.Empty(t, receipt.Events)

	for addr, want := range map[crypto.Key]uint64{from: 100, to: 0} {
		view, err := h.exec.TokenAccount(addr)
		require.NoError(t, err)
		require.Equal(t, want, view.Balance)
	}
	require.Len(t, h.published.Events(), before)
	last := h.journal.receipts[len(h.journal.receipts)-1]
	require.Equal(t, StatusFailed, last.Status)
}

func TestReplayRejected(t *testing.T) {
	h := newHarness(t, nil)
	from := h.wallet("from", h.admin, 100)
	to := h.wallet("to", h.admin, 0)

	signed := h.sign(h.admin, transfer(h.admin.Key(), from, to, 10))
	receipt, err := h.exec.Submit(context.Background(), signed)
	require.NoError(t, err)
	require.True(t, receipt.Committed())

	_, err = h.exec.Submit(context.Background(), signed)
	require.ErrorIs(t, err, ErrReplay)

	hash, err := tx.ParseHash(receipt.Hash)
	require.NoError(t, err)
	stored, err := h.exec.Receipt(hash)
	require.NoError(t, err)
	require.Equal(t, receipt.Hash, stored.Hash)
	require.Equal(t, StatusCommitted, stored.Status)
	require.Len(t, stored.Events, 1)
}

func TestFailedTransactionMayBeResubmitted(t *testing.T) {
	h := newHarness(t, nil)
	from := h.wallet("from", h.admin, 5)
	to := h.wallet("to", h.admin, 0)

	signed := h.sign(h.admin, transfer(h.admin.Key(), from, to, 10))
	receipt, err := h.exec.Submit(context.Background(), signed)
	require.NoError(t, err)
	require.False(t, receipt.Committed())

	hash, err := tx.ParseHash(receipt.Hash)
	require.NoError(t, err)
	_, err = h.exec.Receipt(hash)
	require.ErrorIs(t, err, state.ErrRecordNotFound)

	again, err := h.exec.Submit(context.Background(), signed)
	require.NoError(t, err)
	require.False(t, again.Committed())
}

func TestUnknownProgram(t *testing.T) {
	h := newHarness(t, nil)
	receipt := h.submit(h.admin, tx.Instruction{Program: crypto.NamedKey("nope"), Data: []byte{0}})
	require.Equal(t, StatusFailed, receipt.Status)
	require.Equal(t, poollend.KindInvalidInstruction.String(), receipt.Kind)
}

func TestPausedModule(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.Paused = []string{"Token"} })
	addr, create := createRecord(h.admin.Key(), "main", token.AccountSize, TokenProgramID)
	receipt := h.submit(h.admin, create, tx.Instruction{
		Program:  TokenProgramID,
		Accounts: []crypto.Key{h.admin.Key(), addr},
		Data:     token.EncodeInitializeAccount(h.admin.Key()),
	})
	require.Equal(t, "ModulePaused", receipt.Kind)
	_, err := h.exec.Record(addr)
	require.ErrorIs(t, err, state.ErrRecordNotFound)
}

func TestQuotaPerSigner(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.Quota = nativecommon.Quota{MaxRequestsPerEpoch: 1, EpochSeconds: 60}
	})
	_, create := createRecord(h.admin.Key(), "a", 8, TokenProgramID)
	h.submit(h.admin, create)

	_, create = createRecord(h.admin.Key(), "b", 8, TokenProgramID)
	_, err := h.exec.Submit(context.Background(), h.sign(h.admin, create))
	require.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestInvalidTransaction(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.exec.Submit(context.Background(), &tx.Transaction{})
	require.ErrorIs(t, err, ErrInvalidTx)

	_, err = h.exec.Submit(context.Background(), &tx.Transaction{
		Instructions: []tx.Instruction{{Program: TokenProgramID}},
		Signature:    make([]byte, 65),
	})
	require.ErrorIs(t, err, ErrInvalidTx)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.exec.Submit(ctx, h.sign(h.admin, tx.Instruction{Program: TokenProgramID}))
	require.ErrorIs(t, err, context.Canceled)
}

func TestLendingQueries(t *testing.T) {
	h := newHarness(t, nil)
	lending := h.exec.LendingProgram()
	require.Equal(t, DefaultLendingProgramID, lending)

	ledger, create := createRecord(h.admin.Key(), "ledger", poollend.LenderLedgerSize, lending)
	receipt := h.submit(h.admin, create, tx.Instruction{
		Program:  lending,
		Accounts: []crypto.Key{h.admin.Key(), ledger},
		Data:     poollend.Instruction{Tag: poollend.TagInitializeLenderLedger}.Encode(),
	})
	require.True(t, receipt.Committed(), receipt.Error)
	require.Equal(t, events.TypeLedgerInitialized, receipt.Events[0].Type)

	slot, err := h.exec.Lender(ledger, 7)
	require.NoError(t, err)
	require.False(t, slot.Active)
	require.Equal(t, "0", slot.TotalLending)

	_, err = h.exec.Lender(ledger, poollend.LenderCapacity)
	require.ErrorIs(t, err, poollend.ErrCapacityExceeded)

	_, err = h.exec.Loan(ledger)
	require.True(t, errors.Is(err, poollend.ErrRecordTypeMismatch) || errors.Is(err, poollend.ErrTruncatedRecord))

	borrower := h.admin.Key()
	recAddr, create := createRecord(borrower, poollend.BorrowerSeed, poollend.BorrowerRecordSize, lending)
	require.Equal(t, poollend.BorrowerRecordAddress(borrower, lending), recAddr)
	receipt = h.submit(h.admin, create, tx.Instruction{
		Program:  lending,
		Accounts: []crypto.Key{borrower, recAddr},
		Data:     poollend.Instruction{Tag: poollend.TagInitializeBorrowerRecord}.Encode(),
	})
	require.True(t, receipt.Committed(), receipt.Error)
	view, err := h.exec.Borrower(recAddr)
	require.NoError(t, err)
	require.False(t, view.HasActiveLoan)

	wallet := h.wallet("main", h.admin, 0)
	_, err = h.exec.Borrower(wallet)
	require.ErrorIs(t, err, ErrWrongOwner)
}

func TestClassifyError(t *testing.T) {
	require.Equal(t, "", ClassifyError(nil))
	require.Equal(t, "VaultIdentityError", ClassifyError(poollend.ErrVaultCustody))
	require.Equal(t, "MissingAuthorization", ClassifyError(token.ErrUnauthorized))
	require.Equal(t, "Unknown", ClassifyError(errors.New("boom")))
}
