package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"nhooyr.io/websocket"

	"pooledger/core/events"
	"pooledger/core/executor"
	"pooledger/core/tx"
	"pooledger/crypto"
	"pooledger/journal"
	"pooledger/native/poollend"
	"pooledger/native/system"
	"pooledger/native/token"
	"pooledger/rpc/middleware"
	"pooledger/storage"
)

type apiHarness struct {
	t      *testing.T
	exec   *executor.Executor
	server *httptest.Server
	hub    *Hub
	admin  *crypto.PrivateKey
	nonce  uint64
}

func newAPIHarness(t *testing.T, cfg Config) *apiHarness {
	t.Helper()
	admin, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	exec := executor.New(storage.NewMemDB(), executor.Config{MintAuthority: admin.Key()})
	exec.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)
	j, err := journal.New(db)
	require.NoError(t, err)
	exec.SetJournal(j)

	hub := NewHub()
	exec.SetPublisher(hub)
	srv := NewServer(exec, j, hub, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = j.Close()
	})
	return &apiHarness{t: t, exec: exec, server: ts, hub: hub, admin: admin}
}

func (h *apiHarness) signed(instrs ...tx.Instruction) []byte {
	h.t.Helper()
	h.nonce++
	transaction := &tx.Transaction{Instructions: instrs, Nonce: h.nonce}
	require.NoError(h.t, transaction.Sign(h.admin))
	body, err := json.Marshal(transaction)
	require.NoError(h.t, err)
	return body
}

func (h *apiHarness) post(body []byte, header http.Header) (*http.Response, map[string]any) {
	h.t.Helper()
	req, err := http.NewRequest(http.MethodPost, h.server.URL+"/v1/transactions", bytes.NewReader(body))
	require.NoError(h.t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer res.Body.Close()
	var payload map[string]any
	require.NoError(h.t, json.NewDecoder(res.Body).Decode(&payload))
	return res, payload
}

func (h *apiHarness) get(path string, out any) int {
	h.t.Helper()
	res, err := http.Get(h.server.URL + path)
	require.NoError(h.t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(h.t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func (h *apiHarness) walletInstrs(seed string, mint uint64) (crypto.Key, []tx.Instruction) {
	owner := h.admin.Key()
	addr := crypto.DeriveAddress(owner, seed, executor.TokenProgramID)
	instrs := []tx.Instruction{
		{Program: executor.SystemProgramID, Accounts: []crypto.Key{owner, addr}, Data: system.EncodeCreateRecord(token.AccountSize, 0, executor.TokenProgramID, seed)},
		{Program: executor.TokenProgramID, Accounts: []crypto.Key{owner, addr}, Data: token.EncodeInitializeAccount(owner)},
	}
	if mint > 0 {
		instrs = append(instrs, tx.Instruction{Program: executor.TokenProgramID, Accounts: []crypto.Key{owner, addr}, Data: token.EncodeMint(mint)})
	}
	return addr, instrs
}

func TestHealthAndMetrics(t *testing.T) {
	h := newAPIHarness(t, Config{})
	res, err := http.Get(h.server.URL + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotEmpty(t, res.Header.Get("X-Request-ID"))

	res, err = http.Get(h.server.URL + "/metrics")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestSubmitAndQuery(t *testing.T) {
	h := newAPIHarness(t, Config{})
	addr, instrs := h.walletInstrs("main", 42)
	body := h.signed(instrs...)

	res, receipt := h.post(body, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, string(executor.StatusCommitted), receipt["status"])

	var view executor.TokenAccountView
	require.Equal(t, http.StatusOK, h.get("/v1/tokens/"+addr.String(), &view))
	require.Equal(t, uint64(42), view.Balance)

	var rec RecordView
	require.Equal(t, http.StatusOK, h.get("/v1/records/"+addr.Hex()+"?data=true", &rec))
	require.Equal(t, executor.TokenProgramID, rec.Owner)
	require.Len(t, rec.Data, token.AccountSize)

	hash := receipt["hash"].(string)
	var stored executor.Receipt
	require.Equal(t, http.StatusOK, h.get("/v1/transactions/"+hash, &stored))
	require.True(t, stored.Committed())

	var evts []journal.StoredEvent
	require.Equal(t, http.StatusOK, h.get("/v1/events?type="+events.TypeTokenMint, &evts))
	require.Len(t, evts, 1)
	require.Equal(t, hash, evts[0].TxHash)

	res, _ = h.post(body, nil)
	require.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestFailedSubmissionStatus(t *testing.T) {
	h := newAPIHarness(t, Config{})
	_, instrs := h.walletInstrs("main", 0)
	h.post(h.signed(instrs...), nil)

	ledger := crypto.DeriveAddress(h.admin.Key(), "ledger", h.exec.LendingProgram())
	res, receipt := h.post(h.signed(tx.Instruction{
		Program:  h.exec.LendingProgram(),
		Accounts: []crypto.Key{h.admin.Key(), ledger},
		Data:     poollend.Instruction{Tag: poollend.TagInitializeLenderLedger}.Encode(),
	}), nil)
	require.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	require.Equal(t, poollend.KindStorageLayoutError.String(), receipt["kind"])

	hash := receipt["hash"].(string)
	var stored executor.Receipt
	require.Equal(t, http.StatusOK, h.get("/v1/transactions/"+hash, &stored))
	require.Equal(t, executor.StatusFailed, stored.Status)

	res, payload := h.post([]byte(`{"instructions":[]}`), nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	require.Contains(t, payload["error"], "no instructions")
}

func TestQueryErrors(t *testing.T) {
	h := newAPIHarness(t, Config{})
	missing := crypto.NamedKey("missing")
	require.Equal(t, http.StatusBadRequest, h.get("/v1/loans/not-a-key", nil))
	require.Equal(t, http.StatusNotFound, h.get("/v1/loans/"+missing.String(), nil))
	require.Equal(t, http.StatusBadRequest, h.get("/v1/ledgers/"+missing.String()+"/lenders/x", nil))
	require.Equal(t, http.StatusBadRequest, h.get("/v1/transactions/0x12", nil))
	require.Equal(t, http.StatusNotFound, h.get("/v1/transactions/0x"+strings.Repeat("ab", 32), nil))
	require.Equal(t, http.StatusBadRequest, h.get("/v1/events?limit=-1", nil))

	addr, instrs := h.walletInstrs("main", 0)
	h.post(h.signed(instrs...), nil)
	require.Equal(t, http.StatusUnprocessableEntity, h.get("/v1/borrowers/"+addr.String(), nil))
}

func TestSubmitRequiresToken(t *testing.T) {
	h := newAPIHarness(t, Config{Auth: middleware.AuthConfig{Enabled: true, HMACSecret: "secret"}})
	_, instrs := h.walletInstrs("main", 0)
	res, err := http.Post(h.server.URL+"/v1/transactions", "application/json", bytes.NewReader(h.signed(instrs...)))
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	require.Equal(t, http.StatusNotFound, h.get("/v1/tokens/"+crypto.NamedKey("x").String(), nil))
}

func TestSubmitRateLimited(t *testing.T) {
	h := newAPIHarness(t, Config{RateLimits: map[string]middleware.RateLimit{
		LimitTransactions: {RatePerSecond: 0.001, Burst: 1},
	}})
	_, instrs := h.walletInstrs("a", 0)
	res, _ := h.post(h.signed(instrs...), nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	_, instrs = h.walletInstrs("b", 0)
	req, err := http.NewRequest(http.MethodPost, h.server.URL+"/v1/transactions", bytes.NewReader(h.signed(instrs...)))
	require.NoError(t, err)
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusTooManyRequests, res.StatusCode)
}

func TestEventStream(t *testing.T) {
	h := newAPIHarness(t, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/v1/events/stream?type=token.mint"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "test complete")

	require.Eventually(t, func() bool { return h.hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, instrs := h.walletInstrs("main", 7)
	res, _ := h.post(h.signed(instrs...), nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	msgType, data, err := conn.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, websocket.MessageText, msgType)
	var evt events.Event
	require.NoError(t, json.Unmarshal(data, &evt))
	require.Equal(t, events.TypeTokenMint, evt.Type)
	require.Equal(t, "7", evt.Attributes["amount"])
}

func TestHubDropsWhenSubscriberFull(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("")
	for i := 0; i < subscriberBufferSize+10; i++ {
		hub.Emit(events.Event{Type: "x"})
	}
	require.Len(t, ch, subscriberBufferSize)
	cancel()
	cancel()
	require.Zero(t, hub.Subscribers())
}
