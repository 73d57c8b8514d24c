package rpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"

	"pooledger/core/executor"
	"pooledger/core/tx"
	"pooledger/crypto"
	"pooledger/journal"
	"pooledger/rpc/middleware"
)

// RecordView is the JSON rendering of a raw record.
type RecordView struct {
	Address crypto.Key    `json:"address"`
	Owner   crypto.Key    `json:"owner"`
	Deposit uint64        `json:"deposit"`
	Size    int           `json:"size"`
	Data    hexutil.Bytes `json:"data,omitempty"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	writeJSON(w, status, errorResponse{
		Error:     err.Error(),
		Kind:      executor.ClassifyError(err),
		RequestID: middleware.RequestIDFrom(r.Context()),
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var transaction tx.Transaction
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&transaction); err != nil {
		writeError(w, r, http.StatusBadRequest, errors.New("invalid transaction body: "+err.Error()))
		return
	}
	receipt, err := s.backend.Submit(r.Context(), &transaction)
	if err != nil {
		writeError(w, r, submitStatus(err), err)
		return
	}
	status := http.StatusOK
	if !receipt.Committed() {
		status = statusForKind(receipt.Kind)
	}
	writeJSON(w, status, receipt)
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	hash, err := tx.ParseHash(chi.URLParam(r, "hash"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if s.journal != nil {
		receipt, err := s.journal.Transaction(r.Context(), tx.FormatHash(hash))
		if err == nil {
			writeJSON(w, http.StatusOK, receipt)
			return
		}
		if !errors.Is(err, journal.ErrNotFound) {
			writeError(w, r, http.StatusInternalServerError, err)
			return
		}
	}
	receipt, err := s.backend.Receipt(hash)
	if err != nil {
		writeError(w, r, queryStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) addressParam(w http.ResponseWriter, r *http.Request) (crypto.Key, bool) {
	addr, err := crypto.DecodeKey(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return crypto.Key{}, false
	}
	return addr, true
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.addressParam(w, r)
	if !ok {
		return
	}
	rec, err := s.backend.Record(addr)
	if err != nil {
		writeError(w, r, queryStatus(err), err)
		return
	}
	view := RecordView{Address: addr, Owner: rec.Owner, Deposit: rec.Deposit, Size: len(rec.Data)}
	if r.URL.Query().Get("data") == "true" {
		view.Data = rec.Data
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.addressParam(w, r)
	if !ok {
		return
	}
	view, err := s.backend.TokenAccount(addr)
	respond(w, r, view, err)
}

func (s *Server) handleLender(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.addressParam(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, errors.New("invalid lender id"))
		return
	}
	view, err := s.backend.Lender(addr, uint32(id))
	respond(w, r, view, err)
}

func (s *Server) handleLoan(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.addressParam(w, r)
	if !ok {
		return
	}
	view, err := s.backend.Loan(addr)
	respond(w, r, view, err)
}

func (s *Server) handleBorrower(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.addressParam(w, r)
	if !ok {
		return
	}
	view, err := s.backend.Borrower(addr)
	respond(w, r, view, err)
}

func (s *Server) handleGuarantor(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.addressParam(w, r)
	if !ok {
		return
	}
	view, err := s.backend.Guarantor(addr)
	respond(w, r, view, err)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, r, http.StatusServiceUnavailable, errors.New("journal disabled"))
		return
	}
	q := journal.EventQuery{
		Type:   strings.TrimSpace(r.URL.Query().Get("type")),
		TxHash: strings.TrimSpace(r.URL.Query().Get("tx")),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, r, http.StatusBadRequest, errors.New("invalid limit"))
			return
		}
		q.Limit = limit
	}
	evts, err := s.journal.Events(r.Context(), q)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, evts)
}

func respond(w http.ResponseWriter, r *http.Request, view any, err error) {
	if err != nil {
		writeError(w, r, queryStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
