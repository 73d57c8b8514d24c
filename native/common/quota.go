package common

import (
	"errors"
	"math"
	"sync"

	"pooledger/crypto"
)

var (
	ErrQuotaRequestsExceeded = errors.New("quota requests exceeded")
	ErrQuotaCounterOverflow  = errors.New("quota counter overflow")
)

// QuotaNow captures the current quota usage counters for a signer.
type QuotaNow struct {
	ReqCount uint32
	EpochID  uint64
}

// Quota defines how many transactions a single signer may submit per epoch.
type Quota struct {
	MaxRequestsPerEpoch uint32 `toml:"MaxRequestsPerEpoch" yaml:"maxRequestsPerEpoch"`
	EpochSeconds        uint32 `toml:"EpochSeconds" yaml:"epochSeconds"`
}

// Enabled reports whether the quota enforces anything.
func (q Quota) Enabled() bool { return q.MaxRequestsPerEpoch > 0 && q.EpochSeconds > 0 }

// EpochFor maps a unix timestamp to the quota epoch.
func (q Quota) EpochFor(now int64) uint64 {
	if q.EpochSeconds == 0 || now < 0 {
		return 0
	}
	return uint64(now) / uint64(q.EpochSeconds)
}

// CheckQuota verifies whether the additional requests fit within the
// configured quota. The returned QuotaNow reflects the updated counters when
// the quota is not exceeded.
func CheckQuota(q Quota, nowEpoch uint64, prev QuotaNow, addReq uint32) (QuotaNow, error) {
	next := prev
	if prev.EpochID != nowEpoch {
		next = QuotaNow{EpochID: nowEpoch}
	}
	if addReq > 0 {
		if next.ReqCount > math.MaxUint32-addReq {
			return prev, ErrQuotaCounterOverflow
		}
		next.ReqCount += addReq
	}
	if q.MaxRequestsPerEpoch > 0 && next.ReqCount > q.MaxRequestsPerEpoch {
		return prev, ErrQuotaRequestsExceeded
	}
	return next, nil
}

// QuotaTracker keeps per-signer counters in memory. Counters reset whenever
// the epoch rolls over.
type QuotaTracker struct {
	mu       sync.Mutex
	quota    Quota
	counters map[crypto.Key]QuotaNow
}

func NewQuotaTracker(q Quota) *QuotaTracker {
	return &QuotaTracker{quota: q, counters: make(map[crypto.Key]QuotaNow)}
}

// Consume records one request for signer at time now.
func (t *QuotaTracker) Consume(signer crypto.Key, now int64) error {
	if t == nil || !t.quota.Enabled() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	epoch := t.quota.EpochFor(now)
	next, err := CheckQuota(t.quota, epoch, t.counters[signer], 1)
	if err != nil {
		return err
	}
	t.counters[signer] = next
	return nil
}
