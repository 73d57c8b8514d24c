package state

import "pooledger/crypto"

var (
	recordPrefix = []byte("record/")
	seenTxPrefix = []byte("tx/seen/")
)

func recordKey(addr crypto.Key) []byte {
	buf := make([]byte, len(recordPrefix)+crypto.KeyLength)
	copy(buf, recordPrefix)
	copy(buf[len(recordPrefix):], addr[:])
	return buf
}

func seenTxKey(hash [32]byte) []byte {
	buf := make([]byte, len(seenTxPrefix)+len(hash))
	copy(buf, seenTxPrefix)
	copy(buf[len(seenTxPrefix):], hash[:])
	return buf
}
