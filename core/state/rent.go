package state

// Rent decides whether a record's deposit is large enough to keep it from
// being reclaimed. The minimum grows linearly with the record size.
type Rent struct {
	BaseOverhead   uint64 `toml:"BaseOverhead" yaml:"baseOverhead"`
	DepositPerByte uint64 `toml:"DepositPerByte" yaml:"depositPerByte"`
}

// DefaultRent mirrors the parameters used by the reference network.
func DefaultRent() Rent {
	return Rent{BaseOverhead: 128, DepositPerByte: 6_960}
}

// MinimumDeposit returns the deposit required for a record of size bytes.
func (r Rent) MinimumDeposit(size int) uint64 {
	if size < 0 {
		size = 0
	}
	return (r.BaseOverhead + uint64(size)) * r.DepositPerByte
}

// IsExempt reports whether deposit covers a record of size bytes.
func (r Rent) IsExempt(deposit uint64, size int) bool {
	return deposit >= r.MinimumDeposit(size)
}
