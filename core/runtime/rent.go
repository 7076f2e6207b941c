package runtime

// AccountStorageOverhead is the per-account byte overhead charged on top of
// the data length.
const AccountStorageOverhead = 128

// Rent computes the lamports an account must hold to stay exempt from rent.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionYears      uint64
}

func DefaultRent() Rent {
	return Rent{LamportsPerByteYear: 3480, ExemptionYears: 2}
}

// MinimumBalance returns the rent-exempt balance for dataLen bytes of data.
func (r Rent) MinimumBalance(dataLen int) uint64 {
	return (AccountStorageOverhead + uint64(dataLen)) * r.LamportsPerByteYear * r.ExemptionYears
}
