package poollend

import (
	"testing"

	"pooledger/crypto"
)

func TestDerivationSeedsAreDistinct(t *testing.T) {
	seeds := []string{VaultSeed, AirdropVaultSeed, BorrowerSeed, GuarantorSeed, AirdropCounterSeed}
	seen := make(map[string]bool, len(seeds))
	for _, seed := range seeds {
		if seen[seed] {
			t.Fatalf("seed %q used twice", seed)
		}
		seen[seed] = true
	}
}

func TestPartyRecordAddressesDiffer(t *testing.T) {
	party := crypto.NamedKey("party")
	addrs := []crypto.Key{
		BorrowerRecordAddress(party, testProgram),
		GuarantorRecordAddress(party, testProgram),
		AirdropCounterAddress(party, testProgram),
		crypto.DeriveVaultSigner(AirdropVaultSeed, testProgram).Key(),
	}
	for i := range addrs {
		for j := i + 1; j < len(addrs); j++ {
			if addrs[i] == addrs[j] {
				t.Fatalf("addresses %d and %d collide", i, j)
			}
		}
	}
}
