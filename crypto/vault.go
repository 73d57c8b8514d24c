package crypto

import "github.com/ethereum/go-ethereum/crypto"

// VaultSigner is a keyless custodian derived from a fixed seed and the id of
// the program that owns it. No private key exists for the derived key; a
// transfer service accepts the signer in lieu of a signature only when the
// invoking program is the one the signer was derived for.
type VaultSigner struct {
	seed    string
	program Key
	key     Key
}

// DeriveVaultSigner computes the vault signer for seed under program.
func DeriveVaultSigner(seed string, program Key) VaultSigner {
	return VaultSigner{
		seed:    seed,
		program: program,
		key:     deriveVaultKey(seed, program),
	}
}

func deriveVaultKey(seed string, program Key) Key {
	return Key(crypto.Keccak256Hash([]byte(seed), program[:], []byte("pooledger/vault-signer")))
}

// Key returns the derived custodian key.
func (v VaultSigner) Key() Key { return v.key }

// Program returns the program id the signer was derived for.
func (v VaultSigner) Program() Key { return v.program }

// Seed returns the derivation seed.
func (v VaultSigner) Seed() string { return v.seed }

// Authorizes reports whether the signer may move funds held under custodian
// when the request originates from invoker. The derivation is re-checked so a
// zero-value or tampered signer never authorises anything.
func (v VaultSigner) Authorizes(custodian, invoker Key) bool {
	if v.program != invoker || v.key.IsZero() {
		return false
	}
	if deriveVaultKey(v.seed, invoker) != v.key {
		return false
	}
	return v.key == custodian
}
