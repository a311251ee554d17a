// Package accountdb implements the per-account trust/balance store and
// the derivation of capacity edges from it, using the same mutex-guarded
// node/edge map pattern as the rest of the engine's stores.
package accountdb

import (
	"fmt"
	"sort"
	"sync"

	"pathfinder/internal/address"
	"pathfinder/internal/edgedb"
	"pathfinder/internal/u256"
)

// Account holds one account's issued-token identity, per-token balances,
// and outgoing trust percentages.
type Account struct {
	Address Address

	// TokenAddress is the address of the token this account issues. By
	// convention it equals Address itself.
	TokenAddress Address

	// Balances maps token address to held balance. Tokens with a zero
	// balance are never stored.
	Balances map[Address]u256.U256

	// TrustOut maps recipient address to trust percentage in [1,100].
	// Self-trust and zero-percent entries are never stored.
	TrustOut map[Address]uint8

	Organization bool
}

// Address is re-exported for call sites that only need the account
// identifier type without importing internal/address directly.
type Address = address.Address

// NewAccount returns an Account with its maps initialized, issuing its
// own token by convention (TokenAddress == addr).
func NewAccount(addr Address) *Account {
	return &Account{
		Address:      addr,
		TokenAddress: addr,
		Balances:     make(map[Address]u256.U256),
		TrustOut:     make(map[Address]uint8),
	}
}

// SetBalance records a non-zero balance of token for this account.
// A zero value removes any stored balance, since zero balances are
// never stored.
func (a *Account) SetBalance(token Address, balance u256.U256) {
	if balance.IsZero() {
		delete(a.Balances, token)
		return
	}
	a.Balances[token] = balance
}

// SetTrust records a[to] is willing to accept TokenAddress of `to`'s
// owner up to pct percent. Self-trust and zero-percent trust are
// dropped, and a percentage outside [0,100] is rejected.
func (a *Account) SetTrust(to Address, pct uint8) error {
	if pct > 100 {
		return fmt.Errorf("accountdb: trust percentage %d out of range [0,100]", pct)
	}
	if to == a.Address || pct == 0 {
		delete(a.TrustOut, to)
		return nil
	}
	a.TrustOut[to] = pct
	return nil
}

// AccountDB is the per-account store plus the token-ownership index.
// All mutation happens under mu, since a
// background load/update may run concurrently with a worker reading a
// snapshot already detached into an EdgeDB via DeriveEdges.
type AccountDB struct {
	mu         sync.RWMutex
	accounts   map[Address]*Account
	tokenOwner map[Address]Address
}

// New returns an empty AccountDB.
func New() *AccountDB {
	return &AccountDB{
		accounts:   make(map[Address]*Account),
		tokenOwner: make(map[Address]Address),
	}
}

// Put inserts or replaces an account, updating the token_owner index for
// its issued token.
func (db *AccountDB) Put(a *Account) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.accounts[a.Address] = a
	db.tokenOwner[a.TokenAddress] = a.Address
}

// Get returns the account at addr, or nil if none exists.
func (db *AccountDB) Get(addr Address) *Account {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.accounts[addr]
}

// TokenOwner returns the account that owns token, or the zero address
// and false if the token is unknown.
func (db *AccountDB) TokenOwner(token Address) (Address, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	owner, ok := db.tokenOwner[token]
	return owner, ok
}

// Len returns the number of accounts.
func (db *AccountDB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.accounts)
}

// Accounts returns every account, sorted by address for deterministic
// iteration (snapshot serialization needs a stable address index).
func (db *AccountDB) Accounts() []*Account {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]*Account, 0, len(db.accounts))
	for _, a := range db.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address.Less(out[j].Address) })
	return out
}

// DeriveEdges computes the full capacity-edge set: for every account
// holding a positive balance of some token, and every account trusted by
// that token's owner with a positive percentage, derive one capacity edge.
//
// The trust-limited branch's `min(amount-scaled, from_balance)` bound
// caps the edge at both the recipient's remaining quota and the sender's
// actual balance.
func (db *AccountDB) DeriveEdges() []edgedb.Edge {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var edges []edgedb.Edge
	for from, fromAcct := range db.accounts {
		for token, balance := range fromAcct.Balances {
			if balance.IsZero() {
				continue
			}
			owner, ok := db.tokenOwner[token]
			if !ok {
				continue
			}
			ownerAcct := db.accounts[owner]
			if ownerAcct == nil {
				continue
			}

			for to, pct := range ownerAcct.TrustOut {
				if to == from || pct == 0 {
					continue
				}
				toAcct := db.accounts[to]
				if toAcct == nil {
					continue
				}

				capacity, ok := deriveCapacity(toAcct, owner, token, pct, balance)
				if !ok || capacity.IsZero() {
					continue
				}

				edges = append(edges, edgedb.Edge{
					From:     from,
					To:       to,
					Token:    token,
					Capacity: capacity,
				})
			}
		}
	}
	return edges
}

// deriveCapacity implements the two capacity branches for a single
// (from, to, token) candidate, given the sender's held balance: send-to-owner
// (or organization) grants the full balance, otherwise capacity is bounded
// by the recipient's remaining trust quota.
func deriveCapacity(to *Account, owner, token Address, pct uint8, fromBalance u256.U256) (u256.U256, bool) {
	if to.Organization || to.Address == owner {
		return fromBalance, true
	}

	amount, err := u256.MulDivUint64(to.Balances[to.TokenAddress], uint64(pct), 100)
	if err != nil {
		return u256.Zero, false
	}
	held := to.Balances[token]
	if amount.Less(held) {
		return u256.Zero, true
	}

	scaled, err := u256.MulDivUint64(held, uint64(100-pct), 100)
	if err != nil {
		return u256.Zero, false
	}
	headroom := u256.SaturatingSub(amount, scaled)
	return u256.Min(headroom, fromBalance), true
}
