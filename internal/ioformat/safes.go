package ioformat

import (
	"io"
	"sort"

	"pathfinder/internal/accountdb"
	"pathfinder/internal/u256"
)

// WriteSafes serializes db to the safes binary format: an address
// index, the organization-account subset, the trust-percentage edges,
// and the non-zero balances, each section length-prefixed.
func WriteSafes(w io.Writer, db *accountdb.AccountDB) error {
	accounts := db.Accounts()

	addrs := make([]accountdb.Address, len(accounts))
	for i, a := range accounts {
		addrs[i] = a.Address
	}
	if err := writeAddressIndex(w, addrs); err != nil {
		return err
	}
	idx := addressIndex(addrs)

	var orgs []uint32
	for _, a := range accounts {
		if a.Organization {
			orgs = append(orgs, idx[a.Address])
		}
	}
	if err := writeU32(w, uint32(len(orgs))); err != nil {
		return err
	}
	for _, o := range orgs {
		if err := writeU32(w, o); err != nil {
			return err
		}
	}

	nTrust := 0
	for _, a := range accounts {
		nTrust += len(a.TrustOut)
	}
	if err := writeU32(w, uint32(nTrust)); err != nil {
		return err
	}
	for _, a := range accounts {
		for _, to := range sortedTrustRecipients(a.TrustOut) {
			if err := writeU32(w, idx[a.Address]); err != nil {
				return err
			}
			if err := writeU32(w, idx[to]); err != nil {
				return err
			}
			if err := writeU8(w, a.TrustOut[to]); err != nil {
				return err
			}
		}
	}

	nBal := 0
	for _, a := range accounts {
		nBal += len(a.Balances)
	}
	if err := writeU32(w, uint32(nBal)); err != nil {
		return err
	}
	for _, a := range accounts {
		for _, tok := range sortedBalanceTokens(a.Balances) {
			if err := writeU32(w, idx[a.Address]); err != nil {
				return err
			}
			if err := writeU32(w, idx[tok]); err != nil {
				return err
			}
			if err := writeU256Compact(w, a.Balances[tok]); err != nil {
				return err
			}
		}
	}

	return nil
}

// ReadSafes parses the safes binary format into a fresh AccountDB.
func ReadSafes(r io.Reader) (*accountdb.AccountDB, error) {
	addrs, err := readAddressIndex(r)
	if err != nil {
		return nil, err
	}

	accounts := make([]*accountdb.Account, len(addrs))
	for i, a := range addrs {
		accounts[i] = accountdb.NewAccount(a)
	}

	nOrg, err := readU32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < nOrg; i++ {
		idx, err := readU32(r)
		if err != nil {
			return nil, err
		}
		accounts[idx].Organization = true
	}

	nTrust, err := readU32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < nTrust; i++ {
		user, err := readU32(r)
		if err != nil {
			return nil, err
		}
		sendTo, err := readU32(r)
		if err != nil {
			return nil, err
		}
		pct, err := readU8(r)
		if err != nil {
			return nil, err
		}
		if err := accounts[user].SetTrust(accounts[sendTo].Address, pct); err != nil {
			return nil, err
		}
	}

	nBal, err := readU32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < nBal; i++ {
		user, err := readU32(r)
		if err != nil {
			return nil, err
		}
		tokenOwner, err := readU32(r)
		if err != nil {
			return nil, err
		}
		balance, err := readU256Compact(r)
		if err != nil {
			return nil, err
		}
		accounts[user].SetBalance(accounts[tokenOwner].Address, balance)
	}

	db := accountdb.New()
	for _, a := range accounts {
		db.Put(a)
	}
	return db, nil
}

func sortedTrustRecipients(m map[accountdb.Address]uint8) []accountdb.Address {
	out := make([]accountdb.Address, 0, len(m))
	for a := range m {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func sortedBalanceTokens(m map[accountdb.Address]u256.U256) []accountdb.Address {
	out := make([]accountdb.Address, 0, len(m))
	for a := range m {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
