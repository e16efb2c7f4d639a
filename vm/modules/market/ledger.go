package market

import (
	"fmt"

	"github.com/charlesC137/nft-smc/core"
)

// Ledger moves native funds between accounts. Every settlement disbursement
// goes through this capability so each leg can be checked and, on rejection,
// abort the whole sale.
type Ledger interface {
	Transfer(st core.State, from, to string, amount uint64) error
}

// accountLedger is the production Ledger: plain balance moves on state
// accounts.
type accountLedger struct{}

func (accountLedger) Transfer(st core.State, from, to string, amount uint64) error {
	src, err := st.GetAccount(from)
	if err != nil {
		return err
	}
	if src.Balance < amount {
		return fmt.Errorf("insufficient balance: have %d need %d", src.Balance, amount)
	}
	src.Balance -= amount
	if err := st.SetAccount(src); err != nil {
		return err
	}
	dst, err := st.GetAccount(to)
	if err != nil {
		return err
	}
	dst.Balance += amount
	return st.SetAccount(dst)
}

var ledger Ledger = accountLedger{}

// UseLedger swaps the fund-movement backend and returns a restore function.
// Tests inject rejecting or re-entering ledgers to exercise the individual
// settlement legs and the reentrancy guard.
func UseLedger(l Ledger) (restore func()) {
	prev := ledger
	ledger = l
	return func() { ledger = prev }
}
