// Package filter decides which canonical records are budget relevant.
package filter

import (
	"github.com/yurifrl/splitsync/pkg/models"
)

// DefaultSettlementDescription is the description Splitwise gives to the
// expense it creates when balances are settled across groups.
const DefaultSettlementDescription = "Settle all balances"

// Reason explains why a record was excluded. Keep is the zero value.
type Reason string

const (
	Keep       Reason = ""
	Payment    Reason = "payment"
	ZeroShare  Reason = "zero-share"
	Settlement Reason = "settlement"
	Deleted    Reason = "deleted"
)

// SettlementPredicate reports whether raw is a cross-group balance settlement.
type SettlementPredicate func(raw models.RawTransaction) bool

// DescriptionIs matches the description exactly, case included.
func DescriptionIs(sentinel string) SettlementPredicate {
	return func(raw models.RawTransaction) bool {
		return raw.Description == sentinel
	}
}

type Policy struct {
	isSettlement SettlementPredicate
}

// New returns a policy using isSettlement; nil falls back to the default
// description match.
func New(isSettlement SettlementPredicate) *Policy {
	if isSettlement == nil {
		isSettlement = DescriptionIs(DefaultSettlementDescription)
	}
	return &Policy{isSettlement: isSettlement}
}

func (p *Policy) IsBudgetable(record *models.Record, raw models.RawTransaction) bool {
	return p.Reason(record, raw) == Keep
}

// Reason returns the first exclusion rule record hits, or Keep.
func (p *Policy) Reason(record *models.Record, raw models.RawTransaction) Reason {
	switch {
	case raw.DeletedAt != nil:
		return Deleted
	case raw.Payment:
		return Payment
	case p.isSettlement(raw):
		return Settlement
	case record == nil || record.Amount.IsZero():
		return ZeroShare
	}
	return Keep
}
