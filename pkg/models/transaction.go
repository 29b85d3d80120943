package models

import (
	"github.com/shopspring/decimal"
)

// Share is one participant's part of an upstream expense.
type Share struct {
	UserID    int64  `json:"user_id"`
	OwedShare string `json:"owed_share"`
}

// RawTransaction is an expense as returned by the Splitwise API. It is owned by
// the upstream service and never modified.
type RawTransaction struct {
	ID           int64   `json:"id"`
	Description  string  `json:"description"`
	Date         string  `json:"date"`
	Cost         string  `json:"cost"`
	CurrencyCode string  `json:"currency_code"`
	GroupID      *int64  `json:"group_id"`
	Payment      bool    `json:"payment"`
	DeletedAt    *string `json:"deleted_at"`
	Users        []Share `json:"users"`
}

// ShareOf returns the owed share of userID. ok is false when the user is not a
// participant.
func (t *RawTransaction) ShareOf(userID int64) (share string, ok bool) {
	for _, u := range t.Users {
		if u.UserID == userID {
			return u.OwedShare, true
		}
	}
	return "", false
}

// Group is a Splitwise group. Groups only live for the duration of one run.
type Group struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// User is the authenticated Splitwise user.
type User struct {
	ID        int64  `json:"id" yaml:"id"`
	FirstName string `json:"first_name" yaml:"first_name"`
	LastName  string `json:"last_name" yaml:"last_name"`
	Email     string `json:"email" yaml:"email"`
}

// Record is the canonical expense handed to a sink. SourceID is the Splitwise
// expense id and doubles as the idempotency key.
type Record struct {
	Name       string
	Date       string
	Amount     decimal.Decimal
	SourceID   int64
	CategoryID int64
	Tags       []string
	Currency   string
}
