package csv

import (
	"bytes"
	"encoding/csv"
)

type Record interface {
	Date() string
	Payee() string
	Memo() string
	Amount() string
}

type FilterFunc[T Record] func(T) bool

// Create renders records as CSV with a Date,Payee,Memo,Amount header. Records
// rejected by filter are left out; a nil filter keeps everything.
func Create[T Record](records []T, filter FilterFunc[T]) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Date", "Payee", "Memo", "Amount"}); err != nil {
		return nil, err
	}
	for _, r := range records {
		if filter != nil && !filter(r) {
			continue
		}
		if err := w.Write([]string{r.Date(), r.Payee(), r.Memo(), r.Amount()}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
