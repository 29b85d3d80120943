package transform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yurifrl/splitsync/pkg/classifier"
	"github.com/yurifrl/splitsync/pkg/directory"
	"github.com/yurifrl/splitsync/pkg/models"
)

var (
	ErrInvalidShare = errors.New("invalid owed share")
	ErrInvalidDate  = errors.New("invalid date")
)

const DateLayout = "2006-01-02"

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	DateLayout,
}

// Transformer turns Splitwise expenses into canonical records for one user.
type Transformer struct {
	userID     int64
	classifier classifier.Classifier
}

func New(userID int64, c classifier.Classifier) *Transformer {
	return &Transformer{userID: userID, classifier: c}
}

// Transform classifies raw and resolves the user's share, date and tags. The
// classifier is the only side effect.
func (t *Transformer) Transform(ctx context.Context, raw models.RawTransaction, dir *directory.Directory) (*models.Record, error) {
	categoryID, err := t.classifier.Classify(ctx, raw.Description)
	if err != nil {
		if !errors.Is(err, classifier.ErrClassificationFailed) {
			err = fmt.Errorf("%w: %v", classifier.ErrClassificationFailed, err)
		}
		return nil, err
	}

	amount, err := t.share(raw)
	if err != nil {
		return nil, err
	}

	date, err := NormalizeDate(raw.Date)
	if err != nil {
		return nil, err
	}

	return &models.Record{
		Name:       raw.Description,
		Date:       date,
		Amount:     amount,
		SourceID:   raw.ID,
		CategoryID: categoryID,
		Tags:       dir.Tags(raw.GroupID),
		Currency:   raw.CurrencyCode,
	}, nil
}

func (t *Transformer) share(raw models.RawTransaction) (decimal.Decimal, error) {
	s, ok := raw.ShareOf(t.userID)
	if !ok || s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", ErrInvalidShare, s, err)
	}
	return d, nil
}

// NormalizeDate reduces a Splitwise timestamp to its calendar date, keeping
// the offset it was recorded with.
func NormalizeDate(s string) (string, error) {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format(DateLayout), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
}
