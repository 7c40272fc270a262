package repository

import (
	"context"
	"time"

	"github.com/dht-dimaond/diamond/internal/domain"
	"github.com/dht-dimaond/diamond/internal/store"

	"github.com/google/uuid"
)

// TransactionsCollection holds the append-only purchase sub-ledger, one
// document per confirmed payment, field-indexed by the owning user.
const TransactionsCollection = "transactions"

// receiptRefLen is how much of the chain receipt (boc) is kept for display.
// The full payload never enters the ledger.
const receiptRefLen = 24

// TruncateReceipt reduces a chain receipt to its stored display form.
func TruncateReceipt(boc string) string {
	if len(boc) <= receiptRefLen {
		return boc
	}
	return boc[:receiptRefLen] + "..."
}

// TransactionLog is the append-only per-user record of purchase events.
// There is no update or delete operation.
type TransactionLog struct {
	store store.Store
}

func NewTransactionLog(s store.Store) *TransactionLog {
	return &TransactionLog{store: s}
}

// Record inserts one purchase record. Called only after an external payment
// confirmation; the hashrate credit is a separate write owned by the caller.
func (l *TransactionLog) Record(ctx context.Context, t *domain.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Date.IsZero() {
		t.Date = time.Now().UTC()
	}
	t.ReceiptRef = TruncateReceipt(t.ReceiptRef)

	doc, err := store.Encode(t)
	if err != nil {
		return err
	}
	return l.store.Set(ctx, TransactionsCollection, t.ID, doc, false)
}

// List returns every purchase for a user. Order is not guaranteed; callers
// sort by date when it matters.
func (l *TransactionLog) List(ctx context.Context, userID int64) ([]domain.Transaction, error) {
	docs, err := l.store.QueryIn(ctx, TransactionsCollection, "userId", []any{userID})
	if err != nil {
		return nil, err
	}

	out := make([]domain.Transaction, 0, len(docs))
	for _, doc := range docs {
		var t domain.Transaction
		if err := store.Decode(doc, &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
