package repository

import (
	"context"
	"errors"

	"github.com/chamavault/ms-go-mpesa/app/entity"
)

var ErrTransactionAlreadyExists = errors.New("transaction already exists")

type TransactionRepository struct {
	db DBTX
}

func NewTransactionRepository(db DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create relies on the unique key over checkout_request_id: a replayed
// callback surfaces as ErrTransactionAlreadyExists instead of a second
// ledger row.
func (r *TransactionRepository) Create(ctx context.Context, transaction *entity.Transaction) error {
	query := `
		INSERT INTO transactions (
			checkout_request_id, member_ref, amount, currency, description,
			receipt_number, phone_number, transaction_date, status, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		transaction.CheckoutRequestID,
		nullableStringValue(transaction.MemberRef),
		transaction.Amount,
		transaction.Currency,
		transaction.Description,
		transaction.ReceiptNumber,
		transaction.PhoneNumber,
		transaction.TransactionDate,
		transaction.Status,
		transaction.CreatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrTransactionAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	transaction.ID = uint64(id)

	return nil
}
