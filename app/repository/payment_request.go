package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/chamavault/ms-go-mpesa/app/entity"
)

var (
	ErrPaymentRequestNotFound      = errors.New("payment request not found")
	ErrPaymentRequestAlreadyExists = errors.New("payment request already exists")
)

type PaymentRequestFilter struct {
	PhoneNumber string
	MemberRef   string
	HasStatus   bool
	Status      int32
	Limit       int32
	Offset      int32
}

const paymentRequestColumns = `id, request_id, member_ref, phone_number, amount, currency,
	account_reference, description, gateway, merchant_request_id, checkout_request_id,
	status, result_code, result_desc, receipt_number, transaction_date,
	created_at, updated_at`

type PaymentRequestRepository struct {
	db DBTX
}

func NewPaymentRequestRepository(db DBTX) *PaymentRequestRepository {
	return &PaymentRequestRepository{db: db}
}

func (r *PaymentRequestRepository) Create(ctx context.Context, request *entity.PaymentRequest) error {
	query := `
		INSERT INTO payment_requests (
			request_id, member_ref, phone_number, amount, currency,
			account_reference, description, gateway, merchant_request_id, checkout_request_id,
			status, result_code, result_desc, receipt_number, transaction_date,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		request.RequestID,
		nullableStringValue(request.MemberRef),
		request.PhoneNumber,
		request.Amount,
		request.Currency,
		request.AccountReference,
		request.Description,
		request.Gateway,
		request.MerchantRequestID,
		request.CheckoutRequestID,
		request.Status,
		nullableInt32Value(request.ResultCode),
		nullableStringValue(request.ResultDesc),
		nullableStringValue(request.ReceiptNumber),
		nullableTimeValue(request.TransactionDate),
		request.CreatedAt,
		request.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrPaymentRequestAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	request.ID = uint64(id)
	return nil
}

func (r *PaymentRequestRepository) Update(ctx context.Context, request *entity.PaymentRequest) error {
	query := `
		UPDATE payment_requests SET
			status = ?,
			result_code = ?,
			result_desc = ?,
			receipt_number = ?,
			transaction_date = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		request.Status,
		nullableInt32Value(request.ResultCode),
		nullableStringValue(request.ResultDesc),
		nullableStringValue(request.ReceiptNumber),
		nullableTimeValue(request.TransactionDate),
		request.UpdatedAt,
		request.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPaymentRequestNotFound
	}
	return nil
}

func (r *PaymentRequestRepository) FindByID(ctx context.Context, id uint64) (*entity.PaymentRequest, error) {
	query := `SELECT ` + paymentRequestColumns + ` FROM payment_requests WHERE id = ? LIMIT 1`

	request := &entity.PaymentRequest{}
	if err := scanPaymentRequest(r.db.QueryRowContext(ctx, query, id), request); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return request, nil
}

func (r *PaymentRequestRepository) FindByRequestID(ctx context.Context, requestID string) (*entity.PaymentRequest, error) {
	query := `SELECT ` + paymentRequestColumns + ` FROM payment_requests WHERE request_id = ? LIMIT 1`

	request := &entity.PaymentRequest{}
	if err := scanPaymentRequest(r.db.QueryRowContext(ctx, query, requestID), request); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return request, nil
}

func (r *PaymentRequestRepository) FindByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*entity.PaymentRequest, error) {
	query := `SELECT ` + paymentRequestColumns + ` FROM payment_requests WHERE checkout_request_id = ? LIMIT 1`

	request := &entity.PaymentRequest{}
	if err := scanPaymentRequest(r.db.QueryRowContext(ctx, query, checkoutRequestID), request); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return request, nil
}

func (r *PaymentRequestRepository) List(ctx context.Context, filter PaymentRequestFilter) ([]*entity.PaymentRequest, error) {
	query := `SELECT ` + paymentRequestColumns + ` FROM payment_requests`

	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 5)

	if strings.TrimSpace(filter.PhoneNumber) != "" {
		conditions = append(conditions, "phone_number = ?")
		args = append(args, filter.PhoneNumber)
	}
	if strings.TrimSpace(filter.MemberRef) != "" {
		conditions = append(conditions, "member_ref = ?")
		args = append(args, filter.MemberRef)
	}
	if filter.HasStatus {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPaymentRequests(rows)
}

func (r *PaymentRequestRepository) ListStalePending(ctx context.Context, before time.Time, limit int32) ([]*entity.PaymentRequest, error) {
	query := `SELECT ` + paymentRequestColumns + `
		FROM payment_requests
		WHERE status = ?
		  AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, entity.PaymentRequestPending, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPaymentRequests(rows)
}

func (r *PaymentRequestRepository) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.PaymentRequest, error) {
	query := `SELECT ` + paymentRequestColumns + `
		FROM payment_requests
		WHERE status = ?
		  AND created_at <= ?
		ORDER BY created_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, entity.PaymentRequestPending, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectPaymentRequests(rows)
}

func collectPaymentRequests(rows *sql.Rows) ([]*entity.PaymentRequest, error) {
	requests := make([]*entity.PaymentRequest, 0)
	for rows.Next() {
		item, err := scanPaymentRequestFromRows(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPaymentRequest(row rowScanner, request *entity.PaymentRequest) error {
	var (
		memberRef       sql.NullString
		resultCode      sql.NullInt32
		resultDesc      sql.NullString
		receiptNumber   sql.NullString
		transactionDate sql.NullTime
	)

	if err := row.Scan(
		&request.ID,
		&request.RequestID,
		&memberRef,
		&request.PhoneNumber,
		&request.Amount,
		&request.Currency,
		&request.AccountReference,
		&request.Description,
		&request.Gateway,
		&request.MerchantRequestID,
		&request.CheckoutRequestID,
		&request.Status,
		&resultCode,
		&resultDesc,
		&receiptNumber,
		&transactionDate,
		&request.CreatedAt,
		&request.UpdatedAt,
	); err != nil {
		return err
	}

	request.MemberRef = stringPtrFromNull(memberRef)
	request.ResultCode = int32PtrFromNull(resultCode)
	request.ResultDesc = stringPtrFromNull(resultDesc)
	request.ReceiptNumber = stringPtrFromNull(receiptNumber)
	request.TransactionDate = timePtrFromNull(transactionDate)
	return nil
}

func scanPaymentRequestFromRows(rows *sql.Rows) (*entity.PaymentRequest, error) {
	request := &entity.PaymentRequest{}
	if err := scanPaymentRequest(rows, request); err != nil {
		return nil, err
	}
	return request, nil
}
