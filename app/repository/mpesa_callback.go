package repository

import (
	"context"

	"github.com/chamavault/ms-go-mpesa/app/entity"
)

type MpesaCallbackRepository struct {
	db DBTX
}

func NewMpesaCallbackRepository(db DBTX) *MpesaCallbackRepository {
	return &MpesaCallbackRepository{db: db}
}

func (r *MpesaCallbackRepository) Create(ctx context.Context, callback *entity.MpesaCallback) error {
	query := `
		INSERT INTO mpesa_callbacks (
			payment_request_id, merchant_request_id, checkout_request_id,
			result_code, result_desc, payload_json, status, error, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableUint64Value(callback.PaymentRequestID),
		callback.MerchantRequestID,
		callback.CheckoutRequestID,
		callback.ResultCode,
		callback.ResultDesc,
		callback.PayloadJSON,
		callback.Status,
		nullableStringValue(callback.Error),
		callback.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	callback.ID = uint64(id)

	return nil
}
