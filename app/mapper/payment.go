package mapper

import (
	"time"

	"github.com/chamavault/ms-go-mpesa/app/entity"
	"github.com/chamavault/ms-go-mpesa/app/provider"
	"github.com/chamavault/ms-go-mpesa/app/types"
)

func PaymentRequestToResponse(item *entity.PaymentRequest) *types.PaymentRequest {
	if item == nil {
		return nil
	}

	return &types.PaymentRequest{
		Id:                item.ID,
		RequestId:         item.RequestID,
		MemberRef:         derefString(item.MemberRef),
		PhoneNumber:       item.PhoneNumber,
		Amount:            item.Amount,
		Currency:          item.Currency,
		AccountReference:  item.AccountReference,
		Description:       item.Description,
		Gateway:           gatewayLabel(item.Gateway),
		MerchantRequestId: item.MerchantRequestID,
		CheckoutRequestId: item.CheckoutRequestID,
		Status:            types.PaymentRequestStatusLabel(item.Status),
		ResultCode:        item.ResultCode,
		ResultDesc:        derefString(item.ResultDesc),
		ReceiptNumber:     derefString(item.ReceiptNumber),
		TransactionDate:   formatOptionalTime(item.TransactionDate),
		CreatedAt:         item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func PaymentRequestsToResponse(items []*entity.PaymentRequest) []*types.PaymentRequest {
	result := make([]*types.PaymentRequest, 0, len(items))
	for _, item := range items {
		result = append(result, PaymentRequestToResponse(item))
	}
	return result
}

func gatewayLabel(code int32) string {
	switch code {
	case provider.GatewayDaraja:
		return "daraja"
	case provider.GatewaySandbox:
		return "sandbox"
	default:
		return "unknown"
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatOptionalTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}
