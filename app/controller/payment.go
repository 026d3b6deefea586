package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/chamavault/ms-go-mpesa/app/factory"
	"github.com/chamavault/ms-go-mpesa/app/mapper"
	"github.com/chamavault/ms-go-mpesa/app/provider"
	"github.com/chamavault/ms-go-mpesa/app/service"
	"github.com/chamavault/ms-go-mpesa/app/types"
)

type PaymentController struct {
	paymentService *service.PaymentService
	logger         logrus.FieldLogger
}

func NewPaymentController(paymentService *service.PaymentService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		logger:         factory.NewModuleLogger("payments-controller"),
	}
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *PaymentController) InitiateSTKPush(ctx echo.Context) error {
	req, err := types.NewStkPushRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.InitiateSTKPush(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrGatewayUnsupported):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrPaymentRequestAlreadyExists):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		case errors.Is(err, provider.ErrPaymentRejected):
			// the gateway's description is meant for user display
			return c.writeError(ctx, http.StatusPaymentRequired, err.Error())
		case errors.Is(err, provider.ErrAuthenticationFailed), errors.Is(err, provider.ErrNetwork):
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("STK push gateway failure")
			return c.writeError(ctx, http.StatusBadGateway, "payment gateway unavailable")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Initiate STK push failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusCreated, &types.PaymentRequestEnvelopeResponse{PaymentRequest: mapper.PaymentRequestToResponse(item)})
}

func (c *PaymentController) GetPaymentRequest(ctx echo.Context) error {
	req, err := types.NewGetPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.GetPaymentRequest(ctx.Request().Context(), req.Id)
	if err != nil {
		if errors.Is(err, service.ErrPaymentRequestNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "payment request not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get payment request failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.PaymentRequestEnvelopeResponse{PaymentRequest: mapper.PaymentRequestToResponse(item)})
}

func (c *PaymentController) ListPaymentRequests(ctx echo.Context) error {
	req, err := types.NewListPaymentsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.paymentService.ListPaymentRequests(ctx.Request().Context(), req)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List payment requests failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListPaymentRequestsResponse{PaymentRequests: mapper.PaymentRequestsToResponse(items)})
}

func (c *PaymentController) QueryStatus(ctx echo.Context) error {
	req, err := types.NewStatusQueryRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	output, err := c.paymentService.QueryStatus(ctx.Request().Context(), req.CheckoutRequestId)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, provider.ErrRequestNotFound):
			return c.writeError(ctx, http.StatusNotFound, "checkout request not found")
		case errors.Is(err, provider.ErrAuthenticationFailed), errors.Is(err, provider.ErrNetwork):
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Status query gateway failure")
			return c.writeError(ctx, http.StatusBadGateway, "payment gateway unavailable")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Status query failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.StatusQueryResponse{
		CheckoutRequestId: req.CheckoutRequestId,
		Pending:           output.Pending,
		ResultCode:        output.ResultCode,
		ResultDesc:        output.ResultDesc,
	})
}

// HandleMpesaCallback always acknowledges with 200 and the ResultCode 0
// body; a non-200 answer makes the gateway retry the delivery. Internal
// failures are only logged, with persistence failures labeled apart from
// payment failures.
func (c *PaymentController) HandleMpesaCallback(ctx echo.Context) error {
	req, err := types.NewMpesaCallbackRequestFromContext(ctx)
	if err != nil {
		c.logger.WithError(err).Error("Failed to read callback body")
		return ctx.JSON(http.StatusOK, &types.CallbackAckResponse{ResultCode: 0, ResultDesc: "Success"})
	}

	if err := c.paymentService.HandleMpesaCallback(ctx.Request().Context(), req); err != nil {
		entry := c.logger.WithError(err).
			WithField("checkout_request_id", req.Callback.CheckoutRequestID)
		switch {
		case errors.Is(err, service.ErrPersistence):
			entry.WithField("failure_class", "persistence").Error("Callback persistence failed")
		case errors.Is(err, service.ErrCallbackRejected):
			entry.WithField("failure_class", "rejected").Warn("Callback rejected")
		default:
			entry.WithField("failure_class", "payment").Error("Callback processing failed")
		}
	}

	return ctx.JSON(http.StatusOK, &types.CallbackAckResponse{ResultCode: 0, ResultDesc: "Success"})
}

func (c *PaymentController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
