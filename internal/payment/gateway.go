package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"techwire-be/internal/logger"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

type Gateway interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*ProviderOrder, error)
}

type razorpayGateway struct {
	client *resty.Client
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func NewRazorpayGateway(baseURL, keyID, secret string) Gateway {
	if keyID == "" {
		logger.L().Warn("payment key id is empty")
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetBasicAuth(keyID, secret).
		SetTimeout(15*time.Second).
		SetHeader("Content-Type", "application/json")

	return &razorpayGateway{client: client}
}

// CreateOrder opens a provider order. It is not retried: the provider does
// not deduplicate on receipt.
func (g *razorpayGateway) CreateOrder(ctx context.Context, req CreateOrderRequest) (*ProviderOrder, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("receipt", req.Receipt),
		zap.Int64("amount", req.Amount),
		zap.String("currency", req.Currency),
	)

	var (
		out    ProviderOrder
		failed apiError
	)
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&failed).
		Post("/v1/orders")
	if err != nil {
		log.Error("payment provider request failed", zap.Error(err))
		return nil, err
	}

	if resp.IsError() {
		log.Error("payment provider returned non-success status",
			zap.Int("status", resp.StatusCode()),
			zap.String("code", failed.Error.Code),
			zap.ByteString("response", resp.Body()),
		)
		return nil, fmt.Errorf("provider returned %d: %s", resp.StatusCode(), failed.Error.Description)
	}
	if out.ID == "" {
		return nil, errors.New("provider returned an order without an id")
	}

	log.Info("provider order created", zap.String("provider_order_id", out.ID))
	return &out, nil
}
