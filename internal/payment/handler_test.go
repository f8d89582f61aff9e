package payment

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"techwire-be/internal/order"
	"techwire-be/internal/transport"
	"techwire-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func asClient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(utils.SetUserContext(r.Context(), "client-1", "ann@example.com", utils.RoleClient)))
	})
}

func serve(svc Service, method, path, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r, transport.Guards{Client: asClient})

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_CreateOrder(t *testing.T) {
	payload := `{"amount":36.5,"cart_items":[{"id":"tee","quantity":2,"variantSize":"M"}],"shippingAddress":{"city":"Pune"}}`

	t.Run("success", func(t *testing.T) {
		svc := new(MockService)
		svc.On("InitiatePayment", mock.Anything, mock.MatchedBy(func(in InitiateInput) bool {
			return in.ClientID == "client-1" && in.Amount.Equal(mustDecimal("36.50")) && len(in.Items) == 1
		})).Return(&InitiateResult{
			ProviderOrder: &ProviderOrder{ID: "order_ABC"},
			Order:         &order.Order{OrderID: "ORD-1"},
		}, nil)

		rec := serve(svc, http.MethodPost, "/api/payment/create-order", payload)

		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Success       bool          `json:"success"`
			RazorpayOrder ProviderOrder `json:"razorpayOrder"`
			InternalOrder order.Order   `json:"internalOrder"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Success)
		assert.Equal(t, "order_ABC", body.RazorpayOrder.ID)
		assert.Equal(t, "ORD-1", body.InternalOrder.OrderID)
	})

	cases := []struct {
		name string
		err  error
		code int
	}{
		{"amount mismatch", ErrAmountMismatch, http.StatusBadRequest},
		{"provider down", ErrProviderUnavailable, http.StatusServiceUnavailable},
		{"stock", &order.InsufficientStockError{Title: "Tee", Size: "M"}, http.StatusBadRequest},
		{"client missing", order.ErrClientNotFound, http.StatusNotFound},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockService)
			svc.On("InitiatePayment", mock.Anything, mock.Anything).Return(nil, tc.err)

			rec := serve(svc, http.MethodPost, "/api/payment/create-order", payload)

			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestHandler_VerifyPayment(t *testing.T) {
	payload := `{"payment_id":"pay_XYZ","order_id":"order_ABC","signature":"abc"}`
	want := Confirmation{ProviderOrderID: "order_ABC", PaymentID: "pay_XYZ", Signature: "abc"}

	t.Run("verified", func(t *testing.T) {
		svc := new(MockService)
		svc.On("ConfirmPayment", mock.Anything, want).
			Return(&order.Order{OrderID: "ORD-1", PaymentStatus: order.PaymentPaid}, nil)

		rec := serve(svc, http.MethodPost, "/api/payment/verify-payment", payload)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"message":"Payment verified & stock updated"`)
		svc.AssertExpectations(t)
	})

	t.Run("signature mismatch", func(t *testing.T) {
		svc := new(MockService)
		svc.On("ConfirmPayment", mock.Anything, want).Return(nil, ErrSignatureMismatch)

		rec := serve(svc, http.MethodPost, "/api/payment/verify-payment", payload)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"Payment verification failed: Signature mismatch."}`, rec.Body.String())
	})

	t.Run("order missing", func(t *testing.T) {
		svc := new(MockService)
		svc.On("ConfirmPayment", mock.Anything, want).Return(nil, order.ErrOrderNotFound)

		rec := serve(svc, http.MethodPost, "/api/payment/verify-payment", payload)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
