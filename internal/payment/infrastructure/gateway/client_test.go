package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/ecommerce/internal/payment/domain"
	"github.com/wyfcoding/ecommerce/pkg/config"
)

const secret = "s3cr3t"

func ref(orderID, paymentID string) domain.Reference {
	return domain.Reference{
		GatewayOrderID: orderID,
		PaymentID:      paymentID,
		Signature:      Sign([]byte(secret), orderID, paymentID),
	}
}

func TestVerifySignatureOnly(t *testing.T) {
	c := NewClient(config.PaymentConfig{KeySecret: secret, Timeout: 1000})

	assert.NoError(t, c.Verify(context.Background(), ref("order_1", "pay_1")))

	bad := ref("order_1", "pay_1")
	bad.Signature = Sign([]byte("other"), "order_1", "pay_1")
	assert.ErrorIs(t, c.Verify(context.Background(), bad), domain.ErrSignatureMismatch)
}

func TestVerifyRemoteStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != secret {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		status := "captured"
		if r.URL.Path == "/v1/payments/pay_failed" {
			status = "failed"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Payment{ID: "x", OrderID: "order_1", Status: status})
	}))
	defer srv.Close()

	c := NewClient(config.PaymentConfig{BaseURL: srv.URL, KeyID: "key", KeySecret: secret, Timeout: 2000})
	ctx := context.Background()

	assert.NoError(t, c.Verify(ctx, ref("order_1", "pay_ok")))
	assert.ErrorIs(t, c.Verify(ctx, ref("order_1", "pay_failed")), domain.ErrPaymentNotCaptured)
	assert.ErrorIs(t, c.Verify(ctx, ref("order_2", "pay_ok")), domain.ErrPaymentNotCaptured)
}

func TestBreakerOpensOnGatewayErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(config.PaymentConfig{BaseURL: srv.URL, KeySecret: secret, Timeout: 2000, BreakerFailures: 2, BreakerOpenSeconds: 60})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.ErrorIs(t, c.Verify(ctx, ref("o", "p")), domain.ErrGatewayUnavailable)
	}
	err := c.Verify(ctx, ref("o", "p"))
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	assert.Equal(t, int32(2), calls.Load())
}
