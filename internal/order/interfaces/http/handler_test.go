package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	address "github.com/wyfcoding/ecommerce/internal/address/domain"
	addressmysql "github.com/wyfcoding/ecommerce/internal/address/infrastructure/persistence/mysql"
	cart "github.com/wyfcoding/ecommerce/internal/cart/domain"
	cartmysql "github.com/wyfcoding/ecommerce/internal/cart/infrastructure/persistence/mysql"
	catalog "github.com/wyfcoding/ecommerce/internal/catalog/domain"
	catalogmysql "github.com/wyfcoding/ecommerce/internal/catalog/infrastructure/persistence/mysql"
	"github.com/wyfcoding/ecommerce/internal/order/application"
	"github.com/wyfcoding/ecommerce/internal/order/domain"
	"github.com/wyfcoding/ecommerce/internal/order/infrastructure/messaging"
	ordermysql "github.com/wyfcoding/ecommerce/internal/order/infrastructure/persistence/mysql"
	"github.com/wyfcoding/ecommerce/pkg/db"
	"github.com/wyfcoding/ecommerce/pkg/money"
)

type env struct {
	router    *gin.Engine
	cmd       *application.OrderCommandService
	products  catalog.ProductRepository
	carts     cart.CartRepository
	addresses address.AddressRepository
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	d, err := db.Init(db.Config{Driver: "sqlite", DSN: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	gdb := d.DB
	require.NoError(t, catalogmysql.AutoMigrate(gdb))
	require.NoError(t, cartmysql.AutoMigrate(gdb))
	require.NoError(t, addressmysql.AutoMigrate(gdb))
	require.NoError(t, ordermysql.AutoMigrate(gdb))
	require.NoError(t, messaging.AutoMigrate(gdb))

	e := &env{
		products:  catalogmysql.NewProductRepository(gdb),
		carts:     cartmysql.NewCartRepository(gdb),
		addresses: addressmysql.NewAddressRepository(gdb),
	}
	orders := ordermysql.NewOrderRepository(gdb)
	e.cmd = application.NewOrderCommandService(application.Dependencies{
		Orders:    orders,
		Products:  e.products,
		Carts:     e.carts,
		Addresses: e.addresses,
		Publisher: messaging.NewOutboxEventPublisher(gdb),
		Tx:        db.NewTransactionManager(gdb),
	}, application.Options{Policy: domain.DefaultPolicy(), ReturnWindowDays: 9, PaymentTimeout: time.Second})

	e.router = gin.New()
	NewOrderHandler(e.cmd, application.NewOrderQueryService(orders)).RegisterRoutes(e.router.Group(""))
	return e
}

func (e *env) seed(t *testing.T, userID uint, stock, qty int) (productID, addressID uint) {
	t.Helper()
	ctx := context.Background()
	price := money.Major(200)
	p := &catalog.Product{Name: "Kettle", BasePrice: &price, StockQuantity: stock}
	require.NoError(t, e.products.Save(ctx, p))
	a := &address.Address{UserID: userID, Recipient: "Ravi", Line1: "4 Hill St", City: "Goa", Country: "IN", Active: true}
	require.NoError(t, e.addresses.Save(ctx, a))
	c := &cart.Cart{UserID: userID}
	require.NoError(t, c.AddItem(p.ID, qty, nil))
	require.NoError(t, e.carts.Save(ctx, c))
	return p.ID, a.ID
}

type envelope struct {
	Code   int             `json:"code"`
	Reason string          `json:"reason"`
	Data   json.RawMessage `json:"data"`
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out envelope
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestPlaceGetCancel(t *testing.T) {
	e := newEnv(t)
	_, addrID := e.seed(t, 7, 5, 2)

	w, body := do(t, e.router, http.MethodPost, "/api/v1/orders", map[string]any{
		"user_id":        7,
		"address_id":     addrID,
		"payment_method": "cod",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	e.cmd.Wait()

	var order domain.Order
	require.NoError(t, json.Unmarshal(body.Data, &order))
	assert.Equal(t, money.Major(400), order.Subtotal)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	path := "/api/v1/orders/" + strconv.FormatUint(uint64(order.ID), 10)

	w, _ = do(t, e.router, http.MethodGet, path+"?user_id=7", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = do(t, e.router, http.MethodGet, path+"?user_id=8", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "order_not_found", body.Reason)

	w, _ = do(t, e.router, http.MethodGet, "/api/v1/orders?user_id=7", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, e.router, http.MethodPost, path+"/cancel", map[string]any{"user_id": 7, "reason": "late"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, body = do(t, e.router, http.MethodPost, path+"/cancel", map[string]any{"user_id": 7})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "illegal_transition", body.Reason)
}

func TestPlaceOrderErrorMapping(t *testing.T) {
	e := newEnv(t)
	_, addrID := e.seed(t, 1, 1, 3)

	w, body := do(t, e.router, http.MethodPost, "/api/v1/orders", map[string]any{
		"user_id": 1, "address_id": addrID, "payment_method": "cod",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "insufficient_stock", body.Reason)

	w, body = do(t, e.router, http.MethodPost, "/api/v1/orders", map[string]any{
		"user_id": 2, "address_id": addrID, "payment_method": "cod",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "address_not_found", body.Reason)

	w, body = do(t, e.router, http.MethodPost, "/api/v1/orders", map[string]any{
		"user_id": 1, "address_id": addrID, "payment_method": "online",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "payment_fields_missing", body.Reason)

	// 未配置网关时在线支付不可用
	w, body = do(t, e.router, http.MethodPost, "/api/v1/orders", map[string]any{
		"user_id": 1, "address_id": addrID, "payment_method": "online",
		"gateway_order_id": "gw", "payment_id": "pay", "signature": "sig",
	})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "payment_gateway_unavailable", body.Reason)

	w, _ = do(t, e.router, http.MethodPost, "/api/v1/orders", map[string]any{"user_id": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, e.router, http.MethodGet, "/api/v1/orders/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateStatusEndpoint(t *testing.T) {
	e := newEnv(t)
	_, addrID := e.seed(t, 3, 5, 1)
	order, err := e.cmd.PlaceOrder(context.Background(), application.PlaceOrderCommand{
		UserID: 3, AddressID: addrID, PaymentMethod: domain.PaymentMethodCOD,
	})
	require.NoError(t, err)
	e.cmd.Wait()
	path := "/api/v1/orders/" + strconv.FormatUint(uint64(order.ID), 10)

	w, _ := do(t, e.router, http.MethodPost, path+"/status", map[string]any{"status": "confirmed"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, body := do(t, e.router, http.MethodPost, path+"/status", map[string]any{"status": "delivered"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "illegal_transition", body.Reason)

	w, body = do(t, e.router, http.MethodPost, path+"/return", map[string]any{"user_id": 3})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "illegal_transition", body.Reason)
}

func TestCancelAndReturnAcceptEmptyBody(t *testing.T) {
	e := newEnv(t)
	_, addrID := e.seed(t, 5, 5, 1)
	order, err := e.cmd.PlaceOrder(context.Background(), application.PlaceOrderCommand{
		UserID: 5, AddressID: addrID, PaymentMethod: domain.PaymentMethodCOD,
	})
	require.NoError(t, err)
	e.cmd.Wait()
	path := "/api/v1/orders/" + strconv.FormatUint(uint64(order.ID), 10)

	// 未发货订单不能退货，但空请求体应进入业务校验而不是 400
	w, body := do(t, e.router, http.MethodPost, path+"/return", nil)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Equal(t, "illegal_transition", body.Reason)

	w, body = do(t, e.router, http.MethodPost, path+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var cancelled domain.Order
	require.NoError(t, json.Unmarshal(body.Data, &cancelled))
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
}
