package application

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	address "github.com/wyfcoding/ecommerce/internal/address/domain"
	addressmysql "github.com/wyfcoding/ecommerce/internal/address/infrastructure/persistence/mysql"
	cart "github.com/wyfcoding/ecommerce/internal/cart/domain"
	cartmysql "github.com/wyfcoding/ecommerce/internal/cart/infrastructure/persistence/mysql"
	catalog "github.com/wyfcoding/ecommerce/internal/catalog/domain"
	catalogmysql "github.com/wyfcoding/ecommerce/internal/catalog/infrastructure/persistence/mysql"
	"github.com/wyfcoding/ecommerce/internal/order/domain"
	"github.com/wyfcoding/ecommerce/internal/order/infrastructure/messaging"
	ordermysql "github.com/wyfcoding/ecommerce/internal/order/infrastructure/persistence/mysql"
	payment "github.com/wyfcoding/ecommerce/internal/payment/domain"
	"github.com/wyfcoding/ecommerce/pkg/db"
	"github.com/wyfcoding/ecommerce/pkg/metrics"
	"github.com/wyfcoding/ecommerce/pkg/money"
	"gorm.io/gorm"
)

type fakeVerifier struct {
	err   error
	calls int
}

func (f *fakeVerifier) Verify(_ context.Context, _ payment.Reference) error {
	f.calls++
	return f.err
}

// staleProducts 第一次读取时返回虚高库存，模拟读后被并发扣减
type staleProducts struct {
	catalog.ProductRepository
	reads atomic.Int32
}

func (s *staleProducts) GetByID(ctx context.Context, id uint) (*catalog.Product, error) {
	p, err := s.ProductRepository.GetByID(ctx, id)
	if err != nil || p == nil {
		return p, err
	}
	if s.reads.Add(1) == 1 {
		p.StockQuantity = 100
	}
	return p, nil
}

// gatedCarts 在放行前阻塞购物车清理，模拟提交后、清理前用户继续加购
type gatedCarts struct {
	cart.CartRepository
	release chan struct{}
}

func (g *gatedCarts) RemoveConsumed(ctx context.Context, userID uint, consumed []cart.CartItem) error {
	<-g.release
	return g.CartRepository.RemoveConsumed(ctx, userID, consumed)
}

type fixture struct {
	t         *testing.T
	gdb       *gorm.DB
	svc       *OrderCommandService
	query     *OrderQueryService
	products  catalog.ProductRepository
	carts     cart.CartRepository
	addresses address.AddressRepository
	verifier  *fakeVerifier
	metrics   *metrics.Metrics
	now       time.Time
}

func newFixture(t *testing.T, wrap func(catalog.ProductRepository) catalog.ProductRepository) *fixture {
	t.Helper()
	d, err := db.Init(db.Config{Driver: "sqlite", DSN: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	gdb := d.DB
	require.NoError(t, catalogmysql.AutoMigrate(gdb))
	require.NoError(t, cartmysql.AutoMigrate(gdb))
	require.NoError(t, addressmysql.AutoMigrate(gdb))
	require.NoError(t, ordermysql.AutoMigrate(gdb))
	require.NoError(t, messaging.AutoMigrate(gdb))

	f := &fixture{
		t:         t,
		gdb:       gdb,
		products:  catalogmysql.NewProductRepository(gdb),
		carts:     cartmysql.NewCartRepository(gdb),
		addresses: addressmysql.NewAddressRepository(gdb),
		verifier:  &fakeVerifier{},
		metrics:   metrics.New("order_test"),
		now:       time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	products := f.products
	if wrap != nil {
		products = wrap(products)
	}
	orders := ordermysql.NewOrderRepository(gdb)
	f.svc = NewOrderCommandService(Dependencies{
		Orders:    orders,
		Products:  products,
		Carts:     f.carts,
		Addresses: f.addresses,
		Verifier:  f.verifier,
		Publisher: messaging.NewOutboxEventPublisher(gdb),
		Tx:        db.NewTransactionManager(gdb),
		Metrics:   f.metrics,
	}, Options{
		Policy:           domain.DefaultPolicy(),
		ReturnWindowDays: 9,
		PaymentTimeout:   time.Second,
		Clock:            func() time.Time { return f.now },
	})
	f.query = NewOrderQueryService(orders)
	return f
}

func (f *fixture) product(name string, price money.Amount, stock int) *catalog.Product {
	f.t.Helper()
	p := &catalog.Product{Name: name, Description: name + " description", BasePrice: &price, StockQuantity: stock}
	require.NoError(f.t, f.products.Save(context.Background(), p))
	return p
}

func (f *fixture) address(userID uint) *address.Address {
	f.t.Helper()
	a := &address.Address{UserID: userID, Recipient: "Asha", Phone: "9000000000", Line1: "12 Lake Rd", City: "Pune", State: "MH", PostalCode: "411001", Country: "IN", Active: true}
	require.NoError(f.t, f.addresses.Save(context.Background(), a))
	return a
}

func (f *fixture) fillCart(userID uint, p *catalog.Product, qty int, price *money.Amount) {
	f.t.Helper()
	ctx := context.Background()
	c, err := f.carts.GetByUserID(ctx, userID)
	require.NoError(f.t, err)
	if c == nil {
		c = &cart.Cart{UserID: userID}
	}
	require.NoError(f.t, c.AddItem(p.ID, qty, price))
	require.NoError(f.t, f.carts.Save(ctx, c))
}

func (f *fixture) stock(id uint) int {
	f.t.Helper()
	p, err := f.products.GetByID(context.Background(), id)
	require.NoError(f.t, err)
	return p.StockQuantity
}

func (f *fixture) count(model any, where ...any) int64 {
	f.t.Helper()
	var n int64
	q := f.gdb.Model(model)
	if len(where) > 0 {
		q = q.Where(where[0], where[1:]...)
	}
	require.NoError(f.t, q.Count(&n).Error)
	return n
}

func (f *fixture) cod(userID, addressID uint) PlaceOrderCommand {
	return PlaceOrderCommand{UserID: userID, AddressID: addressID, PaymentMethod: domain.PaymentMethodCOD}
}

func TestPlaceOrderComputesTotalsAndCommits(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	lamp := f.product("Lamp", money.Major(500), 5)
	addr := f.address(1)
	frozen := money.Major(500)
	f.fillCart(1, lamp, 2, &frozen)

	order, err := f.svc.PlaceOrder(ctx, f.cod(1, addr.ID))
	require.NoError(t, err)
	f.svc.Wait()

	assert.Regexp(t, regexp.MustCompile(`^ORD20260501\d{6}$`), order.OrderNumber)
	assert.Equal(t, money.Major(1000), order.Subtotal)
	assert.Equal(t, money.Major(150), order.Discount)
	assert.Equal(t, money.Major(153), order.Tax)
	assert.Equal(t, money.Zero, order.Shipping)
	assert.Equal(t, money.Major(1003), order.Total)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)

	require.Len(t, order.Items, 1)
	assert.Equal(t, "Lamp", order.Items[0].ProductName)
	assert.Equal(t, money.Major(1000), order.Items[0].TotalPrice)

	assert.Equal(t, 3, f.stock(lamp.ID))
	assert.Equal(t, int64(1), f.count(&messaging.OutboxMessage{}, "event_type = ?", domain.EventOrderPlaced))

	c, err := f.carts.GetByUserID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	loaded, err := f.query.GetOrder(ctx, order.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, order.Total, loaded.Total)
	require.Len(t, loaded.Items, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OrdersPlaced))
}

func TestPlaceOrderUsesCurrentPriceWhenNotFrozen(t *testing.T) {
	f := newFixture(t, nil)
	p := f.product("Cup", money.Major(10), 5)
	require.NoError(t, f.products.UpdateCalculatedPrice(context.Background(), p.ID, money.Major(12)))
	addr := f.address(1)
	f.fillCart(1, p, 1, nil)

	order, err := f.svc.PlaceOrder(context.Background(), f.cod(1, addr.ID))
	require.NoError(t, err)
	f.svc.Wait()
	assert.Equal(t, money.Major(12), order.Items[0].UnitPrice)
	// 未超过免运费门槛
	assert.Equal(t, money.Major(40), order.Shipping)
}

func TestPlaceOrderRejectsOverStockLine(t *testing.T) {
	f := newFixture(t, nil)
	lamp := f.product("Lamp", money.Major(100), 1)
	addr := f.address(1)
	f.fillCart(1, lamp, 2, nil)

	_, err := f.svc.PlaceOrder(context.Background(), f.cod(1, addr.ID))
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, "insufficient stock for Lamp: available 1, requested 2", err.Error())

	assert.Equal(t, 1, f.stock(lamp.ID))
	assert.Zero(t, f.count(&ordermysql.OrderModel{}))
	assert.Zero(t, f.count(&messaging.OutboxMessage{}))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OrderRejections.WithLabelValues("insufficient_stock")))
}

func TestPlaceOrderConditionalDecrementCatchesStaleRead(t *testing.T) {
	stale := &staleProducts{}
	f := newFixture(t, func(r catalog.ProductRepository) catalog.ProductRepository {
		stale.ProductRepository = r
		return stale
	})
	lamp := f.product("Lamp", money.Major(100), 1)
	addr := f.address(1)
	f.fillCart(1, lamp, 2, nil)

	_, err := f.svc.PlaceOrder(context.Background(), f.cod(1, addr.ID))
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "available 1, requested 2")

	assert.Equal(t, 1, f.stock(lamp.ID))
	assert.Zero(t, f.count(&ordermysql.OrderModel{}))
	assert.Zero(t, f.count(&ordermysql.OrderItemModel{}))
	assert.Zero(t, f.count(&messaging.OutboxMessage{}))
}

func TestConcurrentPlacementsOnLastUnit(t *testing.T) {
	f := newFixture(t, nil)
	lamp := f.product("Lamp", money.Major(100), 1)
	users := []uint{1, 2}
	addrs := make(map[uint]uint)
	for _, u := range users {
		addrs[u] = f.address(u).ID
		f.fillCart(u, lamp, 1, nil)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(users))
	for i, u := range users {
		wg.Add(1)
		go func(i int, u uint) {
			defer wg.Done()
			_, errs[i] = f.svc.PlaceOrder(context.Background(), f.cod(u, addrs[u]))
		}(i, u)
	}
	wg.Wait()
	f.svc.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, f.stock(lamp.ID))
	assert.Equal(t, int64(1), f.count(&ordermysql.OrderModel{}))
}

func TestPlaceOrderPreconditions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := f.product("Lamp", money.Major(100), 10)
	mine := f.address(1)
	other := f.address(2)

	_, err := f.svc.PlaceOrder(ctx, PlaceOrderCommand{UserID: 1, AddressID: mine.ID, PaymentMethod: "card"})
	assert.ErrorIs(t, err, domain.ErrInvalidCommand)

	_, err = f.svc.PlaceOrder(ctx, f.cod(1, other.ID))
	assert.ErrorIs(t, err, domain.ErrAddressNotFound)

	_, err = f.svc.PlaceOrder(ctx, f.cod(1, mine.ID))
	assert.ErrorIs(t, err, domain.ErrEmptyCart)

	unpriced := &catalog.Product{Name: "Sample", StockQuantity: 3}
	require.NoError(t, f.products.Save(ctx, unpriced))
	f.fillCart(1, unpriced, 1, nil)
	f.fillCart(1, p, 1, nil)
	_, err = f.svc.PlaceOrder(ctx, f.cod(1, mine.ID))
	assert.ErrorIs(t, err, domain.ErrUnpricedProduct)
	assert.Equal(t, 10, f.stock(p.ID))
}

func TestOnlinePaymentVerification(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := f.product("Lamp", money.Major(100), 3)
	addr := f.address(1)
	f.fillCart(1, p, 1, nil)

	cmd := PlaceOrderCommand{UserID: 1, AddressID: addr.ID, PaymentMethod: domain.PaymentMethodOnline}
	_, err := f.svc.PlaceOrder(ctx, cmd)
	assert.ErrorIs(t, err, domain.ErrPaymentFieldsMissing)
	assert.Zero(t, f.verifier.calls)

	cmd.Payment = payment.Reference{GatewayOrderID: "gw_1", PaymentID: "pay_1", Signature: "sig"}
	f.verifier.err = payment.ErrSignatureMismatch
	_, err = f.svc.PlaceOrder(ctx, cmd)
	assert.ErrorIs(t, err, domain.ErrPaymentVerificationFailed)
	assert.ErrorIs(t, err, payment.ErrSignatureMismatch)
	assert.Equal(t, 3, f.stock(p.ID))
	assert.Zero(t, f.count(&ordermysql.OrderModel{}))

	f.verifier.err = nil
	order, err := f.svc.PlaceOrder(ctx, cmd)
	require.NoError(t, err)
	f.svc.Wait()
	assert.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, "pay_1", order.GatewayPaymentID)
	assert.Equal(t, 2, f.stock(p.ID))
}

func (f *fixture) placed(userID uint, p *catalog.Product, qty int) *domain.Order {
	f.t.Helper()
	addr := f.address(userID)
	f.fillCart(userID, p, qty, nil)
	order, err := f.svc.PlaceOrder(context.Background(), f.cod(userID, addr.ID))
	require.NoError(f.t, err)
	f.svc.Wait()
	return order
}

func (f *fixture) advance(order *domain.Order, statuses ...domain.OrderStatus) {
	f.t.Helper()
	for _, s := range statuses {
		_, err := f.svc.UpdateOrderStatus(context.Background(), UpdateOrderStatusCommand{OrderID: order.ID, Status: s})
		require.NoError(f.t, err)
	}
}

var toDelivered = []domain.OrderStatus{
	domain.OrderStatusConfirmed,
	domain.OrderStatusProcessing,
	domain.OrderStatusShipped,
	domain.OrderStatusDelivered,
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := f.product("Lamp", money.Major(100), 5)

	pending := f.placed(1, p, 2)
	assert.Equal(t, 3, f.stock(p.ID))

	_, err := f.svc.CancelOrder(ctx, CancelOrderCommand{OrderID: pending.ID, UserID: 99})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	cancelled, err := f.svc.CancelOrder(ctx, CancelOrderCommand{OrderID: pending.ID, UserID: 1, Reason: "changed mind"})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, 5, f.stock(p.ID))
	assert.Equal(t, int64(1), f.count(&messaging.OutboxMessage{}, "event_type = ?", domain.EventOrderCancelled))

	_, err = f.svc.CancelOrder(ctx, CancelOrderCommand{OrderID: pending.ID, UserID: 1})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	delivered := f.placed(2, p, 1)
	f.advance(delivered, toDelivered...)
	_, err = f.svc.CancelOrder(ctx, CancelOrderCommand{OrderID: delivered.ID, UserID: 2})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	assert.Equal(t, 4, f.stock(p.ID))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.OrdersCancelled))
}

func TestUpdateOrderStatus(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := f.product("Lamp", money.Major(100), 5)
	order := f.placed(1, p, 1)

	_, err := f.svc.UpdateOrderStatus(ctx, UpdateOrderStatusCommand{OrderID: order.ID, Status: domain.OrderStatusShipped})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	_, err = f.svc.UpdateOrderStatus(ctx, UpdateOrderStatusCommand{OrderID: order.ID, Status: domain.OrderStatusCancelled})
	assert.ErrorIs(t, err, domain.ErrInvalidCommand)

	_, err = f.svc.UpdateOrderStatus(ctx, UpdateOrderStatusCommand{OrderID: 404, Status: domain.OrderStatusConfirmed})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	f.advance(order, toDelivered...)
	loaded, err := f.query.GetOrder(ctx, order.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, loaded.Status)
	assert.Equal(t, domain.PaymentStatusPaid, loaded.PaymentStatus)
	require.NotNil(t, loaded.DeliveredAt)
	assert.True(t, loaded.DeliveredAt.Equal(f.now))
	assert.Equal(t, int64(4), f.count(&messaging.OutboxMessage{}, "event_type = ?", domain.EventOrderStatusChanged))
}

func TestRequestReturnWindow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := f.product("Lamp", money.Major(100), 5)
	deliveredAt := f.now

	inWindow := f.placed(1, p, 1)
	f.advance(inWindow, toDelivered...)
	late := f.placed(2, p, 1)
	f.advance(late, toDelivered...)

	f.now = deliveredAt.Add(9*24*time.Hour + 23*time.Hour)
	returned, err := f.svc.RequestReturn(ctx, RequestReturnCommand{OrderID: inWindow.ID, UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusReturnRequested, returned.Status)

	f.now = deliveredAt.Add(10 * 24 * time.Hour)
	_, err = f.svc.RequestReturn(ctx, RequestReturnCommand{OrderID: late.ID, UserID: 2})
	assert.ErrorIs(t, err, domain.ErrReturnWindowExpired)

	_, err = f.svc.UpdateOrderStatus(ctx, UpdateOrderStatusCommand{OrderID: inWindow.ID, Status: domain.OrderStatusReturned})
	require.NoError(t, err)
	final, err := f.query.GetOrder(ctx, inWindow.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusReturned, final.Status)
	assert.Equal(t, domain.PaymentStatusRefunded, final.PaymentStatus)
}

func TestListOrders(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	p := f.product("Lamp", money.Major(100), 10)
	first := f.placed(1, p, 1)
	f.placed(1, p, 1)
	_, err := f.svc.CancelOrder(ctx, CancelOrderCommand{OrderID: first.ID, UserID: 1})
	require.NoError(t, err)

	all, err := f.query.ListOrders(ctx, 1, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.Pagination.Total)
	require.Len(t, all.Items, 2)

	cancelled, err := f.query.ListOrders(ctx, 1, domain.OrderStatusCancelled, 1, 10)
	require.NoError(t, err)
	require.Len(t, cancelled.Items, 1)
	assert.Equal(t, first.ID, cancelled.Items[0].ID)

	_, err = f.query.ListOrders(ctx, 0, "", 1, 10)
	assert.True(t, errors.Is(err, domain.ErrInvalidCommand))
}

func TestPlaceOrderNonPositivePriceIsUnpriced(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	addr := f.address(1)
	zero := money.Zero

	broken := &catalog.Product{Name: "Broken", CalculatedPrice: &zero, StockQuantity: 5}
	require.NoError(t, f.products.Save(ctx, broken))
	f.fillCart(1, broken, 1, nil)
	_, err := f.svc.PlaceOrder(ctx, f.cod(1, addr.ID))
	assert.ErrorIs(t, err, domain.ErrUnpricedProduct)

	// 冻结价为 0 时回退到商品当前价
	f2 := newFixture(t, nil)
	addr2 := f2.address(2)
	mug := f2.product("Mug", money.Major(300), 5)
	f2.fillCart(2, mug, 1, &zero)
	order, err := f2.svc.PlaceOrder(ctx, f2.cod(2, addr2.ID))
	require.NoError(t, err)
	f2.svc.Wait()
	assert.Equal(t, money.Major(300), order.Items[0].UnitPrice)

	// 冻结价与当前价均不为正
	f3 := newFixture(t, nil)
	addr3 := f3.address(3)
	bad := &catalog.Product{Name: "Bad", BasePrice: &zero, StockQuantity: 5}
	require.NoError(t, f3.products.Save(ctx, bad))
	f3.fillCart(3, bad, 1, &zero)
	_, err = f3.svc.PlaceOrder(ctx, f3.cod(3, addr3.ID))
	assert.ErrorIs(t, err, domain.ErrUnpricedProduct)
	assert.Equal(t, 5, f3.stock(bad.ID))
}

func TestPlaceOrderKeepsCartItemsAddedAfterCommit(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	gate := &gatedCarts{CartRepository: f.carts, release: make(chan struct{})}
	f.svc.deps.Carts = gate

	lamp := f.product("Lamp", money.Major(500), 5)
	cup := f.product("Cup", money.Major(50), 5)
	addr := f.address(1)
	f.fillCart(1, lamp, 2, nil)

	_, err := f.svc.PlaceOrder(ctx, f.cod(1, addr.ID))
	require.NoError(t, err)

	f.fillCart(1, cup, 1, nil)
	f.fillCart(1, lamp, 1, nil)
	close(gate.release)
	f.svc.Wait()

	c, err := f.carts.GetByUserID(ctx, 1)
	require.NoError(t, err)
	require.Len(t, c.Items, 2)
	assert.Equal(t, lamp.ID, c.Items[0].ProductID)
	assert.Equal(t, 1, c.Items[0].Quantity)
	assert.Equal(t, cup.ID, c.Items[1].ProductID)
	assert.Equal(t, 1, c.Items[1].Quantity)
}
