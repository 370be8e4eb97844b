// Package application 订单应用服务：下单流程、取消、退货与履约状态推进
package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	address "github.com/wyfcoding/ecommerce/internal/address/domain"
	cart "github.com/wyfcoding/ecommerce/internal/cart/domain"
	catalog "github.com/wyfcoding/ecommerce/internal/catalog/domain"
	"github.com/wyfcoding/ecommerce/internal/order/domain"
	payment "github.com/wyfcoding/ecommerce/internal/payment/domain"
	"github.com/wyfcoding/ecommerce/pkg/db"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/ecommerce/pkg/metrics"
	"github.com/wyfcoding/ecommerce/pkg/money"
)

const maxOrderNumberAttempts = 5

// PlaceOrderCommand 下单命令
type PlaceOrderCommand struct {
	UserID        uint
	AddressID     uint
	PaymentMethod domain.PaymentMethod
	Payment       payment.Reference
}

// CancelOrderCommand 取消订单命令，UserID 非 0 时校验归属
type CancelOrderCommand struct {
	OrderID uint
	UserID  uint
	Reason  string
}

// RequestReturnCommand 退货申请命令
type RequestReturnCommand struct {
	OrderID uint
	UserID  uint
}

// UpdateOrderStatusCommand 履约状态推进命令
type UpdateOrderStatusCommand struct {
	OrderID uint
	Status  domain.OrderStatus
}

// Options 订单服务参数
type Options struct {
	Policy           domain.OrderPolicy
	ReturnWindowDays int
	PaymentTimeout   time.Duration
	CartClearTimeout time.Duration
	// Clock 为 nil 时使用 time.Now
	Clock func() time.Time
}

// Dependencies 订单服务依赖
type Dependencies struct {
	Orders    domain.OrderRepository
	Products  catalog.ProductRepository
	Carts     cart.CartRepository
	Addresses address.AddressRepository
	Verifier  payment.Verifier
	Publisher domain.EventPublisher
	Tx        *db.TransactionManager
	Metrics   *metrics.Metrics
}

// OrderCommandService 订单命令服务
type OrderCommandService struct {
	deps Dependencies
	opts Options
	wg   sync.WaitGroup
}

// NewOrderCommandService 创建订单命令服务
func NewOrderCommandService(deps Dependencies, opts Options) *OrderCommandService {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.CartClearTimeout <= 0 {
		opts.CartClearTimeout = 5 * time.Second
	}
	return &OrderCommandService{deps: deps, opts: opts}
}

// pricedLine 已校验库存并定价的购物车行
type pricedLine struct {
	product  *catalog.Product
	quantity int
	price    money.Amount
}

// PlaceOrder 下单：校验地址、购物车与支付，逐行校验库存并定价，在单个事务内落单并扣减库存
func (s *OrderCommandService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (*domain.Order, error) {
	start := time.Now()
	order, consumed, err := s.placeOrder(ctx, cmd)
	if err != nil {
		reason := "internal"
		var de *domain.Error
		if errors.As(err, &de) {
			reason = de.Code
		}
		s.deps.Metrics.RecordOrderRejected(reason, time.Since(start))
		logger.Warn(ctx, "order placement rejected", "user_id", cmd.UserID, "reason", reason, "error", err)
		return nil, err
	}
	s.deps.Metrics.RecordOrderPlaced(time.Since(start))
	logger.Info(ctx, "order placed",
		"order_id", order.ID,
		"order_number", order.OrderNumber,
		"user_id", order.UserID,
		"total_amount", order.Total.Int64(),
	)

	s.clearCartAsync(ctx, cmd.UserID, consumed)
	return order, nil
}

func (s *OrderCommandService) placeOrder(ctx context.Context, cmd PlaceOrderCommand) (*domain.Order, []cart.CartItem, error) {
	if cmd.UserID == 0 || cmd.AddressID == 0 {
		return nil, nil, domain.ErrInvalidCommand.WithMessage("user_id and address_id are required")
	}
	if !cmd.PaymentMethod.Valid() {
		return nil, nil, domain.ErrInvalidCommand.WithMessage("unknown payment method %q", cmd.PaymentMethod)
	}

	addr, err := s.deps.Addresses.GetActiveForUser(ctx, cmd.AddressID, cmd.UserID)
	if err != nil {
		return nil, nil, err
	}
	if addr == nil {
		return nil, nil, domain.ErrAddressNotFound.WithMessage("address %d not found for user %d", cmd.AddressID, cmd.UserID)
	}

	c, err := s.deps.Carts.GetByUserID(ctx, cmd.UserID)
	if err != nil {
		return nil, nil, err
	}
	if c.IsEmpty() {
		return nil, nil, domain.ErrEmptyCart
	}

	if cmd.PaymentMethod.RequiresGateway() {
		if err := s.verifyPayment(ctx, cmd.Payment); err != nil {
			return nil, nil, err
		}
	}

	lines, err := s.priceLines(ctx, c.Items)
	if err != nil {
		return nil, nil, err
	}

	calc := make([]domain.Line, len(lines))
	for i, l := range lines {
		calc[i] = domain.Line{UnitPrice: l.price, Quantity: l.quantity}
	}
	totals := s.opts.Policy.ComputeTotals(calc)

	order := &domain.Order{
		UserID:        cmd.UserID,
		AddressID:     addr.ID,
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		PaymentMethod: cmd.PaymentMethod,
		Items:         make([]domain.OrderItem, len(lines)),
	}
	order.ApplyTotals(totals)
	if cmd.PaymentMethod.RequiresGateway() {
		order.PaymentStatus = domain.PaymentStatusPaid
		order.GatewayOrderID = cmd.Payment.GatewayOrderID
		order.GatewayPaymentID = cmd.Payment.PaymentID
		order.GatewaySignature = cmd.Payment.Signature
	}
	for i, l := range lines {
		order.Items[i] = domain.OrderItem{
			ProductID:          l.product.ID,
			Quantity:           l.quantity,
			UnitPrice:          l.price,
			TotalPrice:         l.price.Times(l.quantity),
			ProductName:        l.product.Name,
			ProductDescription: l.product.Description,
		}
	}

	err = s.deps.Tx.Transaction(ctx, func(ctx context.Context) error {
		number, err := s.allocateOrderNumber(ctx)
		if err != nil {
			return err
		}
		order.OrderNumber = number

		if err := s.deps.Orders.Create(ctx, order); err != nil {
			return err
		}
		for _, l := range lines {
			if err := s.decrementStock(ctx, l); err != nil {
				return err
			}
		}
		return s.deps.Publisher.Publish(ctx, domain.EventOrderPlaced, order.OrderNumber, domain.NewOrderPlacedEvent(order, s.opts.Clock()))
	})
	if err != nil {
		return nil, nil, err
	}
	return order, c.Items, nil
}

func (s *OrderCommandService) verifyPayment(ctx context.Context, ref payment.Reference) error {
	if !ref.Complete() {
		return domain.ErrPaymentFieldsMissing
	}
	if s.deps.Verifier == nil {
		return fmt.Errorf("%w: %w", domain.ErrPaymentVerificationFailed, payment.ErrGatewayUnavailable)
	}
	vctx := ctx
	if s.opts.PaymentTimeout > 0 {
		var cancel context.CancelFunc
		vctx, cancel = context.WithTimeout(ctx, s.opts.PaymentTimeout)
		defer cancel()
	}
	if err := s.deps.Verifier.Verify(vctx, ref); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPaymentVerificationFailed, err)
	}
	return nil
}

func (s *OrderCommandService) priceLines(ctx context.Context, items []cart.CartItem) ([]pricedLine, error) {
	lines := make([]pricedLine, 0, len(items))
	for _, it := range items {
		p, err := s.deps.Products.GetByID(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, domain.ErrProductNotFound.WithMessage("product %d not found", it.ProductID)
		}
		if !p.HasStock(it.Quantity) {
			return nil, domain.InsufficientStock(p.Name, p.StockQuantity, it.Quantity)
		}

		// 冻结价非正时按未冻结处理
		var price money.Amount
		if it.PriceAtTime != nil && it.PriceAtTime.IsPositive() {
			price = *it.PriceAtTime
		} else if eff, ok := p.EffectivePrice(); ok {
			price = eff
		} else {
			return nil, domain.ErrUnpricedProduct.WithMessage("product %s has no price", p.Name)
		}
		lines = append(lines, pricedLine{product: p, quantity: it.Quantity, price: price})
	}
	return lines, nil
}

func (s *OrderCommandService) allocateOrderNumber(ctx context.Context) (string, error) {
	for i := 0; i < maxOrderNumberAttempts; i++ {
		number, err := domain.NewOrderNumber(s.opts.Clock())
		if err != nil {
			return "", err
		}
		exists, err := s.deps.Orders.ExistsNumber(ctx, number)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}
		logger.Debug(ctx, "order number collision, retrying", "order_number", number)
	}
	return "", domain.ErrOrderNumberExhausted
}

// decrementStock 条件扣减失败时重读库存给出准确的可用量
func (s *OrderCommandService) decrementStock(ctx context.Context, l pricedLine) error {
	ok, err := s.deps.Products.DecrementStock(ctx, l.product.ID, l.quantity)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	available := 0
	if current, err := s.deps.Products.GetByID(ctx, l.product.ID); err == nil && current != nil {
		available = current.StockQuantity
	}
	return domain.InsufficientStock(l.product.Name, available, l.quantity)
}

// clearCartAsync 只移除本单消耗的明细，提交后新加购的商品保留
func (s *OrderCommandService) clearCartAsync(ctx context.Context, userID uint, consumed []cart.CartItem) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.CartClearTimeout)
		defer cancel()
		if err := s.deps.Carts.RemoveConsumed(cctx, userID, consumed); err != nil {
			logger.Warn(cctx, "failed to clear cart after order placement", "user_id", userID, "error", err)
		}
	}()
}

// Wait 等待后台清理任务结束
func (s *OrderCommandService) Wait() {
	s.wg.Wait()
}

// CancelOrder 取消订单：状态 CAS、回补库存、记录取消时间并写入事件
func (s *OrderCommandService) CancelOrder(ctx context.Context, cmd CancelOrderCommand) (*domain.Order, error) {
	var order *domain.Order
	err := s.deps.Tx.Transaction(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.loadOrder(ctx, cmd.OrderID, cmd.UserID)
		if err != nil {
			return err
		}
		from, err := order.Cancel(s.opts.Clock())
		if err != nil {
			return err
		}
		if order.PaymentStatus == domain.PaymentStatusPaid {
			order.PaymentStatus = domain.PaymentStatusRefunded
		}
		if err := s.casStatus(ctx, order, from); err != nil {
			return err
		}
		for _, it := range order.Items {
			if err := s.deps.Products.RestoreStock(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		return s.deps.Publisher.Publish(ctx, domain.EventOrderCancelled, order.OrderNumber, domain.OrderCancelledEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			From:        from,
			Reason:      cmd.Reason,
			OccurredOn:  *order.CancelledAt,
		})
	})
	if err != nil {
		return nil, err
	}
	s.deps.Metrics.RecordOrderCancelled()
	logger.Info(ctx, "order cancelled", "order_id", order.ID, "order_number", order.OrderNumber)
	return order, nil
}

// RequestReturn 申请退货
func (s *OrderCommandService) RequestReturn(ctx context.Context, cmd RequestReturnCommand) (*domain.Order, error) {
	var order *domain.Order
	err := s.deps.Tx.Transaction(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.loadOrder(ctx, cmd.OrderID, cmd.UserID)
		if err != nil {
			return err
		}
		from, err := order.RequestReturn(s.opts.Clock(), s.opts.ReturnWindowDays)
		if err != nil {
			return err
		}
		if err := s.casStatus(ctx, order, from); err != nil {
			return err
		}
		return s.publishStatusChanged(ctx, order, from)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "order return requested", "order_id", order.ID, "order_number", order.OrderNumber)
	return order, nil
}

// UpdateOrderStatus 履约状态推进；取消与退货申请走各自入口
func (s *OrderCommandService) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (*domain.Order, error) {
	if cmd.Status == domain.OrderStatusCancelled || cmd.Status == domain.OrderStatusReturnRequested {
		return nil, domain.ErrInvalidCommand.WithMessage("status %s must be reached through its dedicated operation", cmd.Status)
	}
	var order *domain.Order
	err := s.deps.Tx.Transaction(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.loadOrder(ctx, cmd.OrderID, 0)
		if err != nil {
			return err
		}
		from, err := order.TransitionTo(cmd.Status, s.opts.Clock())
		if err != nil {
			return err
		}
		if err := s.casStatus(ctx, order, from); err != nil {
			return err
		}
		return s.publishStatusChanged(ctx, order, from)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "order status updated", "order_id", order.ID, "status", string(order.Status))
	return order, nil
}

func (s *OrderCommandService) loadOrder(ctx context.Context, id, userID uint) (*domain.Order, error) {
	order, err := s.deps.Orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil || (userID != 0 && order.UserID != userID) {
		return nil, domain.ErrOrderNotFound.WithMessage("order %d not found", id)
	}
	return order, nil
}

func (s *OrderCommandService) casStatus(ctx context.Context, order *domain.Order, from domain.OrderStatus) error {
	ok, err := s.deps.Orders.UpdateStatus(ctx, order, from)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrIllegalTransition.WithMessage("order %s was modified concurrently", order.OrderNumber)
	}
	return nil
}

func (s *OrderCommandService) publishStatusChanged(ctx context.Context, order *domain.Order, from domain.OrderStatus) error {
	return s.deps.Publisher.Publish(ctx, domain.EventOrderStatusChanged, order.OrderNumber, domain.OrderStatusChangedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		From:        from,
		To:          order.Status,
		OccurredOn:  s.opts.Clock(),
	})
}
