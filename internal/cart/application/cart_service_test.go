package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/ecommerce/internal/cart/domain"
	"github.com/wyfcoding/ecommerce/internal/cart/infrastructure/persistence/mysql"
	catalog "github.com/wyfcoding/ecommerce/internal/catalog/domain"
	catalogmysql "github.com/wyfcoding/ecommerce/internal/catalog/infrastructure/persistence/mysql"
	"github.com/wyfcoding/ecommerce/pkg/db"
	"github.com/wyfcoding/ecommerce/pkg/money"
)

func setup(t *testing.T) (*CartService, catalog.ProductRepository) {
	t.Helper()
	d, err := db.Init(db.Config{Driver: "sqlite", DSN: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	require.NoError(t, mysql.AutoMigrate(d.DB))
	require.NoError(t, catalogmysql.AutoMigrate(d.DB))
	t.Cleanup(func() { _ = d.Close() })

	products := catalogmysql.NewProductRepository(d.DB)
	return NewCartService(mysql.NewCartRepository(d.DB), products), products
}

func TestAddItemFreezesPrice(t *testing.T) {
	svc, products := setup(t)
	ctx := context.Background()

	base := money.Amount(2500)
	p := &catalog.Product{Name: "Mug", BasePrice: &base, StockQuantity: 10}
	require.NoError(t, products.Save(ctx, p))

	cart, err := svc.AddItem(ctx, AddItemCommand{UserID: 1, ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, base, *cart.Items[0].PriceAtTime)

	// 价格变化后再次加入，保留首次冻结的价格
	require.NoError(t, products.UpdateCalculatedPrice(ctx, p.ID, 3000))
	cart, err = svc.AddItem(ctx, AddItemCommand{UserID: 1, ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, base, *cart.Items[0].PriceAtTime)

	loaded, err := svc.GetCart(ctx, 1)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, base, *loaded.Items[0].PriceAtTime)
}

func TestAddItemUnpricedAndErrors(t *testing.T) {
	svc, products := setup(t)
	ctx := context.Background()

	p := &catalog.Product{Name: "Sample", StockQuantity: 1}
	require.NoError(t, products.Save(ctx, p))

	cart, err := svc.AddItem(ctx, AddItemCommand{UserID: 2, ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)
	assert.Nil(t, cart.Items[0].PriceAtTime)

	_, err = svc.AddItem(ctx, AddItemCommand{UserID: 2, ProductID: 999, Quantity: 1})
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = svc.AddItem(ctx, AddItemCommand{UserID: 2, ProductID: p.ID, Quantity: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestClearAndRemove(t *testing.T) {
	svc, products := setup(t)
	ctx := context.Background()

	a := &catalog.Product{Name: "A", StockQuantity: 1}
	b := &catalog.Product{Name: "B", StockQuantity: 1}
	require.NoError(t, products.Save(ctx, a))
	require.NoError(t, products.Save(ctx, b))

	_, err := svc.AddItem(ctx, AddItemCommand{UserID: 3, ProductID: a.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, AddItemCommand{UserID: 3, ProductID: b.ID, Quantity: 1})
	require.NoError(t, err)

	cart, err := svc.RemoveItem(ctx, 3, a.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, b.ID, cart.Items[0].ProductID)

	require.NoError(t, svc.ClearCart(ctx, 3))
	cart, err = svc.GetCart(ctx, 3)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}
