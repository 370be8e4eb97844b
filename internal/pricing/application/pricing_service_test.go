package application

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/ecommerce/internal/pricing/domain"
	"github.com/wyfcoding/ecommerce/internal/pricing/infrastructure/persistence/mysql"
	"github.com/wyfcoding/ecommerce/pkg/db"
	"github.com/wyfcoding/ecommerce/pkg/metrics"
	"github.com/wyfcoding/ecommerce/pkg/money"
)

func newService(t *testing.T) (*PricingService, domain.TemplateRepository, *metrics.Metrics) {
	t.Helper()
	d, err := db.Init(db.Config{Driver: "sqlite", DSN: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	require.NoError(t, mysql.AutoMigrate(d.DB))
	t.Cleanup(func() { _ = d.Close() })

	m := metrics.New("pricing_test")
	require.NoError(t, m.Register(prometheus.NewRegistry()))

	templates := mysql.NewTemplateRepository(d.DB)
	return NewPricingService(mysql.NewRuleRepository(d.DB), templates, m), templates, m
}

func TestCalculatePriceMatchedRule(t *testing.T) {
	svc, _, m := newService(t)
	ctx := context.Background()

	_, err := svc.CreatePriceRule(ctx, CreatePriceRuleCommand{
		SubcategoryID: 7,
		BasePrice:     money.Major(1000),
		Conditions:    domain.SpecConditions{"storage": domain.ExactCondition(domain.StringValue("512GB"))},
		PriceModifier: 20,
		ModifierType:  domain.ModifierMultiply,
	})
	require.NoError(t, err)

	quote, err := svc.CalculatePrice(ctx, CalculatePriceCommand{
		SubcategoryID:  7,
		Specifications: domain.Specifications{"storage": domain.StringValue("512GB")},
	})
	require.NoError(t, err)
	assert.Equal(t, money.Major(1200), quote.FinalPrice)
	assert.True(t, quote.Matched())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PriceCalculations.WithLabelValues("matched")))

	supplied := money.Major(500)
	quote, err = svc.CalculatePrice(ctx, CalculatePriceCommand{
		SubcategoryID:  7,
		Specifications: domain.Specifications{"storage": domain.StringValue("512GB")},
		BasePrice:      &supplied,
	})
	require.NoError(t, err)
	assert.Equal(t, money.Major(600), quote.FinalPrice)
	assert.Equal(t, domain.StartFromSupplied, quote.Breakdown.StartSource)
}

func TestCalculatePriceWithoutRules(t *testing.T) {
	svc, _, m := newService(t)

	quote, err := svc.CalculatePrice(context.Background(), CalculatePriceCommand{SubcategoryID: 99})
	require.NoError(t, err)
	assert.Equal(t, money.Zero, quote.FinalPrice)
	assert.Empty(t, quote.AppliedRules)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PriceCalculations.WithLabelValues("default")))
}

func TestCalculatePriceRejectsBadInput(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CalculatePrice(ctx, CalculatePriceCommand{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	neg := money.Amount(-1)
	_, err = svc.CalculatePrice(ctx, CalculatePriceCommand{SubcategoryID: 1, BasePrice: &neg})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCreatePriceRuleChecksTemplate(t *testing.T) {
	svc, templates, _ := newService(t)
	ctx := context.Background()

	tpl := &domain.SpecificationTemplate{SubcategoryID: 1, Name: "ram", Type: domain.FieldTypeNumber, Active: true}
	require.NoError(t, templates.Save(ctx, tpl))

	_, err := svc.CreatePriceRule(ctx, CreatePriceRuleCommand{
		SubcategoryID: 2,
		TemplateID:    &tpl.ID,
		BasePrice:     100,
		ModifierType:  domain.ModifierAdd,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRule)

	rule, err := svc.CreatePriceRule(ctx, CreatePriceRuleCommand{
		SubcategoryID: 1,
		TemplateID:    &tpl.ID,
		BasePrice:     100,
		ModifierType:  domain.ModifierAdd,
	})
	require.NoError(t, err)
	assert.True(t, rule.Active)

	_, err = svc.CreatePriceRule(ctx, CreatePriceRuleCommand{SubcategoryID: 1, BasePrice: 100, ModifierType: "discount"})
	assert.ErrorIs(t, err, domain.ErrInvalidRule)

	list, err := svc.ListPriceRules(ctx, 1, true)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestValidateSpecificationsUsesActiveTemplates(t *testing.T) {
	svc, templates, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, templates.Save(ctx, &domain.SpecificationTemplate{
		SubcategoryID: 5, Name: "color", Type: domain.FieldTypeSelect, Options: []string{"red"}, Required: true, Active: true,
	}))

	res, err := svc.ValidateSpecifications(ctx, 5, domain.Specifications{"size": domain.StringValue("L")})
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "color", res.Errors[0].Field)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "size", res.Warnings[0].Field)
}

func TestCreateTemplate(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	tpl, err := svc.CreateTemplate(ctx, CreateTemplateCommand{
		SubcategoryID: 8, Name: "storage", Type: domain.FieldTypeSelect, Options: []string{"128GB", "256GB"}, AffectsPrice: true,
	})
	require.NoError(t, err)
	assert.NotZero(t, tpl.ID)
	assert.True(t, tpl.Active)

	_, err = svc.CreateTemplate(ctx, CreateTemplateCommand{SubcategoryID: 8, Name: "storage", Type: domain.FieldTypeText})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.CreateTemplate(ctx, CreateTemplateCommand{SubcategoryID: 8, Name: "color", Type: domain.FieldTypeSelect})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.CreateTemplate(ctx, CreateTemplateCommand{SubcategoryID: 8, Name: "ram", Type: domain.FieldTypeNumber, Options: []string{"8"}})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.CreateTemplate(ctx, CreateTemplateCommand{SubcategoryID: 8, Name: "x", Type: "date"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	list, err := svc.ListTemplates(ctx, 8)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"128GB", "256GB"}, list[0].Options)
}
