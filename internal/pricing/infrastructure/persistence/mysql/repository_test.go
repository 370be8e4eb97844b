package mysql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/ecommerce/internal/pricing/domain"
	"github.com/wyfcoding/ecommerce/pkg/db"
	"github.com/wyfcoding/ecommerce/pkg/money"
)

func newRepos(t *testing.T) (domain.RuleRepository, domain.TemplateRepository) {
	t.Helper()
	d, err := db.Init(db.Config{Driver: "sqlite", DSN: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(d.DB))
	t.Cleanup(func() { _ = d.Close() })
	return NewRuleRepository(d.DB), NewTemplateRepository(d.DB)
}

func TestRuleRepositoryRoundTrip(t *testing.T) {
	rules, _ := newRepos(t)
	ctx := context.Background()

	r1 := &domain.PriceRule{
		SubcategoryID: 3,
		BasePrice:     money.Amount(99900),
		Conditions: domain.SpecConditions{
			"storage": domain.ExactCondition(domain.StringValue("256GB")),
		},
		PriceModifier: 10,
		ModifierType:  domain.ModifierMultiply,
		Active:        true,
	}
	r2 := &domain.PriceRule{SubcategoryID: 3, BasePrice: 500, ModifierType: domain.ModifierAdd, Active: false}
	r3 := &domain.PriceRule{SubcategoryID: 4, BasePrice: 700, ModifierType: domain.ModifierAdd, Active: true}
	for _, r := range []*domain.PriceRule{r1, r2, r3} {
		require.NoError(t, rules.Save(ctx, r))
	}
	assert.NotZero(t, r1.ID)

	active, err := rules.ListActiveBySubcategory(ctx, 3)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, r1.ID, active[0].ID)
	assert.Equal(t, money.Amount(99900), active[0].BasePrice)
	assert.True(t, active[0].Conditions["storage"].Exact.Equal(domain.StringValue("256GB")))

	all, err := rules.ListBySubcategory(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Less(t, all[0].ID, all[1].ID)
}

func TestTemplateRepository(t *testing.T) {
	_, templates := newRepos(t)
	ctx := context.Background()

	color := &domain.SpecificationTemplate{SubcategoryID: 3, Name: "color", Type: domain.FieldTypeSelect, Options: []string{"black", "white"}, DisplayOrder: 2, Active: true}
	storage := &domain.SpecificationTemplate{SubcategoryID: 3, Name: "storage", Type: domain.FieldTypeSelect, Options: []string{"128GB"}, Required: true, DisplayOrder: 1, Active: true}
	old := &domain.SpecificationTemplate{SubcategoryID: 3, Name: "legacy", Type: domain.FieldTypeText, Active: false}
	for _, tpl := range []*domain.SpecificationTemplate{color, storage, old} {
		require.NoError(t, templates.Save(ctx, tpl))
	}

	list, err := templates.ListActiveBySubcategory(ctx, 3)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "storage", list[0].Name)
	assert.Equal(t, []string{"black", "white"}, list[1].Options)

	got, err := templates.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	missing, err := templates.Get(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
