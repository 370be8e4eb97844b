package domain

import (
	"sort"

	"github.com/wyfcoding/ecommerce/pkg/money"
)

// StartSource 起始价来源
type StartSource string

const (
	StartFromSupplied StartSource = "supplied"
	StartFromRule     StartSource = "rule"
	StartFromNone     StartSource = "none"
)

// AppliedRule 胜出规则的审计信息
type AppliedRule struct {
	RuleID            uint         `json:"rule_id"`
	TemplateID        *uint        `json:"template_id,omitempty"`
	Score             int          `json:"score"`
	MatchedConditions []string     `json:"matched_conditions"`
	ModifierType      ModifierType `json:"modifier_type"`
	PriceModifier     int64        `json:"price_modifier"`
	RuleBasePrice     money.Amount `json:"rule_base_price"`
}

// Breakdown 价格推导过程
type Breakdown struct {
	StartPrice      money.Amount `json:"start_price"`
	StartSource     StartSource  `json:"start_source"`
	Adjustment      money.Amount `json:"adjustment"`
	FinalPrice      money.Amount `json:"final_price"`
	RulesEvaluated  int          `json:"rules_evaluated"`
	UnknownModifier bool         `json:"unknown_modifier,omitempty"`
	// 调整结果为负时截断为 0
	Clamped bool `json:"clamped,omitempty"`
}

// Quote 价格计算结果
type Quote struct {
	FinalPrice   money.Amount  `json:"final_price"`
	AppliedRules []AppliedRule `json:"applied_rules"`
	Breakdown    Breakdown     `json:"breakdown"`
}

// Matched 是否有规则胜出
func (q Quote) Matched() bool {
	return len(q.AppliedRules) > 0
}

// Calculate 根据规则与规格计算价格
// rules 可以包含停用规则与任意顺序，内部会复制启用规则并按 ID 升序排序后扫描，
// 仅在分数严格大于当前最高分时替换胜出者，因此平分时 ID 最小的规则胜出。
// supplied 不为 nil 时作为起始价，优先于规则的 BasePrice。
func Calculate(rules []*PriceRule, specs Specifications, supplied *money.Amount) Quote {
	snapshot := activeSnapshot(rules)

	winner, score, matched := selectWinner(snapshot, specs)

	if winner == nil {
		start, source := money.Zero, StartFromNone
		if supplied != nil {
			start, source = *supplied, StartFromSupplied
		}
		return Quote{
			FinalPrice:   start,
			AppliedRules: []AppliedRule{},
			Breakdown: Breakdown{
				StartPrice:     start,
				StartSource:    source,
				FinalPrice:     start,
				RulesEvaluated: len(snapshot),
			},
		}
	}

	start, source := winner.BasePrice, StartFromRule
	if supplied != nil {
		start, source = *supplied, StartFromSupplied
	}

	final, known := winner.ModifierType.Apply(start, winner.PriceModifier)
	clamped := false
	if final < 0 {
		final, clamped = 0, true
	}

	return Quote{
		FinalPrice: final,
		AppliedRules: []AppliedRule{{
			RuleID:            winner.ID,
			TemplateID:        winner.TemplateID,
			Score:             score,
			MatchedConditions: matched,
			ModifierType:      winner.ModifierType,
			PriceModifier:     winner.PriceModifier,
			RuleBasePrice:     winner.BasePrice,
		}},
		Breakdown: Breakdown{
			StartPrice:      start,
			StartSource:     source,
			Adjustment:      final - start,
			FinalPrice:      final,
			RulesEvaluated:  len(snapshot),
			UnknownModifier: !known,
			Clamped:         clamped,
		},
	}
}

func activeSnapshot(rules []*PriceRule) []PriceRule {
	out := make([]PriceRule, 0, len(rules))
	for _, r := range rules {
		if r != nil && r.Active {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// selectWinner 返回胜出规则；胜出需要正分，全部规则都无条件时 ID 最小者作为子类目默认规则
func selectWinner(rules []PriceRule, specs Specifications) (*PriceRule, int, []string) {
	var (
		winner    *PriceRule
		bestScore = -1
		bestMatch []string
	)
	for i := range rules {
		score, matched := rules[i].Score(specs)
		if score > bestScore {
			winner, bestScore, bestMatch = &rules[i], score, matched
		}
	}
	if winner == nil {
		return nil, 0, nil
	}
	if bestScore > 0 {
		return winner, bestScore, bestMatch
	}
	for i := range rules {
		if len(rules[i].Conditions) > 0 {
			return nil, 0, nil
		}
	}
	return &rules[0], 0, []string{}
}
