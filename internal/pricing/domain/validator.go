package domain

import (
	"fmt"
	"sort"
	"strings"
)

// 校验问题代码
const (
	IssueRequired      = "required"
	IssueInvalidOption = "invalid_option"
	IssueNotNumber     = "not_a_number"
	IssueNotBoolean    = "not_a_boolean"
	IssueUnknownField  = "unknown_field"
)

// ValidationIssue 单条校验问题
type ValidationIssue struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult 规格校验结果
type ValidationResult struct {
	IsValid  bool              `json:"is_valid"`
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
}

// ValidateSpecifications 按子类目的规格模板校验规格表
// 只考虑启用的模板；缺少必填字段、select 值不在选项内、number/boolean 类型不符为错误，
// 未定义的字段仅产生警告。纯函数，不会因输入不合法而 panic。
func ValidateSpecifications(templates []*SpecificationTemplate, specs Specifications) ValidationResult {
	res := ValidationResult{
		Errors:   []ValidationIssue{},
		Warnings: []ValidationIssue{},
	}

	byName := make(map[string]*SpecificationTemplate, len(templates))
	required := make([]string, 0)
	for _, t := range templates {
		if t == nil || !t.Active {
			continue
		}
		byName[t.Name] = t
		if t.Required {
			required = append(required, t.Name)
		}
	}
	sort.Strings(required)

	for _, name := range required {
		if _, ok := specs[name]; !ok {
			res.Errors = append(res.Errors, ValidationIssue{
				Field:   name,
				Code:    IssueRequired,
				Message: fmt.Sprintf("%s is required", name),
			})
		}
	}

	for _, key := range specs.Keys() {
		value := specs[key]
		t, ok := byName[key]
		if !ok {
			res.Warnings = append(res.Warnings, ValidationIssue{
				Field:   key,
				Code:    IssueUnknownField,
				Message: fmt.Sprintf("%s is not a known specification for this subcategory", key),
			})
			continue
		}
		if issue, bad := checkValue(t, value); bad {
			res.Errors = append(res.Errors, issue)
		}
	}

	res.IsValid = len(res.Errors) == 0
	return res
}

func checkValue(t *SpecificationTemplate, v SpecValue) (ValidationIssue, bool) {
	switch t.Type {
	case FieldTypeSelect:
		if !t.HasOption(v.Text()) {
			return ValidationIssue{
				Field:   t.Name,
				Code:    IssueInvalidOption,
				Message: fmt.Sprintf("%s must be one of [%s], got %q", t.Name, strings.Join(t.Options, ", "), v.Text()),
			}, true
		}
	case FieldTypeNumber:
		if _, ok := v.AsNumber(); !ok {
			return ValidationIssue{
				Field:   t.Name,
				Code:    IssueNotNumber,
				Message: fmt.Sprintf("%s must be a number", t.Name),
			}, true
		}
	case FieldTypeBoolean:
		if _, ok := v.AsBool(); !ok {
			return ValidationIssue{
				Field:   t.Name,
				Code:    IssueNotBoolean,
				Message: fmt.Sprintf("%s must be a boolean", t.Name),
			}, true
		}
	}
	return ValidationIssue{}, false
}
