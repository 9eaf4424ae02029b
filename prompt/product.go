package prompt

import (
	"fmt"
	"strings"
)

// ProductInfo holds the marketing fields extracted from a landing page.
// Every field is optional; an empty value is rendered as its placeholder by Synthesize.
type ProductInfo struct {
	ProductName    string `json:"product_name" yaml:"product_name"`
	TargetAudience string `json:"target_audience" yaml:"target_audience"`
	Catchphrase    string `json:"catchphrase" yaml:"catchphrase"`
	Benefit1       string `json:"benefit1" yaml:"benefit1"`
	Benefit2       string `json:"benefit2" yaml:"benefit2"`
	Offer          string `json:"offer" yaml:"offer"`
	CTAText        string `json:"cta_text" yaml:"cta_text"`
}

// Field names one ProductInfo entry by its wire name.
type Field string

const (
	FieldProductName    Field = "product_name"
	FieldTargetAudience Field = "target_audience"
	FieldCatchphrase    Field = "catchphrase"
	FieldBenefit1       Field = "benefit1"
	FieldBenefit2       Field = "benefit2"
	FieldOffer          Field = "offer"
	FieldCTAText        Field = "cta_text"
)

// Fields lists every field in display order.
var Fields = []Field{
	FieldProductName,
	FieldTargetAudience,
	FieldCatchphrase,
	FieldBenefit1,
	FieldBenefit2,
	FieldOffer,
	FieldCTAText,
}

var placeholders = map[Field]string{
	FieldProductName:    "[商材/ブランド名]",
	FieldTargetAudience: "[メインターゲット]",
	FieldCatchphrase:    "[キャッチコピー]",
	FieldBenefit1:       "[ベネフィット1]",
	FieldBenefit2:       "[ベネフィット2]",
	FieldOffer:          "[オファー]",
	FieldCTAText:        "[CTAテキスト]",
}

var labels = map[Field]string{
	FieldProductName:    "商材/ブランド名",
	FieldTargetAudience: "メインターゲット",
	FieldCatchphrase:    "キャッチコピー",
	FieldBenefit1:       "ベネフィット1",
	FieldBenefit2:       "ベネフィット2",
	FieldOffer:          "オファー",
	FieldCTAText:        "CTAテキスト",
}

// Placeholder returns the bracketed token substituted for an empty field.
func (f Field) Placeholder() string {
	return placeholders[f]
}

// Label returns the Japanese label used in analysis output and forms.
func (f Field) Label() string {
	return labels[f]
}

// Valid reports whether f is one of the known fields.
func (f Field) Valid() bool {
	_, ok := placeholders[f]
	return ok
}

// ParseField converts a wire name into a Field.
func ParseField(name string) (Field, error) {
	f := Field(strings.TrimSpace(name))
	if !f.Valid() {
		return "", fmt.Errorf("prompt: unknown field %q", name)
	}
	return f, nil
}

// Get returns the raw value of a field.
func (p ProductInfo) Get(f Field) string {
	switch f {
	case FieldProductName:
		return p.ProductName
	case FieldTargetAudience:
		return p.TargetAudience
	case FieldCatchphrase:
		return p.Catchphrase
	case FieldBenefit1:
		return p.Benefit1
	case FieldBenefit2:
		return p.Benefit2
	case FieldOffer:
		return p.Offer
	case FieldCTAText:
		return p.CTAText
	}
	return ""
}

// With returns a copy of p with a single field replaced.
func (p ProductInfo) With(f Field, value string) ProductInfo {
	switch f {
	case FieldProductName:
		p.ProductName = value
	case FieldTargetAudience:
		p.TargetAudience = value
	case FieldCatchphrase:
		p.Catchphrase = value
	case FieldBenefit1:
		p.Benefit1 = value
	case FieldBenefit2:
		p.Benefit2 = value
	case FieldOffer:
		p.Offer = value
	case FieldCTAText:
		p.CTAText = value
	}
	return p
}

// Value returns the field value, or its placeholder when the value is blank.
func (p ProductInfo) Value(f Field) string {
	if v := strings.TrimSpace(p.Get(f)); v != "" {
		return p.Get(f)
	}
	return f.Placeholder()
}

// IsEmpty reports whether every field is blank.
func (p ProductInfo) IsEmpty() bool {
	for _, f := range Fields {
		if strings.TrimSpace(p.Get(f)) != "" {
			return false
		}
	}
	return true
}
