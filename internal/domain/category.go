package domain

import (
	"fmt"
	"strings"

	apperr "github.com/yungbote/award-ledger/internal/pkg/errors"
)

// Category is the label an operator assigns to one award slot. The empty
// string is not a category; it marks an unclassified slot.
type Category string

const (
	CategoryCert         Category = "Cert"
	CategoryNational     Category = "National"
	CategoryProvinceCity Category = "ProvinceCity"
	CategorySchool       Category = "School"
	CategoryCollege      Category = "College"
	CategoryNone         Category = "None"
)

// Categories lists the enum in display order.
var Categories = []Category{
	CategoryCert,
	CategoryNational,
	CategoryProvinceCity,
	CategorySchool,
	CategoryCollege,
	CategoryNone,
}

var categoryWeights = map[Category]float64{
	CategoryCert:         0.2,
	CategoryNational:     0.8,
	CategoryProvinceCity: 0.5,
	CategorySchool:       0.3,
	CategoryCollege:      0.2,
	CategoryNone:         0.0,
}

// Bucket names the running total a category accrues into.
type Bucket string

const (
	BucketNone  Bucket = ""
	BucketCert  Bucket = "cert"
	BucketAward Bucket = "award"
)

// ParseCategory accepts the exact enum spelling, ignoring surrounding space
// and letter case.
func ParseCategory(s string) (Category, error) {
	trimmed := strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(trimmed, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", apperr.ErrUnknownCategory, s)
}

func (c Category) Valid() bool {
	_, ok := categoryWeights[c]
	return ok
}

// Weight is the fixed point value of the category; unknown labels weigh 0.
func (c Category) Weight() float64 {
	return categoryWeights[c]
}

// Bucket reports which total the category contributes to. None and the
// empty label contribute to neither.
func (c Category) Bucket() Bucket {
	switch c {
	case "", CategoryNone:
		return BucketNone
	case CategoryCert:
		return BucketCert
	default:
		return BucketAward
	}
}

func (c Category) String() string { return string(c) }
