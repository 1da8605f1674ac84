package catalog

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Fit is the cut category of a garment or piece of equipment
type Fit string

const (
	FitRegular Fit = "regular"
	FitTapered Fit = "tapered"
	FitWide    Fit = "wide"
)

// Fits lists the allowed fit values
var Fits = []Fit{FitRegular, FitTapered, FitWide}

// IsValid returns true if the fit is one of the allowed values
func (f Fit) IsValid() bool {
	switch f {
	case FitRegular, FitTapered, FitWide:
		return true
	}
	return false
}

// Sizes lists the accepted size labels
var Sizes = []string{"YTH", "JR", "INT", "SR", "XS", "S", "M", "L", "XL", "2XL", "3XL"}

// AgeCategories lists the accepted age categories
var AgeCategories = []string{"YTH", "JR", "INT", "SR"}

// IsValidSize reports whether size is empty or a known size label
func IsValidSize(size string) bool {
	return size == "" || contains(Sizes, size)
}

// IsValidAge reports whether age is empty or a known age category
func IsValidAge(age string) bool {
	return age == "" || contains(AgeCategories, age)
}

// NormalizeLabel trims and NFC-normalises free-text labels so that visually
// identical warehouse or product names compare equal.
func NormalizeLabel(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
