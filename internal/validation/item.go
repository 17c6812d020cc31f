package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

const (
	MaxItemNameLength        = 100
	MaxItemDescriptionLength = 1000
	maxPriceScale            = 2
)

// MaxPrice matches the NUMERIC(12,2) column.
var MaxPrice = decimal.RequireFromString("9999999999.99")

// ImageContentTypes lists the attachment types clients may upload.
var ImageContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// NormalizeItemName trims the name and composes it to NFC so that visually
// equal names are stored and length-checked the same way.
func NormalizeItemName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// ValidateItemName validates a listing name
func ValidateItemName(name string) error {
	trimmed := strings.TrimSpace(name)

	if trimmed == "" {
		return errors.New("name is required")
	}

	if utf8.RuneCountInString(trimmed) > MaxItemNameLength {
		return fmt.Errorf("name is too long (max %d characters)", MaxItemNameLength)
	}

	return nil
}

func ValidateItemDescription(description *string) error {
	if description == nil {
		return nil
	}
	if utf8.RuneCountInString(*description) > MaxItemDescriptionLength {
		return fmt.Errorf("description is too long (max %d characters)", MaxItemDescriptionLength)
	}
	return nil
}

// ValidatePrice accepts non-negative amounts with at most two decimal places.
func ValidatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return errors.New("price must not be negative")
	}
	if !price.Equal(price.Round(maxPriceScale)) {
		return fmt.Errorf("price must have at most %d decimal places", maxPriceScale)
	}
	if price.GreaterThan(MaxPrice) {
		return fmt.Errorf("price must not exceed %s", MaxPrice.String())
	}
	return nil
}

// ValidateImageContentType checks the declared type of an attachment upload.
// Empty means the client did not declare one.
func ValidateImageContentType(contentType string) error {
	if contentType == "" {
		return nil
	}
	if !ImageContentTypes[strings.ToLower(contentType)] {
		return fmt.Errorf("invalid file type: %s", contentType)
	}
	return nil
}
