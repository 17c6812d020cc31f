package validation_test

import (
	"strings"
	"testing"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/templui/marketplace/internal/validation"
)

func TestValidateItemName(t *testing.T) {
	assert.NoError(t, validation.ValidateItemName("Bike"))
	assert.NoError(t, validation.ValidateItemName(strings.Repeat("ü", 100)))
	assert.EqualError(t, validation.ValidateItemName("   "), "name is required")
	assert.EqualError(t, validation.ValidateItemName(strings.Repeat("a", 101)), "name is too long (max 100 characters)")
}

func TestNormalizeItemName(t *testing.T) {
	decomposed := "  Cafe\u0301 table "
	normalized := validation.NormalizeItemName(decomposed)

	assert.Equal(t, "Caf\u00e9 table", normalized)
	assert.NoError(t, validation.ValidateItemName(validation.NormalizeItemName(strings.Repeat("e\u0301", 100))))
}

func TestValidateItemDescription(t *testing.T) {
	assert.NoError(t, validation.ValidateItemDescription(nil))
	assert.NoError(t, validation.ValidateItemDescription(lo.ToPtr("")))
	assert.Error(t, validation.ValidateItemDescription(lo.ToPtr(strings.Repeat("a", 1001))))
}

func TestValidatePrice(t *testing.T) {
	tests := []struct {
		price     string
		wantError string
	}{
		{price: "0"},
		{price: "100"},
		{price: "19.99"},
		{price: "9999999999.99"},
		{price: "-5", wantError: "price must not be negative"},
		{price: "-0.01", wantError: "price must not be negative"},
		{price: "1.999", wantError: "price must have at most 2 decimal places"},
		{price: "10000000000", wantError: "price must not exceed 9999999999.99"},
	}

	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			err := validation.ValidatePrice(decimal.RequireFromString(tt.price))
			if tt.wantError != "" {
				assert.EqualError(t, err, tt.wantError)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateImageContentType(t *testing.T) {
	assert.NoError(t, validation.ValidateImageContentType(""))
	assert.NoError(t, validation.ValidateImageContentType("image/png"))
	assert.NoError(t, validation.ValidateImageContentType("IMAGE/JPEG"))
	assert.EqualError(t, validation.ValidateImageContentType("application/pdf"), "invalid file type: application/pdf")
}
