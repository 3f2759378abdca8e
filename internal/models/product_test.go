package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProductRecordValidate(t *testing.T) {
	valid := &ProductRecord{Title: "Go Programming", ProductURL: "https://www.amazon.com/dp/B001?tag=none"}
	assert.Empty(t, valid.Validate())

	missing := &ProductRecord{}
	assert.ElementsMatch(t, []string{"Title is required", "Product URL is required"}, missing.Validate())
}

func TestProductRecordHasPrice(t *testing.T) {
	var nilRecord *ProductRecord
	assert.False(t, nilRecord.HasPrice())
	assert.False(t, (&ProductRecord{}).HasPrice())
	assert.True(t, (&ProductRecord{Price: "12,99 €"}).HasPrice())
}
