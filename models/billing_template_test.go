package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool {
	return &b
}

func variationTestTemplate() *BillingTemplate {
	return &BillingTemplate{
		ID: 1,
		Variations: []BillingTemplateVariation{
			{ID: 3, TemplateID: 1, Order: 3, Body: "variação C", IsActive: boolPtr(true)},
			{ID: 1, TemplateID: 1, Order: 1, Body: "variação A", IsActive: boolPtr(true)},
			{ID: 2, TemplateID: 1, Order: 2, Body: "variação B", IsActive: boolPtr(false)},
		},
	}
}

func TestActiveVariations(t *testing.T) {
	active := variationTestTemplate().ActiveVariations()

	require.Len(t, active, 2)
	assert.Equal(t, 1, active[0].Order, "variations come back in rotation order")
	assert.Equal(t, 3, active[1].Order)
}

func TestPickVariationRoundRobin(t *testing.T) {
	template := variationTestTemplate()

	tests := []struct {
		index    int
		expected string
	}{
		{index: 0, expected: "variação A"},
		{index: 1, expected: "variação C"},
		{index: 2, expected: "variação A"},
		{index: 3, expected: "variação C"},
		{index: 7, expected: "variação C"},
	}

	for _, tt := range tests {
		v := template.PickVariation(tt.index)
		require.NotNil(t, v)
		assert.Equal(t, tt.expected, v.Body, "index %d", tt.index)
	}
}

func TestPickVariationNoActive(t *testing.T) {
	template := &BillingTemplate{
		Variations: []BillingTemplateVariation{
			{Order: 1, Body: "inativa", IsActive: boolPtr(false)},
		},
	}
	assert.Nil(t, template.PickVariation(0))
	assert.Nil(t, (&BillingTemplate{}).PickVariation(0))
}

func TestTemplateTypeValid(t *testing.T) {
	assert.True(t, TemplateTypeOverdue.Valid())
	assert.True(t, TemplateTypeUpcoming.Valid())
	assert.True(t, TemplateTypeNotification.Valid())
	assert.False(t, TemplateType("marketing").Valid())
}
