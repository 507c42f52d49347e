package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		countryCode string
		expected    string
		expectError bool
	}{
		{
			name:     "national 11 digit mobile gets default country code",
			raw:      "11999990000",
			expected: "+5511999990000",
		},
		{
			name:     "national 10 digit landline gets default country code",
			raw:      "1133334444",
			expected: "+551133334444",
		},
		{
			name:     "formatted national number",
			raw:      "(11) 99999-0000",
			expected: "+5511999990000",
		},
		{
			name:     "already e164",
			raw:      "+5511999990000",
			expected: "+5511999990000",
		},
		{
			name:     "plus with formatting",
			raw:      " +55 (11) 99999-0000",
			expected: "+5511999990000",
		},
		{
			name:     "twelve digits without plus keeps its country code",
			raw:      "551133334444",
			expected: "+551133334444",
		},
		{
			name:        "explicit country code override",
			raw:         "2125550123",
			countryCode: "1",
			expected:    "+12125550123",
		},
		{
			name:        "too few digits",
			raw:         "999-0000",
			expectError: true,
		},
		{
			name:        "too many digits",
			raw:         "5511999990000123456",
			expectError: true,
		},
		{
			name:        "no digits at all",
			raw:         "telefone",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.raw, tt.countryCode)
			if tt.expectError {
				require.Error(t, err)
				assert.Empty(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, got)
			}
		})
	}
}

func TestPhoneDigits(t *testing.T) {
	assert.Equal(t, "5511999990000", PhoneDigits("+5511999990000"))
	assert.Equal(t, "5511999990000", PhoneDigits("5511999990000"))
	assert.Equal(t, "", PhoneDigits("+"))
}
