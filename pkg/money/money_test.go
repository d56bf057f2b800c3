package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMinor(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    int64
		wantErr error
	}{
		{"two decimals", "50.00", 5000, nil},
		{"one decimal", "50.5", 5050, nil},
		{"integer", "1000", 100000, nil},
		{"cents only", "0.01", 1, nil},
		{"surrounding spaces", " 10.00 ", 1000, nil},
		{"zero", "0", 0, nil},
		{"negative", "-5.00", -500, nil},
		{"three decimals", "50.001", 0, ErrTooPrecise},
		{"trailing zero third digit", "50.000", 0, ErrTooPrecise},
		{"empty", "", 0, ErrMalformed},
		{"letters", "ten", 0, ErrMalformed},
		{"huge", "100000000000000000", 0, ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMinor(tt.in)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatMinor(t *testing.T) {
	assert.Equal(t, "50.00", FormatMinor(5000))
	assert.Equal(t, "0.05", FormatMinor(5))
	assert.Equal(t, "10000.00", FormatMinor(1000000))
	assert.Equal(t, "-1.50", FormatMinor(-150))
}

func TestFormatWithCurrency(t *testing.T) {
	assert.Equal(t, "$10.00", FormatWithCurrency(1000, "USD"))
	assert.Equal(t, "10.00 EUR", FormatWithCurrency(1000, "eur"))
}
