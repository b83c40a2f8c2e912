package editcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := Generate()
		require.NoError(t, err)
		assert.Len(t, code, Length)
		assert.NoError(t, Validate(code))
		assert.Equal(t, code, Normalize(code), "generated codes are already normalized")
		seen[code] = true
	}
	assert.Greater(t, len(seen), 190)
}

func TestNormalizeValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "empty", input: "   ", want: "", wantErr: ErrEmpty},
		{name: "lower case with spaces", input: "  ab12cd ", want: "AB12CD"},
		{name: "too short", input: "abc", want: "ABC", wantErr: ErrInvalidLength},
		{name: "too long", input: "abcdefg", want: "ABCDEFG", wantErr: ErrInvalidLength},
		{name: "symbols", input: "ab-12c", want: "AB-12C", wantErr: ErrInvalidChars},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantErr, Validate(got))
		})
	}
}
