package shortcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

func TestNewGenerator(t *testing.T) {
	assert.Equal(t, 8, NewGenerator(8).Length())
	assert.Equal(t, DefaultLength, NewGenerator(0).Length())
	assert.Equal(t, DefaultLength, NewGenerator(-1).Length())
	assert.Equal(t, DefaultLength, NewGenerator(MaxLength+1).Length())
}

func TestGenerator_Generate(t *testing.T) {
	g := NewGenerator(6)
	seen := make(map[string]struct{})

	for i := 0; i < 1000; i++ {
		code, err := g.Generate()
		require.NoError(t, err)

		assert.Len(t, code, 6)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(Alphabet, c), "unexpected rune %q", c)
		}

		seen[code] = struct{}{}
	}

	assert.Greater(t, len(seen), 990)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr error
	}{
		{name: "valid", code: "my-link_1"},
		{name: "min length", code: "abcd"},
		{name: "too short", code: "abc", wantErr: entity.ErrInvalidShortCode},
		{name: "too long", code: strings.Repeat("a", MaxLength+1), wantErr: entity.ErrInvalidShortCode},
		{name: "bad characters", code: "hello world", wantErr: entity.ErrInvalidShortCode},
		{name: "slash", code: "abc/def", wantErr: entity.ErrInvalidShortCode},
		{name: "reserved", code: "admin", wantErr: entity.ErrReservedShortCode},
		{name: "reserved any case", code: "LOGIN", wantErr: entity.ErrReservedShortCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.code)

			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
