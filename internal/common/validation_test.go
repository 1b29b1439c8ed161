package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestValidator(t *testing.T) {
	v := NewValidator()
	v.Field("name", "  ", Required).
		Field("code", "P0001-EXTRA", MaxLength(5)).
		Field("summary", "ok", MaxLength(10)).
		Field("provider", "gemini", OneOf("gemini", "openai")).
		Add("package_recommendation.primary_package.package_code", "Z9", "is not a candidate")

	require.True(t, v.HasErrors())
	assert.Equal(t, []string{"name", "code", "package_recommendation.primary_package.package_code"}, v.Errors().Fields())

	err := v.Error()
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "validation failed for field 'code' with value 'P0001-EXTRA': must be at most 5 characters")

	grpcErr := ValidateAndReturnError(v)
	assert.Equal(t, codes.InvalidArgument, status.Code(grpcErr))
}

func TestValidator_NoErrors(t *testing.T) {
	v := NewValidator().Field("name", "ok", Required, MaxLength(5))
	assert.False(t, v.HasErrors())
	assert.NoError(t, v.Error())
	assert.NoError(t, ValidateAndReturnError(v))
}

func TestRules(t *testing.T) {
	var empty *string
	tests := []struct {
		name  string
		rule  ValidationRule
		value any
		fails bool
	}{
		{"required nil", Required, nil, true},
		{"required nil ptr", Required, empty, true},
		{"required set", Required, "x", false},
		{"max over", MaxLength(1), "ab", true},
		{"max runes", MaxLength(2), "éé", false},
		{"oneof miss", OneOf("a", "b"), "c", true},
		{"oneof non-string", OneOf("a"), 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rule("f", tt.value)
			if tt.fails {
				assert.NotNil(t, got)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}
