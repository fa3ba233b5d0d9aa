package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedRequest struct {
	Name string `json:"name" validate:"required,notblank"`
}

func TestNotBlankRejectsWhitespace(t *testing.T) {
	v := NewValidator()

	err := v.ValidateStruct(namedRequest{Name: " \t "})
	require.Error(t, err)
	assert.Equal(t, map[string]string{"name": "name must not be blank"}, FormatValidationErrors(err))

	assert.NoError(t, v.ValidateStruct(namedRequest{Name: "Engineering"}))
}

func TestValidatePassword(t *testing.T) {
	ok, problems := ValidatePassword("12345678")
	assert.False(t, ok)
	assert.Equal(t, []string{"Password must contain at least one letter"}, problems)

	ok, problems = ValidatePassword("abc")
	assert.False(t, ok)
	assert.Len(t, problems, 1)

	ok, _ = ValidatePassword("correct horse 1")
	assert.True(t, ok)
}
