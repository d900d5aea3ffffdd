package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type line struct {
	Product  string `json:"product" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=1"`
}

type doc struct {
	Title  string `json:"title" validate:"required,max=10"`
	Email  string `json:"email,omitempty" validate:"omitempty,email"`
	Rating int    `json:"rating" validate:"gte=1,lte=5"`
	Lines  []line `json:"cart" validate:"dive"`
	Hidden string `json:"-" validate:"required"`
}

func TestValidate_Success(t *testing.T) {
	err := Validate(doc{Title: "ok", Rating: 3, Hidden: "x", Lines: []line{{Product: "p1", Quantity: 1}}})
	assert.NoError(t, err)
}

func TestValidate_UsesJSONNames(t *testing.T) {
	err := Validate(doc{Rating: 3, Hidden: "x"})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "is required", valErr.Fields()["title"])
}

func TestValidate_NestedPath(t *testing.T) {
	err := Validate(doc{Title: "ok", Rating: 3, Hidden: "x", Lines: []line{{Product: "p1", Quantity: 0}}})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Fields(), "cart[0].quantity")
	assert.Contains(t, err.Error(), "field 'cart[0].quantity'")
}

func TestValidate_MessagesByKind(t *testing.T) {
	err := Validate(doc{Title: "much too long title", Rating: 9, Email: "nope", Hidden: "x"})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()
	assert.Equal(t, "must be at most 10 characters", fields["title"])
	assert.Equal(t, "must be less than or equal to 5", fields["rating"])
	assert.Equal(t, "must be a valid email address", fields["email"])
}
