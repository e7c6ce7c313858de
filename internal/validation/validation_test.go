package validation_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopulse/ecopulse/internal/validation"
)

var errBadInput = errors.New("bad input")

type inner struct {
	Level int `json:"level" validate:"gte=0,lte=10"`
}

type outer struct {
	Name   string   `json:"name" validate:"required"`
	Kind   string   `json:"kind" validate:"oneof=a b"`
	Tags   []string `json:"tags" validate:"min=1"`
	Inner  inner    `json:"inner"`
	Hidden string   `json:"-" validate:"required"`
	Plain  int      `validate:"gt=0"`
}

func validOuter() outer {
	return outer{Name: "n", Kind: "a", Tags: []string{"x"}, Inner: inner{Level: 5}, Hidden: "h", Plain: 1}
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, validation.Struct(errBadInput, validOuter()))
}

func TestStruct_CollectsEveryField(t *testing.T) {
	in := validOuter()
	in.Name = ""
	in.Kind = "c"
	in.Tags = nil
	in.Inner.Level = 11
	in.Plain = 0

	err := validation.Struct(errBadInput, in)
	require.Error(t, err)
	assert.ErrorIs(t, err, errBadInput)

	var verr *validation.Error
	require.ErrorAs(t, err, &verr)

	got := make(map[string]validation.FieldError, len(verr.Fields))
	for _, f := range verr.Fields {
		got[f.Field] = f
	}
	require.Len(t, got, 5)

	assert.Equal(t, "is required", got["name"].Message)
	assert.Equal(t, "required", got["name"].Code)
	assert.Equal(t, "must be one of: a, b", got["kind"].Message)
	assert.Equal(t, "must have at least 1 item(s)", got["tags"].Message)
	assert.Equal(t, "must be less than or equal to 10", got["inner.level"].Message)
	assert.Equal(t, "must be greater than 0", got["Plain"].Message)
}

func TestError_Message(t *testing.T) {
	err := validation.NewError(errBadInput,
		validation.FieldError{Field: "a", Message: "is required"},
		validation.FieldError{Field: "b", Message: "must be after a"},
	)
	assert.Equal(t, "bad input: a is required; b must be after a", err.Error())
	assert.ErrorIs(t, err, errBadInput)

	assert.Equal(t, "bad input", validation.NewError(errBadInput).Error())
}

func TestValidator_Shared(t *testing.T) {
	assert.Same(t, validation.Validator(), validation.Validator())
}
