package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/p-blackswan/appforge/internal/errors"
)

type sample struct {
	Name      string   `json:"name" validate:"required"`
	Platforms []string `json:"target_platforms" validate:"required,min=1,dive,oneof=web mobile desktop"`
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct(sample{Name: "x", Platforms: []string{"web", "desktop"}}))
}

func TestStruct_Messages(t *testing.T) {
	err := Struct(sample{Platforms: []string{"web", "tv"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, perrors.ErrInvalidInput))
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), "target_platforms[1] must be one of [web mobile desktop]")
}

func TestStruct_EmptySlice(t *testing.T) {
	err := Struct(sample{Name: "x", Platforms: []string{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target_platforms")
}
