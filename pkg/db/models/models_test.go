package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeforeCreateAssignsMissingID(t *testing.T) {
	user := User{}
	require.NoError(t, user.BeforeCreate(nil))
	assert.NotEqual(t, uuid.Nil, user.ID)

	item := CartItem{}
	require.NoError(t, item.BeforeCreate(nil))
	assert.NotEqual(t, uuid.Nil, item.ID)

	order := Order{}
	require.NoError(t, order.BeforeCreate(nil))
	assert.NotEqual(t, uuid.Nil, order.ID)
}

func TestBeforeCreateKeepsExplicitID(t *testing.T) {
	id := uuid.New()
	product := Product{ID: id}
	require.NoError(t, product.BeforeCreate(nil))
	assert.Equal(t, id, product.ID)
}

func TestCartItemUnitsNormalizesUnitCount(t *testing.T) {
	assert.Equal(t, 6, (&CartItem{Quantity: 2, UnitCount: 3}).Units())
	assert.Equal(t, 2, (&CartItem{Quantity: 2}).Units())
	assert.Equal(t, 4, (&SharedOrderItem{Quantity: 4, UnitCount: 0}).Units())
}
