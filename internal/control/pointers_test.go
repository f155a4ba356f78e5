package control

import (
	"testing"

	"github.com/frudas24/remotectl/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPointerTable_StableSlots verifies live ids keep their slot and freed slots are reused.
func TestPointerTable_StableSlots(t *testing.T) {
	table := NewPointerTable(10)

	s5, err := table.Acquire(5)
	require.NoError(t, err)
	s7, err := table.Acquire(7)
	require.NoError(t, err)
	assert.NotEqual(t, s5, s7)

	again, err := table.Acquire(5)
	require.NoError(t, err)
	assert.Equal(t, s5, again)

	table.Release(s5)
	s9, err := table.Acquire(9)
	require.NoError(t, err)
	assert.Equal(t, s5, s9)
	assert.Equal(t, 2, table.Live())
}

// TestPointerTable_Full verifies the table refuses ids beyond capacity without growing.
func TestPointerTable_Full(t *testing.T) {
	table := NewPointerTable(2)
	_, err := table.Acquire(1)
	require.NoError(t, err)
	_, err = table.Acquire(2)
	require.NoError(t, err)

	_, err = table.Acquire(3)
	assert.ErrorIs(t, err, ErrPointersFull)
	assert.Equal(t, 2, table.Capacity())

	slot, err := table.Acquire(2)
	require.NoError(t, err)
	assert.Equal(t, 1, slot)
}

// TestPointerTable_UpdateCountsTerminalPointer verifies an up pointer counts until released.
func TestPointerTable_UpdateCountsTerminalPointer(t *testing.T) {
	table := NewPointerTable(4)
	a, _ := table.Acquire(1)
	b, _ := table.Acquire(2)
	table.Update(a, device.Point{X: 1, Y: 1}, 1, device.ToolFinger, false)
	live := table.Update(b, device.Point{X: 2, Y: 2}, 1, device.ToolFinger, true)
	assert.Equal(t, 2, live)
	table.Release(b)
	assert.Equal(t, 1, table.Live())
}

// TestPointerTable_PointersCompactIndex verifies the action index is the position among live pointers.
func TestPointerTable_PointersCompactIndex(t *testing.T) {
	table := NewPointerTable(4)
	a, _ := table.Acquire(10)
	b, _ := table.Acquire(11)
	c, _ := table.Acquire(12)
	table.Update(c, device.Point{X: 30, Y: 30}, 0.5, device.ToolFinger, false)
	table.Release(a)

	pointers, index := table.Pointers(c)
	require.Len(t, pointers, 2)
	assert.Equal(t, 1, index)
	assert.Equal(t, b, pointers[0].ID)
	assert.Equal(t, c, pointers[1].ID)
	assert.Equal(t, 30, pointers[1].X)
	assert.Equal(t, float32(0.5), pointers[1].Pressure)
}

// TestPointerTable_DefaultCapacity verifies a non-positive capacity falls back to the default.
func TestPointerTable_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultMaxPointers, NewPointerTable(0).Capacity())
}
