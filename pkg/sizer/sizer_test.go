package sizer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSize_S6Scenario(t *testing.T) {
	assert.Equal(t, Nano, Size(500, 512))
	assert.Equal(t, Micro, Size(2000, 513))
	assert.Equal(t, XXLarge, Size(4000, 16385))
	assert.Equal(t, None, Size(math.MaxInt, math.MaxInt))
}

func TestSize_Minimality(t *testing.T) {
	// For every entry in the table, a demand exactly at its capacity must
	// not fit any smaller class but must fit this one.
	for i, e := range table {
		got := Size(e.cpu, e.memory)
		assert.Equal(t, e.class, got, "demand (%d, %d) should size to %s", e.cpu, e.memory, e.class)
		for j := 0; j < i; j++ {
			smaller := table[j]
			assert.False(t, smaller.cpu >= e.cpu && smaller.memory >= e.memory,
				"%s should not be able to fit a demand that requires %s", smaller.class, e.class)
		}
	}
}

func TestCapacity_RoundTrip(t *testing.T) {
	cpu, mem, ok := Capacity(Micro)
	assert.True(t, ok)
	assert.Equal(t, 2000, cpu)
	assert.Equal(t, 1024, mem)

	_, _, ok = Capacity(Class("bogus"))
	assert.False(t, ok)
}
