package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCharsPerTick(t *testing.T) {
	assert.Equal(t, 5, charsPerTick(100), "100 chars/s over 20 ticks/s")
	assert.Equal(t, 2, charsPerTick(40))
	assert.Equal(t, 1, charsPerTick(10), "slow speeds still advance one rune")
	assert.Equal(t, 1, charsPerTick(1))
}

func TestClampSpeed(t *testing.T) {
	assert.Equal(t, DefaultSpeed, clampSpeed(0))
	assert.Equal(t, MinSpeed, clampSpeed(3))
	assert.Equal(t, MaxSpeed, clampSpeed(500))
	assert.Equal(t, 60, clampSpeed(60))
}
