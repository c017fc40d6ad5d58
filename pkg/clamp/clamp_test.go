package clamp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-3.5, 0, 10))
	assert.Equal(t, 10.0, Clamp(12.0, 0, 10))
	assert.Equal(t, 4.2, Clamp(4.2, 0, 10))
	assert.Equal(t, 0, Clamp(5, 0, -1))
}
