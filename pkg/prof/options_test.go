package prof

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptionsAny(t *testing.T) {
	assert.False(t, Options{}.Any())
	assert.True(t, Options{Heap: "heap.prof"}.Any())
	assert.True(t, Options{Block: true}.Any())
}
