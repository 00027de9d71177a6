package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessTypeLabel(t *testing.T) {
	assert.Equal(t, "Autolaunched Flow", ProcessTypeLabel("AutoLaunchedFlow"))
	assert.Equal(t, "Screen Flow", ProcessTypeLabel("Flow"))

	// Unknown tags pass through verbatim.
	assert.Equal(t, "SomeFutureType", ProcessTypeLabel("SomeFutureType"))
}

func TestKnownProcessTypesSorted(t *testing.T) {
	types := KnownProcessTypes()
	assert.NotEmpty(t, types)
	for i := 1; i < len(types); i++ {
		assert.Less(t, types[i-1], types[i])
	}
}
