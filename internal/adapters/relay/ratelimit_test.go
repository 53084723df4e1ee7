package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientRateLimiter_Allow(t *testing.T) {
	rl := NewClientRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("c1"), "attempt %d should pass", i)
	}
	assert.False(t, rl.Allow("c1"))

	// Other connections have independent windows.
	assert.True(t, rl.Allow("c2"))
}

func TestClientRateLimiter_WindowExpiry(t *testing.T) {
	rl := NewClientRateLimiter(1, 20*time.Millisecond)

	assert.True(t, rl.Allow("c1"))
	assert.False(t, rl.Allow("c1"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, rl.Allow("c1"))
}

func TestClientRateLimiter_Forget(t *testing.T) {
	rl := NewClientRateLimiter(1, time.Minute)

	assert.True(t, rl.Allow("c1"))
	assert.False(t, rl.Allow("c1"))

	rl.Forget("c1")
	assert.True(t, rl.Allow("c1"))
}
