package config_test

import (
	"testing"

	"github.com/mna/nelumbo/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 100, c.StepInterval)
	assert.False(t, c.PinOSThread)
	assert.Equal(t, 4, c.DemoThreads)
}

func TestOverrides(t *testing.T) {
	t.Setenv("NELUMBO_STEP_INTERVAL", "7")
	t.Setenv("NELUMBO_PIN_OS_THREAD", "true")
	t.Setenv("NELUMBO_DEMO_THREADS", "2")

	c, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 7, c.StepInterval)
	assert.True(t, c.PinOSThread)
	assert.Equal(t, 2, c.DemoThreads)
}

func TestInvalidValues(t *testing.T) {
	t.Run("non-numeric", func(t *testing.T) {
		t.Setenv("NELUMBO_STEP_INTERVAL", "nope")
		_, err := config.Load()
		require.Error(t, err)
	})
	t.Run("non-positive interval", func(t *testing.T) {
		t.Setenv("NELUMBO_STEP_INTERVAL", "0")
		_, err := config.Load()
		assert.ErrorContains(t, err, "STEP_INTERVAL")
	})
	t.Run("non-positive threads", func(t *testing.T) {
		t.Setenv("NELUMBO_DEMO_THREADS", "-1")
		_, err := config.Load()
		assert.ErrorContains(t, err, "DEMO_THREADS")
	})
}
