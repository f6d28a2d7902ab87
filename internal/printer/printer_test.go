package printer

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestError(t *testing.T) {
	noColor(t)

	t.Run("returns error with title", func(t *testing.T) {
		var buf bytes.Buffer
		err := Error(&buf, "Test Error", "This is a test error", []string{})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
		assert.Contains(t, buf.String(), "This is a test error")
	})

	t.Run("single suggestion is printed bare", func(t *testing.T) {
		var buf bytes.Buffer
		err := Error(&buf, "Test Error", "Explanation", []string{"Try this fix"})
		require.Equal(t, "Test Error", err.Error())
		assert.Contains(t, buf.String(), "\nTry this fix\n")
		assert.NotContains(t, buf.String(), "Either:")
	})

	t.Run("multiple suggestions are numbered", func(t *testing.T) {
		var buf bytes.Buffer
		err := Error(&buf, "Test Error", "Explanation", []string{
			"First option",
			"Second option",
		})
		require.Equal(t, "Test Error", err.Error())
		assert.Contains(t, buf.String(), "Either:\n  1. First option\n  2. Second option\n")
	})
}

func TestErrorWithContext(t *testing.T) {
	noColor(t)

	var buf bytes.Buffer
	context := map[string]string{
		"Redis":    "localhost:6379",
		"Instance": "aqua",
	}
	err := ErrorWithContext(&buf, "Test Error", "Explanation", context, []string{"Fix it"})
	require.Error(t, err)
	require.Equal(t, "Test Error", err.Error())

	// Context lines are sorted by key.
	assert.Contains(t, buf.String(), "  Instance: aqua\n  Redis: localhost:6379\n")
}

func TestMessages(t *testing.T) {
	noColor(t)

	var buf bytes.Buffer
	Success(&buf, "cleared %d items\n", 3)
	Success(&buf, "✓ done\n")
	Warning(&buf, "snapshot is stale\n")
	Step(&buf, "connecting\n")
	Info(&buf, "plain\n")

	assert.Equal(t, "✓ cleared 3 items\n✓ done\n⚠️  snapshot is stale\n→ connecting\nplain\n", buf.String())
}

func TestDelivery(t *testing.T) {
	noColor(t)

	var buf bytes.Buffer
	at := time.Date(2026, 1, 2, 13, 4, 5, 0, time.UTC)
	Delivery(&buf, at, "path.vc42.Idle VCDUs", "17")

	assert.Equal(t, "13:04:05 path.vc42.Idle VCDUs = 17\n", buf.String())
}
