package distributor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dyluth/downlink/pkg/status"
)

// recorder is a Listener that keeps every delivery.
type recorder struct {
	ids    []string
	values []string
}

func (r *recorder) Deliver(item *status.Item, id string) {
	r.ids = append(r.ids, id)
	r.values = append(r.values, item.Value())
}

func TestMultiplexer(t *testing.T) {
	var m Multiplexer
	l1, l2 := &recorder{}, &recorder{}

	assert.True(t, m.AddListener(l1))
	assert.True(t, m.AddListener(l2))
	assert.False(t, m.AddListener(l1), "adding twice has no effect")
	assert.Equal(t, 2, m.Len())

	item := status.NewInteger("Frames")
	item.Set(3)
	m.Deliver(item, "vcdu.main.Frames")

	assert.Equal(t, []string{"vcdu.main.Frames"}, l1.ids)
	assert.Equal(t, []string{"3"}, l2.values)

	assert.Equal(t, 1, m.RemoveListener(l1))
	assert.Equal(t, 1, m.RemoveListener(&recorder{}), "removing a stranger changes nothing")

	m.Deliver(item, "vcdu.main.Frames")
	assert.Len(t, l1.ids, 1)
	assert.Len(t, l2.ids, 2)

	assert.Equal(t, 0, m.RemoveListener(l2))
}

func TestFuncListenersAreDistinct(t *testing.T) {
	var m Multiplexer
	calls := 0
	fn := func(*status.Item, string) { calls++ }

	assert.True(t, m.AddListener(NewFuncListener(fn)))
	assert.True(t, m.AddListener(NewFuncListener(fn)))

	m.Deliver(status.NewText("x"), "a.b.x")
	assert.Equal(t, 2, calls)
}
