package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityOrder(t *testing.T) {
	d := NewDispatcher()
	var order []string

	d.Register(CmdPaste, PriorityLow, func(p Payload) bool {
		order = append(order, "low")
		return false
	})
	d.Register(CmdPaste, PriorityHigh, func(p Payload) bool {
		order = append(order, "high")
		return false
	})

	consumed := d.Dispatch(CmdPaste, Payload{})
	assert.False(t, consumed)
	assert.Equal(t, []string{"high", "low"}, order)
}

func TestConsumedStopsChain(t *testing.T) {
	d := NewDispatcher()
	var lowCalled bool

	d.Register(CmdEnter, PriorityHigh, func(p Payload) bool { return true })
	d.Register(CmdEnter, PriorityLow, func(p Payload) bool {
		lowCalled = true
		return true
	})

	assert.True(t, d.Dispatch(CmdEnter, Payload{}))
	assert.False(t, lowCalled, "обработчик LOW подавлен")
}

func TestRegistrationOrderWithinPriority(t *testing.T) {
	d := NewDispatcher()
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		d.Register(CmdBackspace, PriorityLow, func(p Payload) bool {
			order = append(order, i)
			return false
		})
	}
	d.Dispatch(CmdBackspace, Payload{})
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestRelease(t *testing.T) {
	d := NewDispatcher()
	var calls int
	release := d.Register(CmdUndo, PriorityLow, func(p Payload) bool {
		calls++
		return true
	})

	assert.True(t, d.Dispatch(CmdUndo, Payload{}))
	release()
	release() // идемпотентно
	assert.False(t, d.Dispatch(CmdUndo, Payload{}))
	assert.Equal(t, 1, calls)
}

func TestDispatchUnknownCommand(t *testing.T) {
	d := NewDispatcher()
	assert.False(t, d.Dispatch(Command("NOPE"), Payload{}))
}
