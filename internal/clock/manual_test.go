package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestManual_AdvanceRunsDueCallbacksInOrder(t *testing.T) {
	m := NewManual(epoch)
	var got []string

	m.AfterFunc(300*time.Millisecond, func() { got = append(got, "c") })
	m.AfterFunc(100*time.Millisecond, func() { got = append(got, "a") })
	m.AfterFunc(100*time.Millisecond, func() { got = append(got, "b") })

	m.Advance(200 * time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, epoch.Add(200*time.Millisecond), m.Now())
	assert.Equal(t, 1, m.Pending())

	m.Advance(100 * time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestManual_StopCancels(t *testing.T) {
	m := NewManual(epoch)
	fired := false
	tm := m.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())
	m.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestManual_CallbackSchedulesWithinWindow(t *testing.T) {
	m := NewManual(epoch)
	var at []time.Time

	m.AfterFunc(100*time.Millisecond, func() {
		at = append(at, m.Now())
		m.AfterFunc(50*time.Millisecond, func() { at = append(at, m.Now()) })
	})

	m.Advance(time.Second)
	assert.Equal(t, []time.Time{epoch.Add(100 * time.Millisecond), epoch.Add(150 * time.Millisecond)}, at)
}

func TestManual_AdvanceToNext(t *testing.T) {
	m := NewManual(epoch)
	assert.False(t, m.AdvanceToNext())

	fired := 0
	m.AfterFunc(40*time.Millisecond, func() { fired++ })
	next, ok := m.NextDeadline()
	assert.True(t, ok)
	assert.Equal(t, epoch.Add(40*time.Millisecond), next)

	assert.True(t, m.AdvanceToNext())
	assert.Equal(t, 1, fired)
	assert.Equal(t, next, m.Now())
}

func TestReal_AfterFunc(t *testing.T) {
	done := make(chan struct{})
	Real{}.AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("real timer did not fire")
	}
}
