package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Add(d time.Duration) { f.now = f.now.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestAdmit(t *testing.T) {
	const max = 5

	clock := newClock()
	l := New(7500*time.Millisecond, max, WithClock(clock.Now))

	for i := 0; i < max; i++ {
		ok, wait := l.Admit("10.0.0.1")
		require.True(t, ok, "request %d", i+1)
		require.Zero(t, wait)
	}

	clock.Add(2500 * time.Millisecond)

	ok, wait := l.Admit("10.0.0.1")
	require.False(t, ok)
	require.Equal(t, 5*time.Second, wait)

	// other clients have their own window
	ok, _ = l.Admit("10.0.0.2")
	require.True(t, ok)

	clock.Add(5 * time.Second)

	ok, wait = l.Admit("10.0.0.1")
	require.True(t, ok)
	require.Zero(t, wait)
}

func TestAdmitDisabled(t *testing.T) {
	cases := []struct {
		name   string
		window time.Duration
		max    int
	}{
		{name: "zero max", window: time.Second},
		{name: "negative max", window: time.Second, max: -1},
		{name: "zero window", max: 1},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.window, tt.max)
			for i := 0; i < 100; i++ {
				ok, _ := l.Admit("client")
				require.True(t, ok)
			}
			require.Zero(t, l.Len())
		})
	}
}

func TestSweep(t *testing.T) {
	clock := newClock()
	l := New(time.Second, 1, WithClock(clock.Now))

	l.Admit("a")
	clock.Add(500 * time.Millisecond)
	l.Admit("b")
	require.Equal(t, 2, l.Len())

	clock.Add(600 * time.Millisecond)
	require.Equal(t, 1, l.Sweep())
	require.Equal(t, 1, l.Len())

	clock.Add(time.Second)
	require.Equal(t, 1, l.Sweep())
	require.Zero(t, l.Len())
}
