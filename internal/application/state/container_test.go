package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimarket/aimarket-go/internal/domain/user"
)

func TestGetStartsSignedOut(t *testing.T) {
	c := NewContainer()
	snap := c.Get()
	assert.Nil(t, snap.User)
	assert.Empty(t, snap.Notice)
}

func TestSetUserClearsNotice(t *testing.T) {
	c := NewContainer()
	c.SetNotice("something went wrong")
	require.Equal(t, "something went wrong", c.Get().Notice)

	c.SetUser(&user.SessionUser{ID: "u1", Email: "u1@example.com"})

	snap := c.Get()
	require.NotNil(t, snap.User)
	assert.Equal(t, "u1", snap.User.ID)
	assert.Empty(t, snap.Notice)
}

func TestGetReturnsIsolatedCopy(t *testing.T) {
	c := NewContainer()
	c.SetUser(&user.SessionUser{ID: "u1", Interests: []int64{1, 2}})

	snap := c.Get()
	snap.User.ID = "mutated"
	snap.User.Interests[0] = 99

	again := c.Get()
	assert.Equal(t, "u1", again.User.ID)
	assert.Equal(t, []int64{1, 2}, again.User.Interests)
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	c := NewContainer()
	ch, unsubscribe := c.Subscribe()
	defer unsubscribe()

	c.SetUser(&user.SessionUser{ID: "u1"})

	select {
	case snap := <-ch:
		require.NotNil(t, snap.User)
		assert.Equal(t, "u1", snap.User.ID)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestSlowSubscriberGetsNewestNotStale(t *testing.T) {
	c := NewContainer()
	ch, unsubscribe := c.Subscribe()
	defer unsubscribe()

	// Fill the buffer without reading, then publish twice more. The pending
	// value must be replaced, never left stale.
	c.SetUser(&user.SessionUser{ID: "first"})
	c.SetUser(&user.SessionUser{ID: "second"})
	c.SetUser(&user.SessionUser{ID: "third"})

	select {
	case snap := <-ch:
		require.NotNil(t, snap.User)
		assert.Equal(t, "third", snap.User.ID)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	c := NewContainer()
	ch, unsubscribe := c.Subscribe()
	unsubscribe()

	c.SetUser(&user.SessionUser{ID: "u1"})

	select {
	case <-ch:
		t.Fatal("snapshot delivered after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}
