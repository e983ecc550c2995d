package relay

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierchat/internal/identity"
)

func TestSessionStartsConnected(t *testing.T) {
	sess := newTestSession()
	assert.Equal(t, StateConnected, sess.State())
	assert.NotEmpty(t, sess.ID)

	_, ok := sess.Identity()
	assert.False(t, ok)
}

func TestSessionBindIdentity(t *testing.T) {
	sess := newTestSession()

	err := sess.bindIdentity(identity.Identity{ID: "u-1", Email: "a@x.com"})
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, sess.State())

	id, ok := sess.Identity()
	require.True(t, ok)
	assert.Equal(t, "a@x.com", id.Email)
}

func TestSessionBindAfterCloseFails(t *testing.T) {
	sess := newTestSession()
	sess.Close(websocket.CloseNormalClosure, "bye")

	err := sess.bindIdentity(identity.Identity{Email: "a@x.com"})
	assert.Error(t, err)
}

func TestSessionWriteLoopDeliversInOrder(t *testing.T) {
	conn := &fakeConn{}
	sess := NewSession(conn, SessionConfig{SendQueueSize: 8})
	sess.Start()

	require.NoError(t, sess.Send([]byte("one")))
	require.NoError(t, sess.Send([]byte("two")))
	require.NoError(t, sess.Send([]byte("three")))

	require.Eventually(t, func() bool {
		return len(conn.written()) == 3
	}, time.Second, 5*time.Millisecond)

	writes := conn.written()
	assert.Equal(t, "one", string(writes[0]))
	assert.Equal(t, "two", string(writes[1]))
	assert.Equal(t, "three", string(writes[2]))
}

func TestSessionSendAfterClose(t *testing.T) {
	sess := newTestSession()
	sess.Close(websocket.CloseNormalClosure, "bye")

	assert.Error(t, sess.Send([]byte("late")))
}

func TestSessionCloseIdempotent(t *testing.T) {
	conn := &fakeConn{}
	sess := NewSession(conn, SessionConfig{})

	sess.Close(websocket.CloseNormalClosure, "bye")
	sess.Close(websocket.CloseNormalClosure, "bye again")

	assert.Equal(t, StateClosed, sess.State())
	assert.True(t, conn.isClosed())
}

func TestSessionFullBufferCloses(t *testing.T) {
	// Write loop not started, so the queue fills up and the overflow send
	// must close the session instead of blocking.
	sess := NewSession(&fakeConn{}, SessionConfig{SendQueueSize: 2})

	require.NoError(t, sess.Send([]byte("1")))
	require.NoError(t, sess.Send([]byte("2")))

	assert.Error(t, sess.Send([]byte("3")))
	assert.Equal(t, StateClosed, sess.State())
}

func TestSessionRateLimiter(t *testing.T) {
	sess := NewSession(&fakeConn{}, SessionConfig{RateLimit: 0.001, RateBurst: 2})

	assert.True(t, sess.AllowSend())
	assert.True(t, sess.AllowSend())
	assert.False(t, sess.AllowSend(), "burst exhausted")
}
