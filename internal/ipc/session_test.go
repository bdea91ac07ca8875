package ipc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arwen/internal/spec"
)

// scriptedConn replays canned replies and records what was sent.
type scriptedConn struct {
	sent    []Outbound
	replies []Inbound
	sendErr error
}

func (c *scriptedConn) Send(m Outbound) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, m)
	return nil
}

func (c *scriptedConn) Receive(ctx context.Context) (Inbound, error) {
	if len(c.replies) == 0 {
		return nil, ErrTransportClosed
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r, nil
}

func TestSessionEchoUnexpectedReply(t *testing.T) {
	conn := &scriptedConn{replies: []Inbound{ResultEnvelope{Result: spec.Cex{}}}}
	_, err := NewSession(conn).Echo(context.Background(), "I 0")

	var ue *UnexpectedReplyError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "Message", ue.Want)
	assert.Equal(t, []Outbound{Message("I 0")}, conn.sent)
}

func TestSessionDiscoverCex(t *testing.T) {
	cex := spec.Cex{{{Value: spec.ListValue{1, 2}, Name: "l1"}}}
	conn := &scriptedConn{replies: []Inbound{
		Message("checking"),
		ResultEnvelope{Result: cex},
	}}
	setup := Setup{ClientName: "concat", Predicates: spec.Predicates{spec.Member}}

	result, messages, err := NewSession(conn).Discover(context.Background(), setup)
	require.NoError(t, err)
	assert.Equal(t, cex, result)
	assert.Equal(t, []string{"checking"}, messages)
	assert.Equal(t, []Outbound{setup}, conn.sent)
}

func TestSessionDiscoverClosedEarly(t *testing.T) {
	conn := &scriptedConn{replies: []Inbound{Message("partial")}}
	_, messages, err := NewSession(conn).Discover(context.Background(), Setup{ClientName: "f"})
	assert.ErrorIs(t, err, ErrTransportClosed)
	assert.Equal(t, []string{"partial"}, messages)
}

func TestSessionSendFailure(t *testing.T) {
	conn := &scriptedConn{sendErr: ErrAbandoned}
	s := NewSession(conn)
	assert.ErrorIs(t, s.Start(), ErrAbandoned)
	_, err := s.Echo(context.Background(), "x")
	assert.ErrorIs(t, err, ErrAbandoned)
}
