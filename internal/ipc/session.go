package ipc

import (
	"context"
	"fmt"

	"arwen/internal/logging"
	"arwen/internal/spec"
)

// Conn is the message-level surface of a Transport.
type Conn interface {
	Send(Outbound) error
	Receive(ctx context.Context) (Inbound, error)
}

// UnexpectedReplyError reports a reply of the wrong kind for the request
// that preceded it.
type UnexpectedReplyError struct {
	Want string
	Got  Inbound
}

func (e *UnexpectedReplyError) Error() string {
	return fmt.Sprintf("expected %s reply, got %s", e.Want, e.Got)
}

// Session runs the engine protocol over a Conn.
type Session struct {
	conn Conn
}

// NewSession wraps conn.
func NewSession(conn Conn) *Session {
	return &Session{conn: conn}
}

// Start sends the Start envelope.
func (s *Session) Start() error {
	return s.conn.Send(StartMsg{})
}

// EnterTestMode puts the engine into echo mode.
func (s *Session) EnterTestMode() error {
	return s.conn.Send(TestMsg{})
}

// Echo sends msg and returns the engine's Message reply. The engine must
// be in test mode.
func (s *Session) Echo(ctx context.Context, msg string) (string, error) {
	if err := s.conn.Send(Message(msg)); err != nil {
		return "", err
	}
	reply, err := s.conn.Receive(ctx)
	if err != nil {
		return "", err
	}
	m, ok := reply.(Message)
	if !ok {
		return "", &UnexpectedReplyError{Want: "Message", Got: reply}
	}
	return string(m), nil
}

// Discover sends setup and receives until the engine reports a Result.
// Messages arriving before the Result are returned as diagnostics.
func (s *Session) Discover(ctx context.Context, setup Setup) (spec.Result, []string, error) {
	timer := logging.StartTimer(logging.CategoryTransport, "discover "+setup.ClientName)
	defer timer.Stop()

	if err := s.conn.Send(setup); err != nil {
		return nil, nil, err
	}

	var messages []string
	for {
		reply, err := s.conn.Receive(ctx)
		if err != nil {
			return nil, messages, err
		}
		switch r := reply.(type) {
		case Message:
			logging.TransportDebug("engine: %s", string(r))
			messages = append(messages, string(r))
		case ResultEnvelope:
			return r.Result, messages, nil
		default:
			return nil, messages, &UnexpectedReplyError{Want: "Result", Got: reply}
		}
	}
}
