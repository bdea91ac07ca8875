package ipc

import (
	"encoding/json"
	"fmt"

	"arwen/internal/spec"
)

// Outbound is a message sent to the engine: StartMsg, TestMsg, Setup or
// Message.
type Outbound interface {
	json.Marshaler
	isOutbound()
}

// Inbound is a message received from the engine: Message or ResultEnvelope.
type Inbound interface {
	fmt.Stringer
	json.Marshaler
	isInbound()
}

// StartMsg asks the engine to begin its session.
type StartMsg struct{}

// TestMsg switches the engine into echo mode, in which each Message is
// answered with the engine's own encoding of its argument.
type TestMsg struct{}

// Setup describes one discovery run. Paths are passed through unchanged;
// they are resolved by the engine.
type Setup struct {
	SourceFile    string          `json:"sourcefile"`
	AssertionFile string          `json:"assertionfile"`
	OutputDir     string          `json:"outputdir"`
	ClientName    string          `json:"client_name"`
	Predicates    spec.Predicates `json:"predicates"`
}

// Message carries free text in either direction. Engine diagnostics
// arrive as Messages and are passed through verbatim.
type Message string

// ResultEnvelope carries the engine's answer to a Setup.
type ResultEnvelope struct {
	Result spec.Result
}

func (StartMsg) MarshalJSON() ([]byte, error) { return json.Marshal("Start") }
func (TestMsg) MarshalJSON() ([]byte, error)  { return json.Marshal("Test") }

func (s Setup) MarshalJSON() ([]byte, error) {
	type plain Setup
	if s.Predicates == nil {
		s.Predicates = spec.Predicates{}
	}
	return spec.Tagged("Setup", plain(s))
}

// UnmarshalJSON reads the tagged form written by MarshalJSON.
func (s *Setup) UnmarshalJSON(data []byte) error {
	setup, err := DecodeSetup(data)
	if err != nil {
		return err
	}
	*s = setup
	return nil
}

// DecodeSetup decodes a {"Setup":{...}} envelope.
func DecodeSetup(data []byte) (Setup, error) {
	const kind = "Setup"
	tag, payload, err := spec.Variant(kind, data)
	if err != nil {
		return Setup{}, err
	}
	if tag != "Setup" || payload == nil {
		return Setup{}, &spec.DecodeError{Kind: kind, Msg: fmt.Sprintf("expected Setup envelope, got %q", tag)}
	}
	type plain Setup
	var p plain
	if err := json.Unmarshal(payload, &p); err != nil {
		return Setup{}, &spec.DecodeError{Kind: kind, Msg: "malformed payload", Err: err}
	}
	return Setup(p), nil
}

func (m Message) MarshalJSON() ([]byte, error) { return spec.Tagged("Message", string(m)) }

func (r ResultEnvelope) MarshalJSON() ([]byte, error) { return spec.Tagged("Result", r.Result) }

func (m Message) String() string        { return "Message: " + string(m) }
func (r ResultEnvelope) String() string { return "Result:\n" + r.Result.String() }

func (StartMsg) isOutbound() {}
func (TestMsg) isOutbound()  {}
func (Setup) isOutbound()    {}
func (Message) isOutbound()  {}

func (Message) isInbound()        {}
func (ResultEnvelope) isInbound() {}

// DecodeError reports an engine output line that is not a valid inbound
// envelope. It is fatal to that line only.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("undecodable engine line %q: %v", truncate(e.Line, 120), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeInbound decodes one line of engine output.
func DecodeInbound(line []byte) (Inbound, error) {
	const kind = "Inbound"
	tag, payload, err := spec.Variant(kind, line)
	if err != nil {
		return nil, &DecodeError{Line: string(line), Err: err}
	}
	switch tag {
	case "Message":
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, &DecodeError{Line: string(line), Err: err}
		}
		return Message(s), nil
	case "Result":
		r, err := spec.DecodeResult(payload)
		if err != nil {
			return nil, &DecodeError{Line: string(line), Err: err}
		}
		return ResultEnvelope{Result: r}, nil
	}
	return nil, &DecodeError{Line: string(line), Err: fmt.Errorf("unknown envelope %q", tag)}
}

// EncodeOutbound renders o as one wire line, without the trailing newline.
func EncodeOutbound(o Outbound) ([]byte, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", o, err)
	}
	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
