package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"arwen/internal/spec"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =============================================================================
// FAKE ENGINE
// =============================================================================

// TestHelperProcess isn't a real test. It's used as a helper process
// standing in for the engine; FAKE_ENGINE_MODE selects its behaviour.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("FAKE_ENGINE_MODE") {
	case "exit":
		fmt.Fprintln(os.Stderr, "engine crashed")
		os.Exit(3)
	case "garbage":
		fmt.Println("this is not json")
		fmt.Println(`{"Message":"after"}`)
		os.Exit(0)
	case "hang":
		// Ignore stdin EOF and wait to be killed.
		time.Sleep(time.Hour)
	default:
		runFakeEngine()
	}
	os.Exit(0)
}

func runFakeEngine() {
	out := json.NewEncoder(os.Stdout)
	testMode := false
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Bytes()
		switch strings.TrimSpace(string(line)) {
		case `"Start"`:
			continue
		case `"Test"`:
			testMode = true
			continue
		}
		var env map[string]json.RawMessage
		if err := json.Unmarshal(line, &env); err != nil {
			_ = out.Encode(Message("bad request"))
			continue
		}
		if raw, ok := env["Message"]; ok && testMode {
			var s string
			_ = json.Unmarshal(raw, &s)
			_ = out.Encode(Message(s))
			continue
		}
		if raw, ok := env["Setup"]; ok {
			var setup struct {
				SourceFile string `json:"sourcefile"`
				ClientName string `json:"client_name"`
			}
			_ = json.Unmarshal(raw, &setup)
			_ = out.Encode(Message("loading " + setup.SourceFile))
			_ = out.Encode(Message("synthesizing " + setup.ClientName))
			_ = out.Encode(ResultEnvelope{Result: spec.Discovered{{
				Name: setup.ClientName,
				Spec: spec.Spec{
					Args:    []spec.TypedVar{{Type: spec.AInt{}, Name: "u"}},
					Formula: spec.ForallFormula{Body: spec.True{}},
				},
			}}})
		}
	}
}

func fakeEngine(mode string) Command {
	return Command{
		Path:  os.Args[0],
		Args:  []string{"-test.run=TestHelperProcess", "--"},
		Env:   []string{"GO_WANT_HELPER_PROCESS=1", "FAKE_ENGINE_MODE=" + mode},
		Grace: 2 * time.Second,
	}
}

func startFake(t *testing.T, mode string) *Transport {
	t.Helper()
	tr, err := Start(context.Background(), fakeEngine(mode))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = tr.Shutdown(context.Background())
	})
	return tr
}

func receiveCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// =============================================================================
// TESTS
// =============================================================================

func TestParseCommand(t *testing.T) {
	c := ParseCommand("dune exec stub --profile release")
	assert.Equal(t, "dune", c.Path)
	assert.Equal(t, []string{"exec", "stub", "--profile", "release"}, c.Args)
	assert.Equal(t, "dune exec stub --profile release", c.String())
	assert.Equal(t, Command{}, ParseCommand("   "))
}

func TestStartErrors(t *testing.T) {
	_, err := Start(context.Background(), Command{})
	assert.Error(t, err)

	_, err = Start(context.Background(), Command{Path: "/definitely/not/an/engine"})
	assert.Error(t, err)
}

func TestEchoOrdering(t *testing.T) {
	tr := startFake(t, "echo")
	assert.Equal(t, Running, tr.State())

	s := NewSession(tr)
	require.NoError(t, s.Start())
	require.NoError(t, s.EnterTestMode())

	sent := []string{"L [1, 0]", "I -1", "Pred True"}
	for _, m := range sent {
		require.NoError(t, tr.Send(Message(m)))
	}
	for _, want := range sent {
		got, err := tr.Receive(receiveCtx(t))
		require.NoError(t, err)
		assert.Equal(t, Message(want), got)
	}

	reply, err := s.Echo(receiveCtx(t), "hello World!")
	require.NoError(t, err)
	assert.Equal(t, "hello World!", reply)
}

func TestDiscover(t *testing.T) {
	tr := startFake(t, "echo")
	s := NewSession(tr)
	require.NoError(t, s.Start())

	result, messages, err := s.Discover(receiveCtx(t), Setup{
		SourceFile:    "data/customstk.ml",
		AssertionFile: "data/customstk_assertion1.ml",
		OutputDir:     "customstk_out",
		ClientName:    "concat",
		Predicates:    spec.Predicates{spec.Member, spec.Head},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"loading data/customstk.ml", "synthesizing concat"}, messages)

	found, ok := result.(spec.Discovered)
	require.True(t, ok, "got %T", result)
	require.Len(t, found, 1)
	assert.Equal(t, "concat", found[0].Name)
	assert.Equal(t, "u : int ⊢ true", found[0].Spec.String())
}

func TestDecodeErrorIsFatalToOneLine(t *testing.T) {
	tr := startFake(t, "garbage")
	ctx := receiveCtx(t)

	_, err := tr.Receive(ctx)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "this is not json", de.Line)

	msg, err := tr.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, Message("after"), msg)

	_, err = tr.Receive(ctx)
	assert.ErrorIs(t, err, ErrTransportClosed)
}

func TestChildExitFailsPendingReceive(t *testing.T) {
	tr := startFake(t, "exit")

	_, err := tr.Receive(receiveCtx(t))
	assert.ErrorIs(t, err, ErrTransportClosed)

	// The closed condition is sticky.
	_, err = tr.Receive(receiveCtx(t))
	assert.ErrorIs(t, err, ErrTransportClosed)
}

func TestReceiveDeadlineAbandons(t *testing.T) {
	tr := startFake(t, "echo")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := tr.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.ErrorIs(t, tr.Send(Message("late")), ErrAbandoned)
	_, err = tr.Receive(receiveCtx(t))
	assert.ErrorIs(t, err, ErrAbandoned)
}

func TestShutdownKillsAfterGrace(t *testing.T) {
	cmd := fakeEngine("hang")
	cmd.Grace = 100 * time.Millisecond
	tr, err := Start(context.Background(), cmd)
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, tr.Shutdown(context.Background()))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, Killed, tr.State())

	assert.ErrorIs(t, tr.Send(StartMsg{}), ErrTransportClosed)
	_, err = tr.Receive(context.Background())
	assert.ErrorIs(t, err, ErrTransportClosed)

	// Idempotent.
	require.NoError(t, tr.Shutdown(context.Background()))
}

func TestShutdownWaitsForCleanExit(t *testing.T) {
	tr := startFake(t, "echo")
	require.NoError(t, NewSession(tr).EnterTestMode())
	require.NoError(t, tr.Send(Message("last words")))

	// The reply written before stdin closes is not lost.
	msg, err := tr.Receive(receiveCtx(t))
	require.NoError(t, err)
	assert.Equal(t, Message("last words"), msg)

	require.NoError(t, tr.Shutdown(context.Background()))
	assert.Equal(t, Killed, tr.State())
}

func TestStartContextCancelKillsEngine(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr, err := Start(ctx, fakeEngine("hang"))
	require.NoError(t, err)
	defer func() { _ = tr.Shutdown(context.Background()) }()

	cancel()
	_, err = tr.Receive(receiveCtx(t))
	assert.True(t, errors.Is(err, ErrTransportClosed), "got %v", err)
}
