// Package ipc drives the lemma-discovery engine as a child process over a
// line-oriented JSON protocol.
//
// Requests and replies are paired by position only: the nth reply answers
// the nth request. Callers must not pipeline unmatched sends.
package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"arwen/internal/logging"
)

var (
	// ErrTransportClosed means the engine exited or closed its output and
	// every reply it produced has been received.
	ErrTransportClosed = errors.New("engine transport closed")
	// ErrAbandoned means an earlier Receive gave up on its context. The
	// pairing of requests and replies is lost; shut the transport down.
	ErrAbandoned = errors.New("engine transport abandoned after cancelled receive")
	// ErrNotRunning means the transport was never started.
	ErrNotRunning = errors.New("engine transport not running")
)

// DefaultGrace is how long Shutdown waits for the engine to exit on its
// own before killing it.
const DefaultGrace = time.Second

// maxLineSize bounds a single engine output line.
const maxLineSize = 16 * 1024 * 1024

// Command describes how to launch the engine.
type Command struct {
	Path  string
	Args  []string
	Dir   string   // working directory; empty means the current one
	Env   []string // extra KEY=VALUE entries appended to the environment
	Grace time.Duration
}

// ParseCommand splits a command line such as "dune exec stub --profile
// release" on whitespace.
func ParseCommand(line string) Command {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return Command{}
	}
	return Command{Path: parts[0], Args: parts[1:]}
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Path}, c.Args...), " ")
}

// State is the lifecycle state of a Transport.
type State int

const (
	Created State = iota
	Running
	Killed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Killed:
		return "killed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Transport owns one engine process. Send and Receive may be called from
// different goroutines, but each must have a single caller at a time.
type Transport struct {
	mu        sync.Mutex
	state     State
	abandoned bool

	command Command
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	stderr  io.ReadCloser

	writeMu sync.Mutex
	queue   *queue

	group   errgroup.Group
	pipes   sync.WaitGroup
	exited  chan struct{}
	waitErr error
}

// Start launches the engine. Cancelling ctx kills the engine.
func Start(ctx context.Context, c Command) (*Transport, error) {
	if c.Path == "" {
		return nil, fmt.Errorf("empty engine command")
	}
	if c.Grace <= 0 {
		c.Grace = DefaultGrace
	}

	t := &Transport{
		command: c,
		queue:   newQueue(),
		exited:  make(chan struct{}),
	}

	t.cmd = exec.CommandContext(ctx, c.Path, c.Args...)
	t.cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		t.cmd.Env = append(t.cmd.Environ(), c.Env...)
	}

	var err error
	t.stdin, err = t.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	t.stdout, err = t.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	t.stderr, err = t.cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	if err := t.cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start engine %s: %w", c, err)
	}
	t.state = Running
	logging.Transport("engine started: %s (pid %d)", c, t.cmd.Process.Pid)

	t.pipes.Add(2)
	t.group.Go(t.readStderr)
	t.group.Go(t.readStdout)
	t.group.Go(t.wait)

	return t, nil
}

// State reports the lifecycle state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Pending reports how many decoded lines are waiting to be received.
func (t *Transport) Pending() int { return t.queue.len() }

func (t *Transport) usable() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.abandoned:
		return ErrAbandoned
	case t.state == Killed:
		return ErrTransportClosed
	case t.state != Running:
		return ErrNotRunning
	}
	return nil
}

// Send writes one envelope as a single line on the engine's stdin.
func (t *Transport) Send(msg Outbound) error {
	if err := t.usable(); err != nil {
		return err
	}
	data, err := EncodeOutbound(msg)
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	_, err = t.stdin.Write(append(data, '\n'))
	t.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: write: %v", ErrTransportClosed, err)
	}
	logging.TransportDebug("sent: %s", data)
	return nil
}

// Receive blocks until the next envelope from the engine is available.
// It returns a *DecodeError for a line that could not be decoded, and
// ErrTransportClosed once the engine's output has ended and been drained.
// If ctx ends first the transport is abandoned: every later Send or
// Receive fails with ErrAbandoned.
func (t *Transport) Receive(ctx context.Context) (Inbound, error) {
	if err := t.usable(); err != nil {
		return nil, err
	}

	it, ok, err := t.queue.pop(ctx)
	if err != nil {
		t.mu.Lock()
		t.abandoned = true
		t.mu.Unlock()
		logging.TransportWarn("receive abandoned: %v", err)
		return nil, err
	}
	if !ok {
		select {
		case <-t.exited:
			if t.waitErr != nil {
				return nil, fmt.Errorf("%w: %v", ErrTransportClosed, t.waitErr)
			}
		default:
		}
		return nil, ErrTransportClosed
	}
	return it.msg, it.err
}

// Shutdown closes the engine's stdin and waits up to the grace period, or
// until ctx ends, for it to exit before killing it. Reader goroutines are
// joined before Shutdown returns. It is safe to call more than once.
func (t *Transport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	if t.state != Running {
		t.mu.Unlock()
		return nil
	}
	t.state = Killed
	t.mu.Unlock()

	t.writeMu.Lock()
	_ = t.stdin.Close()
	t.writeMu.Unlock()

	timer := time.NewTimer(t.command.Grace)
	defer timer.Stop()

	select {
	case <-t.exited:
	case <-timer.C:
		t.kill("grace period elapsed")
	case <-ctx.Done():
		t.kill(ctx.Err().Error())
	}

	err := t.group.Wait()
	logging.Transport("engine stopped")
	return err
}

func (t *Transport) kill(reason string) {
	logging.TransportWarn("killing engine: %s", reason)
	if t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
	}
	// Unblock readers even if a grandchild still holds the pipes.
	_ = t.stdout.Close()
	_ = t.stderr.Close()
}

// readStderr logs engine stderr line by line.
func (t *Transport) readStderr() error {
	defer t.pipes.Done()
	scanner := bufio.NewScanner(t.stderr)
	for scanner.Scan() {
		logging.Get(logging.CategoryTransport).Info("[STDERR] %s", scanner.Text())
	}
	return nil
}

// readStdout decodes engine stdout into the queue, one envelope per line.
func (t *Transport) readStdout() error {
	defer t.pipes.Done()
	defer t.queue.close()

	scanner := bufio.NewScanner(t.stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		logging.TransportDebug("received: %s", line)
		msg, err := DecodeInbound(line)
		if err != nil {
			logging.TransportWarn("%v", err)
		}
		t.queue.push(item{msg: msg, err: err})
	}

	if err := scanner.Err(); err != nil && t.State() == Running {
		// Surface the read failure to the consumer in order.
		t.queue.push(item{err: fmt.Errorf("%w: read: %v", ErrTransportClosed, err)})
	}
	return nil
}

// wait reaps the process once both pipes are drained.
func (t *Transport) wait() error {
	t.pipes.Wait()
	err := t.cmd.Wait()
	t.mu.Lock()
	killed := t.state == Killed
	t.mu.Unlock()
	if err != nil && !killed {
		t.waitErr = err
		logging.TransportWarn("engine exited: %v", err)
	}
	close(t.exited)
	return nil
}
