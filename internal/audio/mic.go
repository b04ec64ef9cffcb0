package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// CommandMicrophone captures by running an external recorder that writes
// raw PCM to stdout (arecord, sox, ffmpeg).
type CommandMicrophone struct {
	Command []string
	// StopTimeout is how long the recorder gets to exit after an interrupt
	StopTimeout time.Duration
}

// NewCommandMicrophone creates a microphone backed by command
func NewCommandMicrophone(command []string) *CommandMicrophone {
	return &CommandMicrophone{Command: command, StopTimeout: 2 * time.Second}
}

// Open starts the recorder. A missing binary or a recorder that fails to
// start is reported as a *PermissionError.
func (m *CommandMicrophone) Open(ctx context.Context) (io.ReadCloser, error) {
	if len(m.Command) == 0 {
		return nil, &PermissionError{Device: "none", Err: errors.New("no capture command configured")}
	}
	device := m.Command[0]

	binary, err := exec.LookPath(device)
	if err != nil {
		return nil, &PermissionError{Device: device, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// not CommandContext: the recorder outlives Start's context and is
	// stopped through Close
	cmd := exec.Command(binary, m.Command[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &PermissionError{Device: device, Err: fmt.Errorf("stdout pipe: %w", err)}
	}
	stream := &commandStream{
		device:  device,
		cmd:     cmd,
		stdout:  stdout,
		timeout: m.StopTimeout,
	}
	cmd.Stderr = &stream.stderr

	if err := cmd.Start(); err != nil {
		return nil, &PermissionError{Device: device, Err: err}
	}
	return stream, nil
}

type commandStream struct {
	device  string
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  bytes.Buffer
	timeout time.Duration

	closeOnce sync.Once
	waitOnce  sync.Once
	closed    bool
	mu        sync.Mutex
	waitErr   error
	killTimer *time.Timer
}

// Read returns buffered audio until the recorder exits. A recorder that
// dies on its own with an error is surfaced as a *PermissionError.
func (s *commandStream) Read(p []byte) (int, error) {
	n, err := s.stdout.Read(p)
	if err == nil {
		return n, nil
	}
	if waitErr := s.wait(); waitErr != nil {
		s.mu.Lock()
		requested := s.closed
		s.mu.Unlock()
		if !requested {
			msg := strings.TrimSpace(s.stderr.String())
			if msg != "" {
				waitErr = fmt.Errorf("%w: %s", waitErr, msg)
			}
			return n, &PermissionError{Device: s.device, Err: waitErr}
		}
	}
	return n, io.EOF
}

// Close interrupts the recorder so it flushes, killing it after the timeout
func (s *commandStream) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if s.cmd.Process == nil {
			return
		}
		if err := s.cmd.Process.Signal(os.Interrupt); err != nil {
			_ = s.cmd.Process.Kill()
			return
		}
		timeout := s.timeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		s.mu.Lock()
		s.killTimer = time.AfterFunc(timeout, func() { _ = s.cmd.Process.Kill() })
		s.mu.Unlock()
	})
	return nil
}

func (s *commandStream) wait() error {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
		s.mu.Lock()
		if s.killTimer != nil {
			s.killTimer.Stop()
		}
		s.mu.Unlock()
	})
	return s.waitErr
}

// PCMMicrophone replays fixed PCM data. With Live set the stream stays
// open after the data until closed, like a real device.
type PCMMicrophone struct {
	PCM  []byte
	Live bool
	// Deny makes Open fail with a *PermissionError
	Deny bool

	mu    sync.Mutex
	opens int
}

// Open returns a stream over the configured PCM
func (m *PCMMicrophone) Open(ctx context.Context) (io.ReadCloser, error) {
	if m.Deny {
		return nil, &PermissionError{Device: "pcm", Err: errors.New("permission denied")}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.opens++
	m.mu.Unlock()

	return &pcmStream{
		data:   bytes.NewReader(m.PCM),
		live:   m.Live,
		closed: make(chan struct{}),
	}, nil
}

// Opens returns how many sessions were opened
func (m *PCMMicrophone) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

type pcmStream struct {
	data      *bytes.Reader
	live      bool
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *pcmStream) Read(p []byte) (int, error) {
	n, err := s.data.Read(p)
	if n > 0 || !errors.Is(err, io.EOF) {
		return n, err
	}
	if s.live {
		<-s.closed
	}
	return 0, io.EOF
}

func (s *pcmStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}
