package main

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"colco/sampler"
)

const firstFrameTimeout = 5 * time.Second

// streamSource reads fixed-size raw frames from a child process' stdout
// and keeps the most recent one.
type streamSource struct {
	name   string
	cancel context.CancelFunc
	cmd    *exec.Cmd
	done   chan struct{}
	ready  chan struct{} // closed when the first frame is available
	scale  float64

	mu    sync.Mutex
	frame sampler.Frame
	valid bool
}

// startStream runs cmd and waits for its first width x height frame in
// the given format. cancel must stop cmd.
func startStream(name string, cancel context.CancelFunc, cmd *exec.Cmd,
	width, height int, format sampler.PixelFormat, scale float64) (*streamSource, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%s stdout pipe: %w", name, err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("starting %s: %w", name, err)
	}

	s := &streamSource{
		name:   name,
		cancel: cancel,
		cmd:    cmd,
		done:   make(chan struct{}),
		ready:  make(chan struct{}),
		scale:  scale,
		frame: sampler.Frame{
			Pix:    make([]byte, width*height*4),
			Width:  width,
			Height: height,
			Stride: width * 4,
			Format: format,
		},
	}
	go s.readFrames(stdout)

	select {
	case <-s.ready:
		return s, nil
	case <-s.done:
		_ = s.Close()
		return nil, fmt.Errorf("%s: exited before the first frame", name)
	case <-time.After(firstFrameTimeout):
		_ = s.Close()
		return nil, fmt.Errorf("%s: timed out waiting for first frame", name)
	}
}

func (s *streamSource) readFrames(r io.Reader) {
	defer close(s.done)
	buf := make([]byte, len(s.frame.Pix))
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return
		}
		s.mu.Lock()
		buf, s.frame.Pix = s.frame.Pix, buf
		first := !s.valid
		s.valid = true
		s.mu.Unlock()
		if first {
			close(s.ready)
		}
	}
}

// View holds the frame lock while fn runs so the reader cannot swap the
// buffer underneath it.
func (s *streamSource) View(fn func(sampler.Frame) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.valid {
		return ErrNoFrame
	}
	return fn(s.frame)
}

func (s *streamSource) Scale() float64 { return s.scale }

func (s *streamSource) Close() error {
	s.cancel()
	<-s.done
	return s.cmd.Wait()
}
