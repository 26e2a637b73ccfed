// Package publisher streams the current posture label to one TCP client.
//
// The server accepts exactly one connection for the life of the process. It
// writes the label as a newline-terminated UTF-8 line immediately after the
// accept and then once per interval. The first failed write closes the
// connection and the listener; no other client is ever served.
package publisher

import (
	"PostureServer/logger"
	"PostureServer/monitor"
	"PostureServer/posture"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultAddr     = ":5000"
	DefaultInterval = 500 * time.Millisecond
)

var (
	ErrListen = errors.New("status listener unavailable")
	ErrAccept = errors.New("status accept failed")
	ErrSend   = errors.New("status send failed")
)

type State int32

const (
	Idle State = iota
	Listening
	Streaming
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Streaming:
		return "streaming"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// LabelReader is the read side of the posture state.
type LabelReader interface {
	Get() posture.Label
}

type Publisher struct {
	addr     string
	interval time.Duration
	posture  LabelReader
	log      *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	state    atomic.Int32
}

func New(addr string, interval time.Duration, labels LabelReader, log *zap.Logger) *Publisher {
	if addr == "" {
		addr = DefaultAddr
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Publisher{
		addr:     addr,
		interval: interval,
		posture:  labels,
		log:      logger.OrNop(log),
	}
}

// Listen binds the status port. Run calls it when it has not been called yet.
func (p *Publisher) Listen() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.State() == Closed {
		return fmt.Errorf("%w: publisher already closed", ErrListen)
	}
	if p.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", p.addr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrListen, err)
	}
	p.listener = ln
	p.state.Store(int32(Listening))
	p.log.Info("status server listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr is the bound address, or nil before Listen.
func (p *Publisher) Addr() net.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return nil
	}
	return p.listener.Addr()
}

func (p *Publisher) State() State {
	return State(p.state.Load())
}

// Run listens, accepts one client and streams labels to it until a write
// fails. It always ends in the Closed state.
func (p *Publisher) Run(ctx context.Context) error {
	if err := p.Listen(); err != nil {
		p.state.Store(int32(Closed))
		return err
	}
	p.mu.Lock()
	ln := p.listener
	p.mu.Unlock()

	defer func() {
		_ = ln.Close()
		p.state.Store(int32(Closed))
		p.log.Info("status server closed")
	}()
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrAccept, err)
	}
	defer conn.Close()
	stopConn := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stopConn()

	p.state.Store(int32(Streaming))
	log := p.log.With(zap.String("client", conn.RemoteAddr().String()))
	log.Info("status client connected")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		if err := p.send(conn); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("status client lost", zap.Error(err))
			return fmt.Errorf("%w: %w", ErrSend, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Publisher) send(w io.Writer) error {
	line := p.posture.Get().String() + "\n"
	if _, err := io.WriteString(w, line); err != nil {
		return err
	}
	monitor.StatusLinesSent.Inc()
	return nil
}
