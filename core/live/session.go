// Package live implements the duplex streaming mode: continuous microphone
// PCM out, continuous synthesized PCM in, no turn-taking. The session owns
// the capture device, the websocket channel and the playback queue for the
// duration of one connection and unwinds all three on disconnect.
package live

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nimbusdesk/voice-core/core/audio"
	"github.com/nimbusdesk/voice-core/core/events"
)

type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

var ErrMissingCredential = errors.New("live api key not found")

// CaptureClient is a microphone delivering raw float samples.
type CaptureClient interface {
	StartCapture(ctx context.Context, onSamples func(samples []float32)) error
	StopCapture() error
}

// Player is the gapless queue inbound audio lands in. Satisfied by
// [playback.Scheduler].
type Player interface {
	Schedule(pcm []byte)
	Stop()
}

// Conn is the bidirectional channel. Satisfied by [websocket.Conn].
type Conn interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Close() error
}

type Dialer func(ctx context.Context, endpoint string, header http.Header) (Conn, error)

func websocketDialer(ctx context.Context, endpoint string, header http.Header) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	return conn, err
}

type Session struct {
	id       string
	apiKey   string
	endpoint string

	capture CaptureClient
	player  Player
	dial    Dialer
	emit    func(events.Event)

	mu        sync.Mutex
	status    Status
	lastError error
	conn      Conn
	captured  bool

	writeMu   sync.Mutex
	assembler frameAssembler
}

type SessionOption func(*Session)

func WithEndpoint(endpoint string) SessionOption {
	return func(s *Session) { s.endpoint = endpoint }
}

func WithCaptureClient(capture CaptureClient) SessionOption {
	return func(s *Session) { s.capture = capture }
}

func WithPlayer(player Player) SessionOption {
	return func(s *Session) { s.player = player }
}

// WithDialer replaces the websocket dialer. Intended for tests.
func WithDialer(dial Dialer) SessionOption {
	return func(s *Session) {
		if dial != nil {
			s.dial = dial
		}
	}
}

func WithEventHandler(handler func(events.Event)) SessionOption {
	return func(s *Session) {
		if handler != nil {
			s.emit = handler
		}
	}
}

func NewSession(opts ...SessionOption) *Session {
	session := &Session{
		id:     uuid.NewString(),
		apiKey: os.Getenv("LIVE_API_KEY"),
		status: StatusDisconnected,
		dial:   websocketDialer,
		emit:   func(events.Event) {},
	}
	for _, opt := range opts {
		opt(session)
	}
	session.assembler.emit = session.sendFrame
	return session
}

func (s *Session) ID() string { return s.id }

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// Connect fails fast without a credential, opens the channel, then wires the
// microphone. The capture callback only starts feeding frames once the
// channel reported open; nothing is buffered before that.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusDisconnected {
		s.mu.Unlock()
		return nil
	}
	if s.apiKey == "" {
		s.lastError = ErrMissingCredential
		s.mu.Unlock()
		return ErrMissingCredential
	}
	s.setStatusLocked(StatusConnecting)
	s.mu.Unlock()

	header := http.Header{}
	header.Set("Authorization", "Token "+s.apiKey)
	conn, err := s.dial(ctx, s.endpoint, header)
	if err != nil {
		err = fmt.Errorf("failed to open live channel: %w", err)
		s.mu.Lock()
		s.lastError = err
		s.setStatusLocked(StatusDisconnected)
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.setStatusLocked(StatusConnected)
	s.mu.Unlock()

	go s.readLoop(conn)

	if s.capture != nil {
		if err := s.capture.StartCapture(ctx, s.assembler.push); err != nil {
			err = fmt.Errorf("failed to start capture: %w", err)
			s.mu.Lock()
			s.lastError = err
			s.mu.Unlock()
			s.Disconnect()
			return err
		}
		s.mu.Lock()
		s.captured = true
		s.mu.Unlock()
	}

	return nil
}

// Disconnect unwinds everything Connect acquired, however far it got:
// microphone, pending frame tail, channel and in-flight playback. Calling it
// again, or concurrently, is a no-op.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.status == StatusDisconnected {
		s.mu.Unlock()
		return nil
	}
	conn := s.conn
	captured := s.captured
	s.conn = nil
	s.captured = false
	s.setStatusLocked(StatusDisconnected)
	s.mu.Unlock()

	var errs []error
	if captured && s.capture != nil {
		if err := s.capture.StopCapture(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop capture: %w", err))
		}
	}
	s.assembler.reset()
	if conn != nil {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if s.player != nil {
		s.player.Stop()
	}
	return errors.Join(errs...)
}

func (s *Session) sendFrame(pcm []byte) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}

	outbound := frame{
		Type:      frameTypeAudio,
		Audio:     audio.EncodeFrame(pcm),
		Timestamp: time.Now().UnixMilli(),
	}

	s.writeMu.Lock()
	err := conn.WriteJSON(outbound)
	s.writeMu.Unlock()
	if err != nil {
		logger.Warn("failed to send audio frame", "error", err)
	}
}

func (s *Session) readLoop(conn Conn) {
	for {
		var inbound frame
		if err := conn.ReadJSON(&inbound); err != nil {
			// A read error after Disconnect is the close we asked for.
			if s.Status() != StatusDisconnected {
				s.mu.Lock()
				s.lastError = err
				s.mu.Unlock()
				s.Disconnect()
			}
			return
		}

		switch inbound.Type {
		case frameTypeAudio:
			pcm, err := audio.DecodeFrame(inbound.Audio)
			if err != nil {
				logger.Warn("dropping undecodable audio frame", "error", err)
				continue
			}
			if s.player != nil {
				s.player.Schedule(pcm)
			}
		case frameTypeTurnStart:
			// A new server turn flushes whatever the previous one still had
			// queued.
			if s.player != nil {
				s.player.Stop()
			}
		case frameTypeTurnEnd:
		}
	}
}

func (s *Session) setStatusLocked(status Status) {
	if s.status == status {
		return
	}
	s.status = status
	go s.emit(events.NewSessionStatusChanged(string(status)))
}
