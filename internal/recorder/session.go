// Package recorder implements the recording session state machine and its
// capture worker.
package recorder

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pcrane/voxcap/internal/audio"
	"github.com/pcrane/voxcap/internal/config"
)

var (
	// How long Stop waits for the worker before closing the stream out
	// from under it.
	workerJoinTimeout = 5 * time.Second

	// Poll interval while paused; the stream is stopped, so there is
	// nothing to read.
	pausePollInterval = 25 * time.Millisecond
)

type phase int

const (
	phaseIdle phase = iota
	phaseRecording
	phasePaused
	phaseStopping
)

// State is a point-in-time view of a session. Snapshot returns copies;
// callers never see live mutation.
type State struct {
	IsRecording    bool
	IsPaused       bool
	StartTime      time.Time
	Elapsed        time.Duration
	FramesRecorded int
	OutputPath     string
}

// Persister writes the accumulated frames to durable storage at stop time.
type Persister interface {
	Save(frames [][]byte, cfg config.AudioConfig, path string) error
}

// Session owns one start-to-stop recording lifecycle: the frame buffer, the
// capture worker and the stream. Control methods (Start, Pause, Resume,
// Stop) are mutex-guarded; Snapshot may be called from any goroutine.
type Session struct {
	backend   audio.Backend
	persister Persister
	cfg       *config.Config
	log       zerolog.Logger

	mu           sync.Mutex
	phase        phase
	device       *audio.Device
	stream       audio.Stream
	stopCh       chan struct{}
	doneCh       chan struct{}
	frames       [][]byte // appended only by the capture worker
	state        State
	segmentStart time.Time
	accumulated  time.Duration // recorded time excluding pauses

	lmu       sync.Mutex
	listeners []Listener
}

func NewSession(backend audio.Backend, persister Persister, cfg *config.Config, log zerolog.Logger) *Session {
	return &Session{
		backend:   backend,
		persister: persister,
		cfg:       cfg,
		log:       log,
	}
}

// UseDevice binds a specific input device for subsequent recordings.
func (s *Session) UseDevice(dev audio.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != phaseIdle {
		return &SessionError{Kind: ErrAlreadyRecording}
	}
	s.device = &dev
	return nil
}

// BoundDevice returns the currently bound input device, if any.
func (s *Session) BoundDevice() (audio.Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return audio.Device{}, false
	}
	return *s.device, true
}

// Start begins a new recording. An empty path generates a timestamped file
// under the configured output directory. On any failure the session stays
// idle with no stream or worker left behind.
func (s *Session) Start(path string) error {
	s.mu.Lock()
	if s.phase != phaseIdle {
		s.mu.Unlock()
		return &SessionError{Kind: ErrAlreadyRecording}
	}

	if s.device == nil {
		dev, err := s.backend.DefaultInput()
		if err != nil {
			s.mu.Unlock()
			return err
		}
		if err := s.backend.Verify(dev, s.cfg.Audio); err != nil {
			s.mu.Unlock()
			return err
		}
		s.device = &dev
	}
	devName := s.device.Name

	if path == "" {
		path = filepath.Join(s.cfg.OutputDir, "recording_"+time.Now().Format("20060102_150405")+".wav")
	}

	stream, err := s.backend.Open(*s.device, s.cfg.Audio)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		s.mu.Unlock()
		return err
	}

	now := time.Now()
	s.frames = nil
	s.accumulated = 0
	s.segmentStart = now
	s.state = State{
		IsRecording: true,
		StartTime:   now,
		OutputPath:  path,
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.stream = stream
	s.phase = phaseRecording
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	go s.captureLoop(stream, stopCh, doneCh)

	s.log.Info().Str("path", path).Str("device", devName).Msg("recording started")
	s.notifyStarted(path)
	return nil
}

// Pause stops the stream without tearing down the worker or the session.
func (s *Session) Pause() error {
	s.mu.Lock()
	switch s.phase {
	case phaseRecording:
	case phasePaused:
		s.mu.Unlock()
		return &SessionError{Kind: ErrAlreadyPaused}
	default:
		s.mu.Unlock()
		return &SessionError{Kind: ErrNotRecording}
	}
	s.accumulated += time.Since(s.segmentStart)
	s.state.Elapsed = s.accumulated
	s.state.IsPaused = true
	s.phase = phasePaused
	stream := s.stream
	s.mu.Unlock()

	if err := stream.Stop(); err != nil {
		s.log.Warn().Err(err).Msg("pausing stream")
	}
	s.log.Info().Msg("recording paused")
	return nil
}

// Resume restarts the stream after a pause.
func (s *Session) Resume() error {
	s.mu.Lock()
	if s.phase != phasePaused {
		s.mu.Unlock()
		return &SessionError{Kind: ErrNotPaused}
	}
	stream := s.stream
	dev := s.device
	s.mu.Unlock()

	if err := stream.Start(); err != nil {
		var de *audio.DeviceError
		if errors.As(err, &de) {
			return err
		}
		return &audio.DeviceError{Kind: audio.ErrAccessDenied, Device: dev, Err: err}
	}

	s.mu.Lock()
	if s.phase == phasePaused {
		s.segmentStart = time.Now()
		s.state.IsPaused = false
		s.phase = phaseRecording
	}
	s.mu.Unlock()

	s.log.Info().Msg("recording resumed")
	return nil
}

// Stop signals the worker, waits for it with a bounded timeout, closes the
// stream and persists the frame buffer when requested and non-empty. The
// session is back to idle when Stop returns, even if persistence fails.
func (s *Session) Stop(persist bool) error {
	s.mu.Lock()
	switch s.phase {
	case phaseRecording:
		s.accumulated += time.Since(s.segmentStart)
	case phasePaused:
	default:
		s.mu.Unlock()
		return &SessionError{Kind: ErrNotRecording}
	}
	s.phase = phaseStopping
	s.state.Elapsed = s.accumulated
	stream := s.stream
	stopCh := s.stopCh
	doneCh := s.doneCh
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
	case <-time.After(workerJoinTimeout):
		// Not fatal: closing the stream below fails the blocked read and
		// lets the worker exit on its own.
		s.log.Warn().Msg("capture worker did not exit in time")
	}

	if err := stream.Close(); err != nil {
		s.log.Warn().Err(err).Msg("closing stream")
	}

	s.mu.Lock()
	frames := s.frames
	s.frames = nil
	duration := s.accumulated
	path := s.state.OutputPath
	s.stream = nil
	s.stopCh = nil
	s.doneCh = nil
	s.mu.Unlock()

	var saveErr error
	written := ""
	if persist && len(frames) > 0 {
		if saveErr = s.persister.Save(frames, s.cfg.Audio, path); saveErr != nil {
			s.log.Error().Err(saveErr).Msg("persisting recording")
			s.notifyError(saveErr)
		} else {
			written = path
		}
	}

	// Idle becomes visible only once persistence has finished; until then
	// the session stays in the stopping phase.
	s.mu.Lock()
	s.state.IsRecording = false
	s.state.IsPaused = false
	s.state.Elapsed = duration
	s.phase = phaseIdle
	s.mu.Unlock()

	s.log.Info().
		Dur("duration", duration).
		Int("frames", len(frames)).
		Str("path", written).
		Msg("recording stopped")
	s.notifyStopped(written, duration)
	return saveErr
}

// Snapshot returns a copy of the current recording state. It never blocks
// on the capture path.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.Elapsed = s.elapsedLocked()
	return st
}

// Close releases the session and its backend. Any active recording is
// stopped and persisted first.
func (s *Session) Close() error {
	if err := s.Stop(true); err != nil && !IsSessionError(err, ErrNotRecording) {
		s.log.Warn().Err(err).Msg("stopping session during close")
	}
	return s.backend.Close()
}

func (s *Session) elapsedLocked() time.Duration {
	if s.phase == phaseRecording {
		return s.accumulated + time.Since(s.segmentStart)
	}
	return s.accumulated
}

func (s *Session) pausedNow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == phasePaused
}

// captureLoop is the worker: it pulls chunks from the stream into the frame
// buffer until signaled, the stream ends, or the duration ceiling is hit.
// Faults are recovered and reported through the error observer; they never
// cross into caller code.
func (s *Session) captureLoop(stream audio.Stream, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	autostop := false
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("capture worker panic: %v", r)
			s.log.Error().Err(err).Msg("capture worker crashed")
			s.notifyError(err)
			autostop = true
		}
		if autostop {
			go func() {
				if err := s.Stop(true); err != nil && !IsSessionError(err, ErrNotRecording) {
					s.log.Error().Err(err).Msg("automatic stop failed")
				}
			}()
		}
	}()

	maxDur := time.Duration(s.cfg.Audio.MaxDuration) * time.Second

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		s.mu.Lock()
		paused := s.phase == phasePaused
		elapsed := s.elapsedLocked()
		s.mu.Unlock()

		if elapsed >= maxDur {
			s.log.Info().Dur("elapsed", elapsed).Msg("duration ceiling reached")
			autostop = true
			return
		}
		if paused {
			time.Sleep(pausePollInterval)
			continue
		}

		chunk, err := stream.Read()
		if err != nil {
			select {
			case <-stopCh:
				return
			default:
			}
			if s.pausedNow() {
				// Pause stopped the stream mid-read; wait for resume.
				continue
			}
			s.log.Warn().Err(err).Msg("stream read failed, ending capture")
			s.notifyError(err)
			autostop = true
			return
		}
		if len(chunk) == 0 {
			// Stream ended on its own.
			autostop = true
			return
		}

		// A chunk read concurrently with the stop signal is dropped so the
		// frame buffer is settled once Stop observes worker exit.
		select {
		case <-stopCh:
			return
		default:
		}

		s.mu.Lock()
		s.frames = append(s.frames, chunk)
		s.state.FramesRecorded++
		s.state.Elapsed = s.elapsedLocked()
		s.mu.Unlock()

		s.notifyChunk(chunk)
	}
}
