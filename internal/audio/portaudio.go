package audio

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/pcrane/voxcap/internal/config"
)

type portAudioBackend struct {
	log zerolog.Logger
}

// New creates a PortAudio-backed Backend. Callers must Close it to release
// the subsystem.
func New(log zerolog.Logger) (Backend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, &DeviceError{Kind: ErrEnumeration, Err: err}
	}
	return &portAudioBackend{log: log}, nil
}

func (b *portAudioBackend) Devices() ([]Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, &DeviceError{Kind: ErrEnumeration, Err: err}
	}

	def, _ := portaudio.DefaultInputDevice()

	result := make([]Device, 0, len(infos))
	for i, d := range infos {
		if d.MaxInputChannels <= 0 {
			continue
		}
		result = append(result, Device{
			Index:            i,
			Name:             d.Name,
			MaxInputChannels: d.MaxInputChannels,
			Default:          d == def,
		})
	}
	return result, nil
}

func (b *portAudioBackend) DefaultInput() (Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return Device{}, &DeviceError{Kind: ErrEnumeration, Err: err}
	}

	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil && def.MaxInputChannels > 0 {
		for i, d := range infos {
			if d == def {
				return Device{Index: i, Name: d.Name, MaxInputChannels: d.MaxInputChannels, Default: true}, nil
			}
		}
	}

	// No reported default; fall back to the first device that accepts input.
	for i, d := range infos {
		if d.MaxInputChannels > 0 {
			b.log.Debug().Str("device", d.Name).Msg("no default input device, using first input-capable device")
			return Device{Index: i, Name: d.Name, MaxInputChannels: d.MaxInputChannels}, nil
		}
	}

	return Device{}, &DeviceError{Kind: ErrNoInputDevice}
}

func (b *portAudioBackend) Verify(dev Device, cfg config.AudioConfig) error {
	info, err := b.deviceInfo(dev)
	if err != nil {
		return err
	}
	if info.MaxInputChannels < cfg.Channels {
		return &DeviceError{Kind: ErrUnsupportedConfig, Device: &dev}
	}

	buf := make([]int16, cfg.ChunkSize*cfg.Channels)
	probe, err := portaudio.OpenStream(streamParams(info, cfg), buf)
	if err != nil {
		return &DeviceError{Kind: classifyOpenError(err), Device: &dev, Err: err}
	}
	if err := probe.Close(); err != nil {
		return &DeviceError{Kind: ErrAccessDenied, Device: &dev, Err: err}
	}
	b.log.Debug().Str("device", dev.Name).Int("sample_rate", cfg.SampleRate).Msg("device access verified")
	return nil
}

func (b *portAudioBackend) Open(dev Device, cfg config.AudioConfig) (Stream, error) {
	info, err := b.deviceInfo(dev)
	if err != nil {
		return nil, err
	}

	buf := make([]int16, cfg.ChunkSize*cfg.Channels)
	stream, err := portaudio.OpenStream(streamParams(info, cfg), buf)
	if err != nil {
		return nil, &DeviceError{Kind: classifyOpenError(err), Device: &dev, Err: err}
	}

	return &paStream{stream: stream, buf: buf, log: b.log}, nil
}

func (b *portAudioBackend) Close() error {
	return portaudio.Terminate()
}

// deviceInfo maps a Device back to its live DeviceInfo, by index when the
// enumeration is unchanged and by name as a fallback.
func (b *portAudioBackend) deviceInfo(dev Device) (*portaudio.DeviceInfo, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, &DeviceError{Kind: ErrEnumeration, Err: err}
	}
	if dev.Index >= 0 && dev.Index < len(infos) && infos[dev.Index].Name == dev.Name {
		return infos[dev.Index], nil
	}
	for _, d := range infos {
		if d.Name == dev.Name {
			return d, nil
		}
	}
	return nil, &DeviceError{Kind: ErrNoInputDevice, Device: &dev}
}

func streamParams(info *portaudio.DeviceInfo, cfg config.AudioConfig) portaudio.StreamParameters {
	return portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: cfg.Channels,
			Latency:  info.DefaultLowInputLatency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: cfg.ChunkSize,
	}
}

func classifyOpenError(err error) DeviceErrorKind {
	switch {
	case errors.Is(err, portaudio.InvalidSampleRate),
		errors.Is(err, portaudio.InvalidChannelCount),
		errors.Is(err, portaudio.SampleFormatNotSupported):
		return ErrUnsupportedConfig
	default:
		return ErrAccessDenied
	}
}

// paStream wraps a blocking PortAudio input stream.
type paStream struct {
	stream *portaudio.Stream
	buf    []int16
	log    zerolog.Logger

	mu      sync.Mutex
	started bool
	closed  bool
}

func (s *paStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("stream closed")
	}
	if s.started {
		return nil
	}
	if err := s.stream.Start(); err != nil {
		return err
	}
	s.started = true
	return nil
}

func (s *paStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.started {
		return nil
	}
	s.started = false
	return s.stream.Stop()
}

func (s *paStream) Read() ([]byte, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.New("stream closed")
	}
	stream := s.stream
	s.mu.Unlock()

	err := stream.Read()
	if errors.Is(err, portaudio.InputOverflowed) {
		// The device produced data faster than we drained it. The buffer
		// still holds valid (possibly truncated) samples; keep going.
		s.log.Debug().Msg("input overflow tolerated")
		err = nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(s.buf)*2)
	for i, v := range s.buf {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out, nil
}

func (s *paStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.started = false
	return s.stream.Close()
}
