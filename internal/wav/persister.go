// Package wav serializes captured PCM frames into a RIFF/WAVE file.
package wav

import (
	"encoding/binary"
	"errors"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/pcrane/voxcap/internal/config"
)

// bitDepth is fixed by the capture format (signed 16-bit samples).
const bitDepth = 16

// PersistenceErrorKind tags the closed set of persistence failures.
type PersistenceErrorKind string

const (
	ErrNoData             PersistenceErrorKind = "no_data"
	ErrNoPath             PersistenceErrorKind = "no_path"
	ErrWriteFailed        PersistenceErrorKind = "write_failed"
	ErrVerificationFailed PersistenceErrorKind = "write_verification_failed"
)

type PersistenceError struct {
	Kind PersistenceErrorKind
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	msg := "persistence error: " + string(e.Kind)
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistenceError reports whether err is a PersistenceError of the given kind.
func IsPersistenceError(err error, kind PersistenceErrorKind) bool {
	var pe *PersistenceError
	return errors.As(err, &pe) && pe.Kind == kind
}

// Persister writes captured frames to a filesystem. The filesystem is
// abstracted so tests can run against an in-memory one.
type Persister struct {
	fs  afero.Fs
	log zerolog.Logger
}

func NewPersister(fs afero.Fs, log zerolog.Logger) *Persister {
	return &Persister{fs: fs, log: log}
}

// Save encodes frames (interleaved little-endian S16 chunks, in capture
// order) as an uncompressed PCM WAV file at path, creating parent
// directories as needed. After writing it verifies the file exists and is
// non-empty.
func (p *Persister) Save(frames [][]byte, cfg config.AudioConfig, path string) error {
	if len(frames) == 0 {
		return &PersistenceError{Kind: ErrNoData, Path: path}
	}
	if path == "" {
		return &PersistenceError{Kind: ErrNoPath}
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := p.fs.MkdirAll(dir, 0o755); err != nil {
			return &PersistenceError{Kind: ErrWriteFailed, Path: path, Err: err}
		}
	}

	f, err := p.fs.Create(path)
	if err != nil {
		return &PersistenceError{Kind: ErrWriteFailed, Path: path, Err: err}
	}

	enc := gowav.NewEncoder(f, cfg.SampleRate, bitDepth, cfg.Channels, 1)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: cfg.Channels,
			SampleRate:  cfg.SampleRate,
		},
		SourceBitDepth: bitDepth,
	}

	var samples int
	for _, frame := range frames {
		buf.Data = pcm16ToInts(frame)
		samples += len(buf.Data)
		if err := enc.Write(buf); err != nil {
			f.Close()
			return &PersistenceError{Kind: ErrWriteFailed, Path: path, Err: err}
		}
	}

	// Close rewrites the header with the final chunk sizes.
	if err := enc.Close(); err != nil {
		f.Close()
		return &PersistenceError{Kind: ErrWriteFailed, Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &PersistenceError{Kind: ErrWriteFailed, Path: path, Err: err}
	}

	info, err := p.fs.Stat(path)
	if err != nil || info.Size() == 0 {
		return &PersistenceError{Kind: ErrVerificationFailed, Path: path, Err: err}
	}

	p.log.Info().
		Str("path", path).
		Int("frames", len(frames)).
		Int("samples", samples).
		Int64("bytes", info.Size()).
		Msg("recording saved")
	return nil
}

// pcm16ToInts converts little-endian signed 16-bit bytes to the int samples
// the encoder expects. A trailing odd byte is dropped.
func pcm16ToInts(data []byte) []int {
	out := make([]int, len(data)/2)
	for i := range out {
		out[i] = int(int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2])))
	}
	return out
}
