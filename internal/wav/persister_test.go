package wav

import (
	"encoding/binary"
	"math"
	"testing"

	gowav "github.com/go-audio/wav"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/pcrane/voxcap/internal/config"
)

func testAudioConfig() config.AudioConfig {
	return config.AudioConfig{
		SampleRate:  16000,
		Channels:    1,
		ChunkSize:   1024,
		MaxDuration: 300,
	}
}

// sineFrames generates n chunks of a fixed sine pattern as S16LE bytes.
func sineFrames(n, chunkFrames, channels int) [][]byte {
	frames := make([][]byte, n)
	for f := range frames {
		chunk := make([]byte, chunkFrames*channels*2)
		for i := 0; i < chunkFrames*channels; i++ {
			v := int16(10000 * math.Sin(2*math.Pi*float64(f*chunkFrames*channels+i)/64))
			binary.LittleEndian.PutUint16(chunk[i*2:], uint16(v))
		}
		frames[f] = chunk
	}
	return frames
}

func TestSaveRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := NewPersister(fs, zerolog.Nop())
	cfg := testAudioConfig()

	frames := sineFrames(4, cfg.ChunkSize, cfg.Channels)
	path := "out/session.wav"

	if err := p.Save(frames, cfg, path); err != nil {
		t.Fatalf("Save() returned error: %v", err)
	}

	f, err := fs.Open(path)
	if err != nil {
		t.Fatalf("opening saved file: %v", err)
	}
	defer f.Close()

	dec := gowav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decoding saved file: %v", err)
	}

	if int(dec.NumChans) != cfg.Channels {
		t.Errorf("expected %d channel(s) in header, got %d", cfg.Channels, dec.NumChans)
	}
	if int(dec.SampleRate) != cfg.SampleRate {
		t.Errorf("expected sample rate %d in header, got %d", cfg.SampleRate, dec.SampleRate)
	}
	if dec.BitDepth != 16 {
		t.Errorf("expected 16-bit samples, got %d", dec.BitDepth)
	}

	wantSamples := 4 * cfg.ChunkSize * cfg.Channels
	if len(buf.Data) != wantSamples {
		t.Fatalf("expected %d samples, got %d", wantSamples, len(buf.Data))
	}

	// Lossless container: every sample byte must round-trip exactly.
	i := 0
	for _, frame := range frames {
		for off := 0; off < len(frame); off += 2 {
			want := int(int16(binary.LittleEndian.Uint16(frame[off : off+2])))
			if buf.Data[i] != want {
				t.Fatalf("sample %d mismatch: expected %d, got %d", i, want, buf.Data[i])
			}
			i++
		}
	}
}

func TestSavePayloadSize(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := NewPersister(fs, zerolog.Nop())
	cfg := testAudioConfig()
	cfg.Channels = 2

	const chunks = 3
	frames := sineFrames(chunks, cfg.ChunkSize, cfg.Channels)
	path := "stereo.wav"

	if err := p.Save(frames, cfg, path); err != nil {
		t.Fatalf("Save() returned error: %v", err)
	}

	info, err := fs.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	// 44-byte canonical PCM header plus the raw payload.
	wantPayload := int64(chunks * cfg.ChunkSize * cfg.Channels * 2)
	if got := info.Size(); got != wantPayload+44 {
		t.Errorf("expected file size %d, got %d", wantPayload+44, got)
	}
}

func TestSaveNoData(t *testing.T) {
	p := NewPersister(afero.NewMemMapFs(), zerolog.Nop())

	err := p.Save(nil, testAudioConfig(), "empty.wav")
	if !IsPersistenceError(err, ErrNoData) {
		t.Fatalf("expected no_data error, got %v", err)
	}
}

func TestSaveNoPath(t *testing.T) {
	p := NewPersister(afero.NewMemMapFs(), zerolog.Nop())
	frames := sineFrames(1, 512, 1)

	err := p.Save(frames, testAudioConfig(), "")
	if !IsPersistenceError(err, ErrNoPath) {
		t.Fatalf("expected no_path error, got %v", err)
	}
}

func TestSaveCreatesParentDirectories(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := NewPersister(fs, zerolog.Nop())
	cfg := testAudioConfig()

	path := "deeply/nested/dir/take1.wav"
	if err := p.Save(sineFrames(1, cfg.ChunkSize, cfg.Channels), cfg, path); err != nil {
		t.Fatalf("Save() returned error: %v", err)
	}

	ok, err := afero.DirExists(fs, "deeply/nested/dir")
	if err != nil || !ok {
		t.Errorf("expected parent directories to be created, exists=%v err=%v", ok, err)
	}
}

func TestSaveWriteFailure(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	p := NewPersister(fs, zerolog.Nop())
	cfg := testAudioConfig()

	err := p.Save(sineFrames(1, cfg.ChunkSize, cfg.Channels), cfg, "blocked/out.wav")
	if !IsPersistenceError(err, ErrWriteFailed) {
		t.Fatalf("expected write_failed error, got %v", err)
	}
}

func TestSaveDropsTrailingOddByte(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := NewPersister(fs, zerolog.Nop())
	cfg := testAudioConfig()

	frame := []byte{0x01, 0x02, 0x03} // one full sample plus a dangling byte
	if err := p.Save([][]byte{frame}, cfg, "odd.wav"); err != nil {
		t.Fatalf("Save() returned error: %v", err)
	}

	f, _ := fs.Open("odd.wav")
	defer f.Close()
	buf, err := gowav.NewDecoder(f).FullPCMBuffer()
	if err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(buf.Data) != 1 {
		t.Errorf("expected 1 sample, got %d", len(buf.Data))
	}
}
