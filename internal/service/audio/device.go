// Package audio provides audio capture sources and the recorder that cuts them
// into fixed-cadence chunks for the streaming connection.
package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// Errors returned by devices.
var (
	ErrNotWAV         = errors.New("not a valid WAV file")
	ErrUnsupportedWAV = errors.New("only PCM WAV is supported")
	ErrSourceClosed   = errors.New("audio source is closed")
)

// Format describes PCM audio.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// BytesPerSecond is the byte rate of the format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitsPerSample / 8
}

// Source is an acquired capture stream. Closing it releases the device.
type Source interface {
	io.ReadCloser
}

// Restarter is implemented by sources that must re-announce their container
// header when a recorder starts over on a new connection.
type Restarter interface {
	Restart()
}

// Device hands out capture sources.
type Device interface {
	Acquire(ctx context.Context) (Source, error)
}

// FileDevice replays a WAV or raw PCM file in a loop, standing in for a microphone.
type FileDevice struct {
	Path string
}

// Acquire opens the file. A missing or invalid file is an acquisition failure.
func (d FileDevice) Acquire(ctx context.Context) (Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(d.Path)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}

	if !strings.EqualFold(fileExt(d.Path), ".wav") {
		return &loopSource{f: f}, nil
	}

	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		f.Close()
		return nil, fmt.Errorf("read WAV header: %w", err)
	}
	if _, err := ParseWAVHeader(header); err != nil {
		f.Close()
		return nil, err
	}
	return &loopSource{f: f, header: header, dataStart: wavHeaderSize, pending: header}, nil
}

func fileExt(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i:]
	}
	return ""
}

// ParseWAVHeader validates a 44-byte RIFF/WAVE header and returns its format.
func ParseWAVHeader(header []byte) (Format, error) {
	if len(header) < wavHeaderSize {
		return Format{}, ErrNotWAV
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return Format{}, ErrNotWAV
	}

	audioFormat := binary.LittleEndian.Uint16(header[20:22])
	if audioFormat != 1 { // PCM
		return Format{}, fmt.Errorf("%w: format %d", ErrUnsupportedWAV, audioFormat)
	}
	return Format{
		Channels:      int(binary.LittleEndian.Uint16(header[22:24])),
		SampleRate:    int(binary.LittleEndian.Uint32(header[24:28])),
		BitsPerSample: int(binary.LittleEndian.Uint16(header[34:36])),
	}, nil
}

// loopSource reads a file forever, rewinding to the start of the audio data at EOF.
// After Restart the next read begins with the WAV header again.
type loopSource struct {
	mu        sync.Mutex
	f         *os.File
	header    []byte
	dataStart int64
	pending   []byte
	closed    bool
}

func (s *loopSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSourceClosed
	}
	if len(s.pending) > 0 {
		n := copy(p, s.pending)
		s.pending = s.pending[n:]
		return n, nil
	}

	n, err := s.f.Read(p)
	if err == io.EOF {
		if _, serr := s.f.Seek(s.dataStart, io.SeekStart); serr != nil {
			return n, serr
		}
		if n == 0 {
			n, err = s.f.Read(p)
			if err == io.EOF {
				// Header only, nothing to loop.
				return 0, io.EOF
			}
		} else {
			err = nil
		}
	}
	return n, err
}

func (s *loopSource) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.header) > 0 {
		s.pending = s.header
	}
}

func (s *loopSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.f.Close()
}

// SilenceDevice produces endless zeroed PCM, prefixed with a WAV header.
type SilenceDevice struct {
	Format Format
}

// Acquire always succeeds.
func (d SilenceDevice) Acquire(ctx context.Context) (Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	format := d.Format
	if format.SampleRate == 0 {
		format = Format{SampleRate: 16000, Channels: 1, BitsPerSample: 16}
	}
	header := WAVHeader(format)
	return &silenceSource{header: header, pending: header}, nil
}

type silenceSource struct {
	mu      sync.Mutex
	header  []byte
	pending []byte
	closed  bool
}

func (s *silenceSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSourceClosed
	}
	if len(s.pending) > 0 {
		n := copy(p, s.pending)
		s.pending = s.pending[n:]
		return n, nil
	}
	clear(p)
	return len(p), nil
}

func (s *silenceSource) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = s.header
}

func (s *silenceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// WAVHeader builds a streaming PCM header. Sizes are set to the maximum since
// the stream has no known length.
func WAVHeader(f Format) []byte {
	var buf bytes.Buffer
	blockAlign := f.Channels * f.BitsPerSample / 8
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(0xFFFFFFFF))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(f.Channels))
	binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(f.BytesPerSecond()))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(f.BitsPerSample))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(0xFFFFFFFF))
	return buf.Bytes()
}
