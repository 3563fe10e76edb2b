// Package audio sniffs uploaded clips so they can be logged and routed to the
// right recognizer encoding without decoding them.
package audio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// Container formats recognised by Inspect.
const (
	FormatWAV     = "wav"
	FormatFLAC    = "flac"
	FormatOgg     = "ogg"
	FormatWebM    = "webm"
	FormatMP3     = "mp3"
	FormatUnknown = "unknown"
)

// Info describes an audio file on disk.
type Info struct {
	Format     string
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// Sniff guesses the container format from the first bytes of a file.
func Sniff(header []byte) string {
	switch {
	case len(header) >= 12 && bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE")):
		return FormatWAV
	case bytes.HasPrefix(header, []byte("fLaC")):
		return FormatFLAC
	case bytes.HasPrefix(header, []byte("OggS")):
		return FormatOgg
	case bytes.HasPrefix(header, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return FormatWebM
	case bytes.HasPrefix(header, []byte("ID3")),
		len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		return FormatMP3
	default:
		return FormatUnknown
	}
}

// Inspect reads the header of the file at path. WAV files get their sample
// rate, channel count and duration filled in; other formats only get Format.
// An unrecognised file is not an error: the recognizer gets the final say.
func Inspect(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	header := make([]byte, 12)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Info{}, fmt.Errorf("read audio header: %w", err)
	}

	info := Info{Format: Sniff(header[:n])}
	if info.Format != FormatWAV {
		return info, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return info, fmt.Errorf("rewind audio: %w", err)
	}

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return info, fmt.Errorf("invalid wav file")
	}
	info.SampleRate = int(d.SampleRate)
	info.Channels = int(d.NumChans)
	info.BitDepth = int(d.BitDepth)

	info.Duration = pcmDuration(d)
	return info, nil
}

// pcmDuration measures the data chunk. The RIFF size Duration relies on also
// counts the header chunks.
func pcmDuration(d *wav.Decoder) time.Duration {
	if err := d.FwdToPCM(); err != nil {
		return 0
	}
	bytesPerSecond := int64(d.SampleRate) * int64(d.NumChans) * int64(d.BitDepth/8)
	if bytesPerSecond <= 0 || d.PCMSize <= 0 {
		return 0
	}
	return time.Duration(int64(d.PCMSize) * int64(time.Second) / bytesPerSecond)
}
