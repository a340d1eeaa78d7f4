// Package audio inspects uploaded WAV files and derives local signal
// quality metrics from their PCM payload.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/superfeelapi/goEagi"
)

// ErrUnsupportedFormat reports a container or encoding the local inspector
// cannot read. Callers fall back to schema defaults.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Info describes the PCM payload of a WAV container.
type Info struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	DataBytes     int
	Duration      time.Duration
}

// Metrics summarizes signal quality. Amplitudes are normalized to [0,1]
// against full scale; ratios are fractions of the whole recording.
type Metrics struct {
	DurationSeconds float64
	SampleRate      int
	Channels        int
	MeanAmplitude   float64
	PeakAmplitude   float64
	ClippingRatio   float64
	SpeechRatio     float64
	QualityLabel    string
}

// Inspect reads the RIFF/WAVE header of the file at path.
func Inspect(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("opening audio file: %w", err)
	}
	defer f.Close()

	return inspect(f)
}

// Analyze inspects path and computes quality metrics over its PCM payload.
func Analyze(path string) (Metrics, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metrics{}, fmt.Errorf("opening audio file: %w", err)
	}
	defer f.Close()

	info, err := inspect(f)
	if err != nil {
		return Metrics{}, err
	}

	m := Metrics{
		DurationSeconds: info.Duration.Seconds(),
		SampleRate:      info.SampleRate,
		Channels:        info.Channels,
		QualityLabel:    "unknown",
	}

	data := make([]byte, info.DataBytes)
	n, err := io.ReadFull(f, data)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return Metrics{}, fmt.Errorf("reading PCM payload: %w", err)
	}
	data = data[:n&^1]

	if len(data) < 2 {
		return m, nil
	}

	var sum float64
	var peak float64
	var clipped int
	samples := len(data) / 2

	for i := 0; i+1 < len(data); i += 2 {
		s := int16(binary.LittleEndian.Uint16(data[i : i+2]))
		v := float64(s)
		if v < 0 {
			v = -v
		}
		sum += v
		if v > peak {
			peak = v
		}
		if v >= 32760 {
			clipped++
		}
	}

	m.MeanAmplitude = sum / float64(samples) / 32768
	m.PeakAmplitude = peak / 32768
	m.ClippingRatio = float64(clipped) / float64(samples)
	m.SpeechRatio = speechRatio(data, info)
	m.QualityLabel = label(m)

	return m, nil
}

// speechRatio gates one-second windows on their amplitude, the same windowed
// measurement the live pipeline uses for voice activity. The gate is relative
// to the loudest window, so it holds regardless of recording level.
func speechRatio(data []byte, info Info) float64 {
	windowBytes := info.SampleRate * info.Channels * 2
	if windowBytes <= 0 {
		return 0
	}

	var amps []float64
	for off := 0; off < len(data); off += windowBytes {
		end := off + windowBytes
		if end > len(data) {
			end = len(data)
		}
		win := data[off : end&^1]
		if len(win) < 2 {
			break
		}

		amp, err := goEagi.ComputeAmplitude(win)
		if err != nil {
			return 0
		}
		amps = append(amps, amp)
	}

	if len(amps) == 0 {
		return 0
	}

	var loudest float64
	for _, a := range amps {
		if a > loudest {
			loudest = a
		}
	}
	if loudest == 0 {
		return 0
	}

	gate := 0.15 * loudest
	speech := 0
	for _, a := range amps {
		if a > gate {
			speech++
		}
	}

	return float64(speech) / float64(len(amps))
}

func label(m Metrics) string {
	switch {
	case m.PeakAmplitude == 0:
		return "unknown"
	case m.ClippingRatio < 0.01 && m.SpeechRatio >= 0.3 && m.SampleRate >= 16000:
		return "good"
	case m.ClippingRatio < 0.05 && m.SpeechRatio >= 0.1:
		return "fair"
	default:
		return "poor"
	}
}

// inspect walks the RIFF chunks up to the start of the data payload, leaving
// the reader positioned at its first byte.
func inspect(r io.Reader) (Info, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return Info{}, fmt.Errorf("%w: short header", ErrUnsupportedFormat)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Info{}, fmt.Errorf("%w: not a RIFF/WAVE container", ErrUnsupportedFormat)
	}

	var info Info
	sawFmt := false

	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return Info{}, fmt.Errorf("%w: no data chunk", ErrUnsupportedFormat)
		}

		id := string(chunk[0:4])
		size := int(binary.LittleEndian.Uint32(chunk[4:8]))

		switch id {
		case "fmt ":
			if size < 16 {
				return Info{}, fmt.Errorf("%w: truncated fmt chunk", ErrUnsupportedFormat)
			}
			body := make([]byte, size+size%2)
			if _, err := io.ReadFull(r, body); err != nil {
				return Info{}, fmt.Errorf("%w: truncated fmt chunk", ErrUnsupportedFormat)
			}

			format := binary.LittleEndian.Uint16(body[0:2])
			if format != 1 {
				return Info{}, fmt.Errorf("%w: non-PCM encoding %d", ErrUnsupportedFormat, format)
			}

			info.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
			sawFmt = true

		case "data":
			if !sawFmt {
				return Info{}, fmt.Errorf("%w: data chunk before fmt", ErrUnsupportedFormat)
			}
			if info.BitsPerSample != 16 {
				return Info{}, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedFormat, info.BitsPerSample)
			}

			info.DataBytes = size
			byteRate := info.SampleRate * info.Channels * 2
			if byteRate > 0 {
				info.Duration = time.Duration(float64(size) / float64(byteRate) * float64(time.Second))
			}

			return info, nil

		default:
			if _, err := io.CopyN(io.Discard, r, int64(size+size%2)); err != nil {
				return Info{}, fmt.Errorf("%w: truncated %s chunk", ErrUnsupportedFormat, id)
			}
		}
	}
}
