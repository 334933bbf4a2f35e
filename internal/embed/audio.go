package embed

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

// decodeAudioFile reads the audio file at path and returns mono float32
// samples in [-1, 1] along with the source sample rate. Multi-channel
// audio is downmixed by averaging the channels.
func decodeAudioFile(path string) ([]float32, int, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".wav":
		return decodeWAV(path)
	case ".mp3":
		return decodeMP3(path)
	case ".flac":
		return decodeFLAC(path)
	default:
		return nil, 0, fmt.Errorf("unsupported audio format: %s", ext)
	}
}

func decodeWAV(path string) ([]float32, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, 0, errors.New("invalid WAV file format")
	}

	divisor, err := getAudioDivisor(int(decoder.BitDepth))
	if err != nil {
		return nil, 0, err
	}

	nch := int(decoder.NumChans)
	if nch < 1 {
		return nil, 0, fmt.Errorf("unsupported number of channels: %d", nch)
	}
	rate := int(decoder.SampleRate)

	var samples []float32
	buf := &audio.IntBuffer{
		Data:   make([]int, 48000*nch),
		Format: &audio.Format{SampleRate: rate, NumChannels: nch},
	}

	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, 0, err
		}
		if n == 0 {
			break
		}
		for i := 0; i+nch <= n; i += nch {
			var sum float32
			for ch := 0; ch < nch; ch++ {
				sum += float32(buf.Data[i+ch])
			}
			samples = append(samples, sum/float32(nch)/divisor)
		}
	}

	return samples, rate, nil
}

// decodeMP3 decodes an MP3 file. The decoder always emits interleaved
// 16-bit little-endian stereo frames regardless of the source layout.
func decodeMP3(path string) ([]float32, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	decoder, err := mp3.NewDecoder(file)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode MP3 stream: %w", err)
	}

	data, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read MP3 samples: %w", err)
	}

	samples := make([]float32, 0, len(data)/4)
	for i := 0; i+4 <= len(data); i += 4 {
		left := int16(binary.LittleEndian.Uint16(data[i:]))
		right := int16(binary.LittleEndian.Uint16(data[i+2:]))
		samples = append(samples, (float32(left)+float32(right))/2/32768.0)
	}

	return samples, decoder.SampleRate(), nil
}

func decodeFLAC(path string) ([]float32, int, error) {
	stream, err := flac.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open FLAC stream: %w", err)
	}
	defer stream.Close()

	divisor, err := getAudioDivisor(int(stream.Info.BitsPerSample))
	if err != nil {
		return nil, 0, err
	}

	nch := int(stream.Info.NChannels)
	if nch < 1 {
		return nil, 0, fmt.Errorf("unsupported number of channels: %d", nch)
	}

	var samples []float32
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to parse FLAC frame: %w", err)
		}

		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			var sum float32
			for ch := 0; ch < nch; ch++ {
				sum += float32(frame.Subframes[ch].Samples[i])
			}
			samples = append(samples, sum/float32(nch)/divisor)
		}
	}

	return samples, int(stream.Info.SampleRate), nil
}

// getAudioDivisor returns the value that scales integer PCM samples of the
// given bit depth down to [-1, 1].
func getAudioDivisor(bitDepth int) (float32, error) {
	switch bitDepth {
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, fmt.Errorf("unsupported audio bit depth: %d", bitDepth)
	}
}

// resampleAudio converts samples from one sample rate to another using
// cubic interpolation.
func resampleAudio(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(samples) < 4 {
		return samples
	}

	ratio := float64(toRate) / float64(fromRate)
	newLength := int(float64(len(samples)) * ratio)
	resampled := make([]float32, newLength)

	lastIndex := len(samples) - 3

	for i := 0; i < newLength; i++ {
		srcPos := float64(i) / ratio
		index := int(srcPos)

		// Clamp so the four-point window stays in bounds.
		if index < 1 {
			index = 1
		} else if index > lastIndex {
			index = lastIndex
		}

		frac := float32(srcPos) - float32(index)

		y0, y1, y2, y3 := samples[index-1], samples[index], samples[index+1], samples[index+2]
		mu2 := frac * frac
		a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
		a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
		a2 := -0.5*y0 + 0.5*y2
		a3 := y1

		resampled[i] = a0*frac*mu2 + a1*mu2 + a2*frac + a3
	}

	return resampled
}

// windowSamples fits samples to exactly size entries, truncating long
// input and zero-padding short input.
func windowSamples(samples []float32, size int) []float32 {
	if len(samples) >= size {
		return samples[:size]
	}
	padded := make([]float32, size)
	copy(padded, samples)
	return padded
}
