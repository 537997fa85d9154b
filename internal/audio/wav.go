package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const wavHeaderBytes = 44

// EncodeWAV wraps little-endian s16 PCM in a canonical RIFF/WAVE header.
func EncodeWAV(pcm []byte, sampleRate int, channels int) ([]byte, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, errors.New("wav: sample rate and channels must be positive")
	}
	if len(pcm)%(BytesPerSample*channels) != 0 {
		pcm = pcm[:len(pcm)-len(pcm)%(BytesPerSample*channels)]
	}

	blockAlign := channels * BytesPerSample
	var buf bytes.Buffer
	buf.Grow(wavHeaderBytes + len(pcm))

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(BytesPerSample*8))

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes(), nil
}
