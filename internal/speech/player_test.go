package speech

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// encodeWAV writes samples as a 16-bit WAV file and returns its bytes.
func encodeWAV(t *testing.T, rate, channels int, samples []int) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestDecodePCM(t *testing.T) {
	samples := []int{0, 1000, -1000, 32767, -32768}
	data := encodeWAV(t, SampleRate, ChannelCount, samples)

	pcm, err := decodePCM(data)
	if err != nil {
		t.Fatalf("decodePCM: %v", err)
	}
	if len(pcm) != len(samples)*2 {
		t.Fatalf("pcm length = %d, want %d", len(pcm), len(samples)*2)
	}
	for i, want := range samples {
		got := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		if int(got) != want {
			t.Errorf("sample %d = %d, want %d", i, got, want)
		}
	}
}

func TestDecodePCMRejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not wav", []byte("definitely not audio")},
		{"wrong rate", encodeWAV(t, 16000, 1, []int{1, 2, 3})},
		{"stereo", encodeWAV(t, SampleRate, 2, []int{1, 2, 3, 4})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodePCM(tt.data); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
