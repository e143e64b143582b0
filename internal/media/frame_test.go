package media

import "testing"

func TestPixelFormat_String(t *testing.T) {
	tests := []struct {
		format PixelFormat
		want   string
	}{
		{PixelFormatRGB24, "RGB24"},
		{PixelFormatRGBA32, "RGBA32"},
		{PixelFormatBGR24, "BGR24"},
		{PixelFormatBGRA32, "BGRA32"},
		{PixelFormatNV12, "NV12"},
		{PixelFormatYUV420P, "YUV420P"},
		{PixelFormatYUV444P, "YUV444P"},
		{PixelFormat(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.format.String(); got != tt.want {
				t.Errorf("PixelFormat.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPixelFormat_PlaneCount(t *testing.T) {
	tests := []struct {
		format PixelFormat
		want   int
	}{
		{PixelFormatYUV420P, 3},
		{PixelFormatYUV444P, 3},
		{PixelFormatNV12, 2},
		{PixelFormatRGB24, 1},
		{PixelFormatRGBA32, 1},
		{PixelFormatBGR24, 1},
		{PixelFormatBGRA32, 1},
		{PixelFormat(99), 0},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			if got := tt.format.PlaneCount(); got != tt.want {
				t.Errorf("PixelFormat.PlaneCount() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRawVideoFrame_Clone(t *testing.T) {
	original := &RawVideoFrame{
		Data: [][]byte{
			{1, 2, 3, 4},
			{5, 6},
			{7, 8},
		},
		Stride: []int{4, 2, 2},
		Width:  2,
		Height: 2,
		Format: PixelFormatYUV420P,
		PTS:    12345,
	}

	clone := original.Clone()

	if clone.Width != original.Width || clone.Height != original.Height {
		t.Error("Clone dimensions mismatch")
	}
	if clone.Format != original.Format {
		t.Error("Clone format mismatch")
	}
	if clone.PTS != original.PTS {
		t.Error("Clone PTS mismatch")
	}
	for i := range original.Data {
		for j := range original.Data[i] {
			if clone.Data[i][j] != original.Data[i][j] {
				t.Errorf("Clone data mismatch at plane %d, index %d", i, j)
			}
		}
	}

	clone.Data[0][0] = 99
	if original.Data[0][0] == 99 {
		t.Error("Clone is not independent from original")
	}
}

func TestEncodedVideoFrame_Clone(t *testing.T) {
	original := &EncodedVideoFrame{
		Data:     []byte{0x00, 0x01, 0x02, 0x03},
		PTS:      33333,
		DTS:      33333,
		Keyframe: true,
		Codec:    VideoCodecH264,
	}

	clone := original.Clone()

	if clone.Keyframe != original.Keyframe {
		t.Error("Clone keyframe mismatch")
	}
	if clone.PTS != original.PTS {
		t.Error("Clone PTS mismatch")
	}
	if len(clone.Data) != len(original.Data) {
		t.Error("Clone data length mismatch")
	}

	clone.Data[0] = 0xFF
	if original.Data[0] == 0xFF {
		t.Error("Clone is not independent from original")
	}
}

func TestEncodedVideoFrame_IsKeyframe(t *testing.T) {
	tests := []struct {
		keyframe bool
	}{{true}, {false}}

	for _, tt := range tests {
		f := &EncodedVideoFrame{Keyframe: tt.keyframe}
		if got := f.IsKeyframe(); got != tt.keyframe {
			t.Errorf("IsKeyframe() = %v, want %v", got, tt.keyframe)
		}
	}
}

func TestRawAudioFrame_Clone(t *testing.T) {
	original := &RawAudioFrame{
		Data:              []float32{0.1, -0.2, 0.3, -0.4},
		SampleRate:        48000,
		Channels:          2,
		SamplesPerChannel: 2,
		PTS:               12345,
	}

	clone := original.Clone()

	if clone.SampleRate != original.SampleRate {
		t.Error("Clone sample rate mismatch")
	}
	if clone.Channels != original.Channels {
		t.Error("Clone channels mismatch")
	}
	if len(clone.Data) != len(original.Data) {
		t.Error("Clone data length mismatch")
	}

	clone.Data[0] = 99
	if original.Data[0] == 99 {
		t.Error("Clone is not independent from original")
	}
}

func TestSyncedFrames_Desync(t *testing.T) {
	v := &EncodedVideoFrame{PTS: 1000}
	a := &EncodedAudioFrame{PTS: 1500}

	s := SyncedFrames{Video: v, Audio: a, VideoValid: true, AudioValid: true}
	got, ok := s.Desync()
	if !ok {
		t.Fatal("expected ok=true when both halves valid")
	}
	if got != 500 {
		t.Errorf("Desync() = %d, want 500", got)
	}

	s2 := SyncedFrames{Video: v, VideoValid: true}
	if _, ok := s2.Desync(); ok {
		t.Error("expected ok=false when audio half absent")
	}
}

func BenchmarkRawVideoFrame_Clone(b *testing.B) {
	ySize := 1280 * 720
	uvSize := 640 * 360

	frame := &RawVideoFrame{
		Data: [][]byte{
			make([]byte, ySize),
			make([]byte, uvSize),
			make([]byte, uvSize),
		},
		Stride: []int{1280, 640, 640},
		Width:  1280,
		Height: 720,
		Format: PixelFormatYUV420P,
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = frame.Clone()
	}
}
