package capture

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/streamlinux/streamlinux/internal/media"
)

// PatternType selects the synthetic video pattern.
type PatternType int

const (
	PatternColorBars PatternType = iota
	PatternGradient
	PatternMovingBox
)

// TestPatternConfig configures the synthetic ScreenCaptureSource.
type TestPatternConfig struct {
	Width, Height int
	FPS           int
	Pattern       PatternType
}

// DefaultTestPatternConfig returns the source's default configuration.
func DefaultTestPatternConfig() TestPatternConfig {
	return TestPatternConfig{Width: 1280, Height: 720, FPS: 30, Pattern: PatternColorBars}
}

// TestPatternSource is the one screen-capture backend this repository
// ships: a deterministic synthetic generator used for pipeline tests and
// by streamlinux-host. Grounded on thesyncim-media's
// source_test_pattern.go, adapted to RawVideoFrame/PTS and the
// format-change sentinel contract of §4.1.
type TestPatternSource struct {
	mu     sync.RWMutex
	cfg    TestPatternConfig
	yPlane []byte
	uPlane []byte
	vPlane []byte

	running  atomic.Bool
	cancel   context.CancelFunc
	frameCh  chan *media.RawVideoFrame
	doneCh   chan struct{}
	callback VideoFrameCallback

	startLocal time.Time
	frameCount uint64
	first      bool
}

// NewTestPatternSource creates a synthetic ScreenCaptureSource.
func NewTestPatternSource(cfg TestPatternConfig) *TestPatternSource {
	if cfg.Width <= 0 {
		cfg.Width = 1280
	}
	if cfg.Height <= 0 {
		cfg.Height = 720
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	s := &TestPatternSource{
		cfg:     cfg,
		frameCh: make(chan *media.RawVideoFrame, 2),
		first:   true,
	}
	s.allocPlanes()
	return s
}

func (s *TestPatternSource) allocPlanes() {
	ySize := s.cfg.Width * s.cfg.Height
	uvSize := (s.cfg.Width / 2) * (s.cfg.Height / 2)
	s.yPlane = make([]byte, ySize)
	s.uPlane = make([]byte, uvSize)
	s.vPlane = make([]byte, uvSize)
}

func (s *TestPatternSource) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("capture: source already running")
	}
	var runCtx context.Context
	runCtx, s.cancel = context.WithCancel(ctx)
	s.doneCh = make(chan struct{})
	s.running.Store(true)
	s.startLocal = time.Now()
	s.frameCount = 0
	s.first = true
	go s.run(runCtx)
	return nil
}

func (s *TestPatternSource) Stop() error {
	if !s.running.Load() {
		return nil
	}
	s.running.Store(false)
	if s.cancel != nil {
		s.cancel()
	}
	if s.doneCh != nil {
		<-s.doneCh
	}
	return nil
}

func (s *TestPatternSource) Close() error {
	return s.Stop()
}

func (s *TestPatternSource) IsRunning() bool { return s.running.Load() }

func (s *TestPatternSource) ReadFrame(ctx context.Context) (*media.RawVideoFrame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case frame, ok := <-s.frameCh:
		if !ok {
			return nil, ErrCaptureReadFailed
		}
		return frame, nil
	}
}

func (s *TestPatternSource) SetCallback(cb VideoFrameCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = cb
}

func (s *TestPatternSource) GetMonitors(ctx context.Context) ([]MonitorInfo, error) {
	return []MonitorInfo{{ID: 0, Name: "synthetic-0", Width: s.cfg.Width, Height: s.cfg.Height, Primary: true}}, nil
}

func (s *TestPatternSource) Config() SourceConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SourceConfig{Width: s.cfg.Width, Height: s.cfg.Height, FPS: s.cfg.FPS, Format: media.PixelFormatYUV420P}
}

func (s *TestPatternSource) run(ctx context.Context) {
	defer close(s.doneCh)

	frameDuration := time.Second / time.Duration(s.cfg.FPS)
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.frameCount++
			s.generate(s.frameCount)

			pts := media.PTS(time.Since(s.startLocal).Microseconds())
			frame := &media.RawVideoFrame{
				Data:         [][]byte{s.yPlane, s.uPlane, s.vPlane},
				Stride:       []int{s.cfg.Width, s.cfg.Width / 2, s.cfg.Width / 2},
				Width:        s.cfg.Width,
				Height:       s.cfg.Height,
				Format:       media.PixelFormatYUV420P,
				PTS:          pts,
				KeyframeHint: s.first,
			}
			s.first = false

			s.mu.RLock()
			cb := s.callback
			s.mu.RUnlock()

			if cb != nil {
				cb(frame)
				continue
			}
			select {
			case <-ctx.Done():
				return
			case s.frameCh <- frame:
			default:
			}
		}
	}
}

func (s *TestPatternSource) generate(frameNum uint64) {
	switch s.cfg.Pattern {
	case PatternGradient:
		s.generateGradient()
	case PatternMovingBox:
		s.generateMovingBox(frameNum)
	default:
		s.generateColorBars()
	}
}

var colorBarsRGB = [][3]uint8{
	{192, 192, 192}, {192, 192, 0}, {0, 192, 192}, {0, 192, 0},
	{192, 0, 192}, {192, 0, 0}, {0, 0, 192}, {16, 16, 16},
}

func (s *TestPatternSource) generateColorBars() {
	w, h := s.cfg.Width, s.cfg.Height
	barWidth := w / 8
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			barIdx := x / barWidth
			if barIdx >= 8 {
				barIdx = 7
			}
			rgb := colorBarsRGB[barIdx]
			yVal, u, v := rgbToYUV(rgb[0], rgb[1], rgb[2])
			s.yPlane[y*w+x] = yVal
			if x%2 == 0 && y%2 == 0 {
				uvIdx := (y/2)*(w/2) + (x / 2)
				s.uPlane[uvIdx] = u
				s.vPlane[uvIdx] = v
			}
		}
	}
}

func (s *TestPatternSource) generateGradient() {
	w, h := s.cfg.Width, s.cfg.Height
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s.yPlane[y*w+x] = byte((x * 255) / w)
			if x%2 == 0 && y%2 == 0 {
				uvIdx := (y/2)*(w/2) + (x / 2)
				s.uPlane[uvIdx] = 128
				s.vPlane[uvIdx] = 128
			}
		}
	}
}

func (s *TestPatternSource) generateMovingBox(frameNum uint64) {
	w, h := s.cfg.Width, s.cfg.Height
	for i := range s.yPlane {
		s.yPlane[i] = 16
	}
	for i := range s.uPlane {
		s.uPlane[i] = 128
		s.vPlane[i] = 128
	}

	boxSize := 100
	centerX, centerY := w/2, h/2
	radius := float64(minInt(w, h)) / 4
	angle := float64(frameNum) * 0.05
	boxX := centerX + int(radius*math.Cos(angle)) - boxSize/2
	boxY := centerY + int(radius*math.Sin(angle)) - boxSize/2

	for y := boxY; y < boxY+boxSize && y < h; y++ {
		if y < 0 {
			continue
		}
		for x := boxX; x < boxX+boxSize && x < w; x++ {
			if x < 0 {
				continue
			}
			s.yPlane[y*w+x] = 235
		}
	}
}

func rgbToYUV(r, g, b uint8) (y, u, v uint8) {
	yf := 16.0 + 65.481*float64(r)/255.0 + 128.553*float64(g)/255.0 + 24.966*float64(b)/255.0
	uf := 128.0 - 37.797*float64(r)/255.0 - 74.203*float64(g)/255.0 + 112.0*float64(b)/255.0
	vf := 128.0 + 112.0*float64(r)/255.0 - 93.786*float64(g)/255.0 - 18.214*float64(b)/255.0
	return byte(clampf(yf, 16, 235)), byte(clampf(uf, 16, 240)), byte(clampf(vf, 16, 240))
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// ToneConfig configures the synthetic AudioCaptureSource.
type ToneConfig struct {
	SampleRate int
	Channels   int
	FrameSize  int // samples per channel per frame
	FrequencyHz float64
	Amplitude   float64
}

// DefaultToneConfig returns the source's default configuration (20ms
// frames at 48kHz stereo, a 440Hz tone).
func DefaultToneConfig() ToneConfig {
	return ToneConfig{SampleRate: 48000, Channels: 2, FrameSize: 960, FrequencyHz: 440, Amplitude: 0.5}
}

// ToneSource is the one system-audio backend this repository ships: a
// deterministic sine generator. Grounded on thesyncim-media's
// source_audio_test.go, adapted to RawAudioFrame's float32 format.
type ToneSource struct {
	mu       sync.RWMutex
	cfg      ToneConfig
	phase    float64
	running  atomic.Bool
	cancel   context.CancelFunc
	samplesCh chan *media.RawAudioFrame
	callback AudioSamplesCallback
	startLocal time.Time
}

// NewToneSource creates a synthetic AudioCaptureSource.
func NewToneSource(cfg ToneConfig) *ToneSource {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 2
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = 960
	}
	if cfg.FrequencyHz <= 0 {
		cfg.FrequencyHz = 440
	}
	if cfg.Amplitude <= 0 {
		cfg.Amplitude = 0.5
	}
	return &ToneSource{cfg: cfg, samplesCh: make(chan *media.RawAudioFrame, 2)}
}

func (s *ToneSource) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("capture: source already running")
	}
	var runCtx context.Context
	runCtx, s.cancel = context.WithCancel(ctx)
	s.running.Store(true)
	s.phase = 0
	s.startLocal = time.Now()
	go s.run(runCtx)
	return nil
}

func (s *ToneSource) Stop() error {
	if !s.running.Load() {
		return nil
	}
	s.running.Store(false)
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

func (s *ToneSource) Close() error { return s.Stop() }

func (s *ToneSource) IsRunning() bool { return s.running.Load() }

func (s *ToneSource) ReadSamples(ctx context.Context) (*media.RawAudioFrame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case samples, ok := <-s.samplesCh:
		if !ok {
			return nil, ErrCaptureReadFailed
		}
		return samples, nil
	}
}

func (s *ToneSource) SetCallback(cb AudioSamplesCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = cb
}

func (s *ToneSource) SampleRate() int { return s.cfg.SampleRate }
func (s *ToneSource) Channels() int   { return s.cfg.Channels }

func (s *ToneSource) run(ctx context.Context) {
	frameDuration := time.Duration(float64(s.cfg.FrameSize) / float64(s.cfg.SampleRate) * float64(time.Second))
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	phaseIncrement := 2.0 * math.Pi * s.cfg.FrequencyHz / float64(s.cfg.SampleRate)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			data := make([]float32, s.cfg.FrameSize*s.cfg.Channels)
			idx := 0
			for i := 0; i < s.cfg.FrameSize; i++ {
				v := float32(s.cfg.Amplitude * math.Sin(s.phase))
				s.phase += phaseIncrement
				if s.phase > 2*math.Pi {
					s.phase -= 2 * math.Pi
				}
				for c := 0; c < s.cfg.Channels; c++ {
					data[idx] = v
					idx++
				}
			}

			frame := &media.RawAudioFrame{
				Data:              data,
				SampleRate:        s.cfg.SampleRate,
				Channels:          s.cfg.Channels,
				SamplesPerChannel: s.cfg.FrameSize,
				PTS:               media.PTS(time.Since(s.startLocal).Microseconds()),
			}

			s.mu.RLock()
			cb := s.callback
			s.mu.RUnlock()

			if cb != nil {
				cb(frame)
				continue
			}
			select {
			case s.samplesCh <- frame:
			default:
			}
		}
	}
}

func init() {
	RegisterVideoBackend(BackendTestPattern, func(config any) (ScreenCaptureSource, error) {
		cfg, ok := config.(TestPatternConfig)
		if !ok {
			cfg = DefaultTestPatternConfig()
		}
		return NewTestPatternSource(cfg), nil
	})
	RegisterAudioBackend(BackendTestPattern, func(config any) (AudioCaptureSource, error) {
		cfg, ok := config.(ToneConfig)
		if !ok {
			cfg = DefaultToneConfig()
		}
		return NewToneSource(cfg), nil
	})
}
