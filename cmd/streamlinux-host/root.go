package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/streamlinux/streamlinux/internal/avsync"
	"github.com/streamlinux/streamlinux/internal/capture"
	"github.com/streamlinux/streamlinux/internal/codec"
	_ "github.com/streamlinux/streamlinux/internal/codec/refenc"
	"github.com/streamlinux/streamlinux/internal/config"
	"github.com/streamlinux/streamlinux/internal/media"
	"github.com/streamlinux/streamlinux/internal/pipeline"
	"github.com/streamlinux/streamlinux/internal/transport/webrtcx"
)

// errInterrupted is returned by RunE when shutdown was triggered by
// SIGINT, so main can map it to exit code 130 per spec §6.
var errInterrupted = errors.New("streamlinux-host: interrupted")

func newRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "streamlinux-host",
		Short:         "Capture a monitor and system audio and stream it to a client",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(cmd, v)
		},
	}

	flags := cmd.Flags()
	flags.String("config", "", "path to the TOML config file (defaults to the XDG config path)")
	flags.String("listen", ":8443", "address the signaling HTTP server listens on")
	flags.Int("monitor", -1, "monitor index to capture (-1 for all)")
	flags.Int("width", 1920, "capture/encode width")
	flags.Int("height", 1080, "capture/encode height")
	flags.Int("fps", 30, "capture/encode frame rate")
	flags.Int("bitrate-bps", 4_000_000, "target video bitrate in bits per second")
	flags.Int("sample-rate", 48000, "audio sample rate")
	flags.Int("channels", 2, "audio channel count")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text, json")

	bind := func(key, flag string) { _ = v.BindPFlag(key, flags.Lookup(flag)) }
	bind("network.listen", "listen")
	bind("display.monitor", "monitor")
	bind("video.width", "width")
	bind("video.height", "height")
	bind("video.fps", "fps")
	bind("video.bitrate_bps", "bitrate-bps")
	bind("audio.sample_rate", "sample-rate")
	bind("audio.channels", "channels")
	bind("logging.level", "log-level")
	bind("logging.format", "log-format")

	return cmd
}

// resolveOptions merges flags over the TOML config file over the
// built-in defaults, per spec §6 ("flags > config file > defaults").
// The core pipeline never sees viper or cobra, only the resulting
// config.Options.
func resolveOptions(v *viper.Viper, configFlag string) (config.Options, string, error) {
	defaults := config.Default()
	v.SetDefault("display.monitor", defaults.Display.Monitor)
	v.SetDefault("video.width", defaults.Video.Width)
	v.SetDefault("video.height", defaults.Video.Height)
	v.SetDefault("video.fps", defaults.Video.FPS)
	v.SetDefault("video.bitrate_bps", defaults.Video.BitrateBps)
	v.SetDefault("audio.sample_rate", defaults.Audio.SampleRate)
	v.SetDefault("audio.channels", defaults.Audio.Channels)
	v.SetDefault("network.port", defaults.Network.Port)
	v.SetDefault("network.listen", ":8443")
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.format", defaults.Logging.Format)

	path := configFlag
	if path == "" {
		path = config.DefaultPath()
	}
	resolved, err := config.ResolvePath(path)
	if err != nil {
		return config.Options{}, "", err
	}
	if _, statErr := os.Stat(resolved); statErr == nil {
		v.SetConfigFile(resolved)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return config.Options{}, "", fmt.Errorf("read config %s: %w", resolved, err)
		}
	}

	opts := config.Options{
		Display: config.DisplayOptions{Monitor: v.GetInt("display.monitor")},
		Video: config.VideoOptions{
			Width: v.GetInt("video.width"), Height: v.GetInt("video.height"),
			FPS: v.GetInt("video.fps"), BitrateBps: v.GetInt("video.bitrate_bps"),
		},
		Audio:   config.AudioOptions{SampleRate: v.GetInt("audio.sample_rate"), Channels: v.GetInt("audio.channels")},
		Network: config.NetworkOptions{Port: v.GetInt("network.port")},
		Logging: config.LoggingOptions{Level: v.GetString("logging.level"), Format: v.GetString("logging.format")},
	}
	if err := opts.Validate(); err != nil {
		return config.Options{}, "", err
	}
	return opts, v.GetString("network.listen"), nil
}

func newLogger(opts config.LoggingOptions) *logrus.Logger {
	log := logrus.New()
	if level, err := logrus.ParseLevel(opts.Level); err == nil {
		log.SetLevel(level)
	}
	if opts.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

func runHost(cmd *cobra.Command, v *viper.Viper) error {
	configFlag, _ := cmd.Flags().GetString("config")
	opts, listenAddr, err := resolveOptions(v, configFlag)
	if err != nil {
		return err
	}
	log := newLogger(opts.Logging)

	videoSource, err := capture.NewVideoSource(capture.BackendTestPattern, capture.TestPatternConfig{
		Width: opts.Video.Width, Height: opts.Video.Height, FPS: opts.Video.FPS, Pattern: capture.PatternColorBars,
	})
	if err != nil {
		return err
	}
	audioSource, err := capture.NewAudioSource(capture.BackendTestPattern, capture.ToneConfig{
		SampleRate: opts.Audio.SampleRate, Channels: opts.Audio.Channels, FrameSize: 960,
		FrequencyHz: 440, Amplitude: 0.2,
	})
	if err != nil {
		return err
	}

	videoEncoder, err := codec.NewVideoEncoder(codec.DefaultVideoEncoderConfig(media.VideoCodecH264, opts.Video.Width, opts.Video.Height))
	if err != nil {
		return err
	}
	if err := videoEncoder.SetBitrate(opts.Video.BitrateBps); err != nil {
		return fmt.Errorf("set initial bitrate: %w", err)
	}
	audioEncoder, err := codec.NewAudioEncoder(codec.DefaultAudioEncoderConfig())
	if err != nil {
		return err
	}

	tr, err := webrtcx.New(webrtcx.DefaultConfig())
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}

	host, err := pipeline.NewHostPipeline(pipeline.HostConfig{
		VideoSource:  videoSource,
		AudioSource:  audioSource,
		VideoEncoder: videoEncoder,
		AudioEncoder: audioEncoder,
		Synchronizer: avsync.New(avsync.DefaultConfig()),
		Transport:    tr,
		Logger:       log,
	})
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, srvErrCh := serveSignaling(listenAddr, tr, log)
	defer srv.Close()

	if err := host.Start(ctx); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}
	log.WithField("addr", listenAddr).Info("streamlinux-host: waiting for a client to connect")

	select {
	case sig := <-sigCh:
		cancel()
		host.Stop()
		if sig == syscall.SIGINT {
			return errInterrupted
		}
		return nil
	case err := <-srvErrCh:
		cancel()
		host.Stop()
		return err
	}
}

// serveSignaling runs a minimal HTTP offer/answer endpoint so one
// streamlinux-client can bootstrap the WebRTC connection. The
// signaling protocol itself is an external collaborator per spec §1;
// this is the smallest possible stand-in, grounded on thesyncim-media's
// examples/webrtc-pattern HTTP offer/answer handler.
func serveSignaling(addr string, tr *webrtcx.Transport, log *logrus.Logger) (*http.Server, <-chan error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/offer", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		var offer webrtc.SessionDescription
		if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		answer, err := tr.AcceptOffer(offer)
		if err != nil {
			log.WithError(err).Warn("reject offer")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(answer)
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("signaling server: %w", err)
		}
	}()
	return srv, errCh
}
