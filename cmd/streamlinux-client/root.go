package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/streamlinux/streamlinux/internal/codec"
	_ "github.com/streamlinux/streamlinux/internal/codec/refenc"
	"github.com/streamlinux/streamlinux/internal/config"
	"github.com/streamlinux/streamlinux/internal/media"
	"github.com/streamlinux/streamlinux/internal/pipeline"
	"github.com/streamlinux/streamlinux/internal/present"
	"github.com/streamlinux/streamlinux/internal/transport/webrtcx"
)

// errInterrupted is returned by RunE when shutdown was triggered by
// SIGINT, so main can map it to exit code 130 per spec §6.
var errInterrupted = errors.New("streamlinux-client: interrupted")

func newRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "streamlinux-client",
		Short:         "Connect to a streamlinux-host and decode its stream",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, v)
		},
	}

	flags := cmd.Flags()
	flags.String("config", "", "path to the TOML config file (defaults to the XDG config path)")
	flags.String("connect", "http://127.0.0.1:8443", "base URL of the streamlinux-host signaling endpoint")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text, json")

	bind := func(key, flag string) { _ = v.BindPFlag(key, flags.Lookup(flag)) }
	bind("network.connect", "connect")
	bind("logging.level", "log-level")
	bind("logging.format", "log-format")

	return cmd
}

func resolveOptions(v *viper.Viper, configFlag string) (config.Options, string, error) {
	defaults := config.Default()
	v.SetDefault("network.connect", "http://127.0.0.1:8443")
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

	opts := config.Default()
	opts.Logging = config.LoggingOptions{Level: v.GetString("logging.level"), Format: v.GetString("logging.format")}
	if err := opts.Validate(); err != nil {
		return config.Options{}, "", err
	}
	return opts, v.GetString("network.connect"), nil
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

func runClient(cmd *cobra.Command, v *viper.Viper) error {
	configFlag, _ := cmd.Flags().GetString("config")
	opts, connectURL, err := resolveOptions(v, configFlag)
	if err != nil {
		return err
	}
	log := newLogger(opts.Logging)

	videoDecoder, err := codec.NewVideoDecoder(codec.VideoDecoderConfig{Codec: media.VideoCodecH264, Provider: media.ProviderReference})
	if err != nil {
		return err
	}
	audioDecoder, err := codec.NewAudioDecoder(codec.AudioDecoderConfig{Provider: media.ProviderReference})
	if err != nil {
		return err
	}

	clock := present.NewMasterClock(func() int64 { return time.Now().UnixMicro() })
	scheduler := present.NewScheduler(clock, present.DefaultConfig())

	tr, err := webrtcx.New(webrtcx.DefaultConfig())
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}

	var videoFrames, audioFrames atomic.Uint64
	client, err := pipeline.NewClientPipeline(pipeline.ClientConfig{
		Transport:    tr,
		VideoDecoder: videoDecoder,
		AudioDecoder: audioDecoder,
		Clock:        clock,
		Scheduler:    scheduler,
		AudioQueue:   present.NewAudioPlayoutQueue(),
		Logger:       log,
		OnVideoFrame: func(f *media.RawVideoFrame) { videoFrames.Add(1) },
		OnAudioFrame: func(f *media.RawAudioFrame) { audioFrames.Add(1) },
	})
	if err != nil {
		return err
	}

	if err := negotiate(tr, connectURL); err != nil {
		return fmt.Errorf("negotiate with %s: %w", connectURL, err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}
	log.WithField("connect", connectURL).Info("streamlinux-client: connected, decoding")

	statTicker := time.NewTicker(5 * time.Second)
	defer statTicker.Stop()

	for {
		select {
		case sig := <-sigCh:
			cancel()
			client.Stop()
			_ = tr.Close()
			if sig == syscall.SIGINT {
				return errInterrupted
			}
			return nil
		case <-statTicker.C:
			log.WithField("video_frames", videoFrames.Load()).WithField("audio_frames", audioFrames.Load()).
				WithField("state", tr.ConnectionState()).Info("playback progress")
		}
	}
}

// negotiate performs the offer/answer exchange against a
// streamlinux-host's signaling endpoint. Signaling itself is an
// external collaborator per spec §1; this is the client half of the
// minimal HTTP stand-in served by streamlinux-host.
func negotiate(tr *webrtcx.Transport, baseURL string) error {
	offer, err := tr.CreateOffer()
	if err != nil {
		return err
	}
	body, err := json.Marshal(offer)
	if err != nil {
		return err
	}
	resp, err := http.Post(baseURL+"/offer", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("signaling server returned %s", resp.Status)
	}
	var answer webrtc.SessionDescription
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return err
	}
	return tr.AcceptAnswer(answer)
}
