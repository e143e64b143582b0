// Command streamlinux-host is the sender entrypoint: it captures a
// monitor and system audio, encodes both, synchronizes them into
// tuples, and serves them to one streamlinux-client over WebRTC.
//
// Exit codes per spec §6: 0 success, 1 invalid argument or
// initialization failure, 2 permission denied, 130 SIGINT.
package main

import (
	"errors"
	"os"

	"github.com/streamlinux/streamlinux/internal/capture"
	"github.com/streamlinux/streamlinux/internal/xerrors"
)

func main() {
	os.Exit(run())
}

func run() int {
	err := newRootCommand().Execute()
	if err == nil {
		return 0
	}
	if err == errInterrupted {
		return 130
	}
	if xerrors.Is(err, xerrors.KindPermission) || errors.Is(err, capture.ErrPermissionDenied) {
		return 2
	}
	return 1
}
