// Command streamlinux-client is the receiver entrypoint: it connects to
// one streamlinux-host over WebRTC, decodes the synchronized video and
// audio streams, and hands display-ready frames to a sink. Rendering to
// a window is an external collaborator per spec §1; this binary logs
// frame/sample arrival in its place.
//
// Exit codes per spec §6: 0 success, 1 invalid argument or
// initialization failure, 2 permission denied, 130 SIGINT.
package main

import (
	"os"

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
	if xerrors.Is(err, xerrors.KindPermission) {
		return 2
	}
	return 1
}
