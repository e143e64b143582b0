// Package capture implements ScreenCaptureSource and AudioCaptureSource,
// the contracts the pipeline's capture stage depends on, plus the one
// synthetic backend this repository ships.
//
// Real backends (X11/XCB, Wayland via the screencast portal + PipeWire,
// and the matching system-audio/loopback capture) are external
// collaborators: this package only defines the interface they must
// satisfy and the registry they register themselves into at init time.
// A conforming backend must enumerate monitors via GetMonitors before
// Start, deliver strictly monotonic PTS values, hold width/height/format
// stable between format-change events, and emit a sentinel frame
// (KeyframeHint on the first RawVideoFrame of a new format) before any
// frame in that format — the invariant the original x11_capture.cpp /
// wayland_capture.cpp / pipewire_stream.cpp implementations enforce.
package capture
