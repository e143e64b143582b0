// Package codec defines encoder/decoder contracts and a provider
// registry; real codec bindings (x264, OpenH264, libvpx, libaom,
// libopus) are external collaborators per spec §1 ("low-level codec
// libraries"). internal/codec/refenc provides the one software
// reference implementation this repository ships, used by tests and by
// both commands, which select ProviderReference.
package codec
