// Package decode turns a captured Ogg/Opus blob into planar float samples.
//
// Probe reads the Ogg container's identification packet to learn the stream
// layout. FFmpegDecoder then runs FFmpeg to decode the Opus packets to raw
// 32-bit float PCM, which is split into channels.
//
// Opus always decodes at 48 kHz. That rate is reported as-is; the input
// sample rate recorded in the stream header is informational only.
package decode
