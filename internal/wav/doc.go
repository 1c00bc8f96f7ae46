// Package wav serializes decoded audio into a canonical RIFF/WAVE container.
//
// The container is always a fixed 44-byte header followed by interleaved,
// little-endian, signed 16-bit PCM samples:
//
//	offset  field          value
//	0       ChunkID        "RIFF"
//	4       ChunkSize      36 + DataSize
//	8       Format         "WAVE"
//	12      Subchunk1ID    "fmt "
//	16      Subchunk1Size  16
//	20      AudioFormat    1 (PCM)
//	22      NumChannels
//	24      SampleRate
//	28      ByteRate       SampleRate * NumChannels * 2
//	32      BlockAlign     NumChannels * 2
//	34      BitsPerSample  16
//	36      Subchunk2ID    "data"
//	40      DataSize       frames * NumChannels * 2
//
// Encoding is pure and deterministic: the same pcm.Audio always yields the
// same bytes.
package wav
