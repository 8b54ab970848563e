package media

import "strings"

// Codec identifies a codec family independent of the container's naming.
type Codec uint8

const (
	CodecUnknown Codec = iota
	CodecH264
	CodecHEVC // H.265
	CodecVP8
	CodecVP9
	CodecAV1
	CodecRawVideo
	// Audio codecs
	CodecAAC
	CodecMP3
	CodecOpus
	CodecVorbis
	CodecFLAC
	CodecPCMS16LE
	CodecPCMS16BE
	CodecPCMF32LE
)

// String returns the string representation of Codec
func (c Codec) String() string {
	switch c {
	case CodecH264:
		return "h264"
	case CodecHEVC:
		return "hevc"
	case CodecVP8:
		return "vp8"
	case CodecVP9:
		return "vp9"
	case CodecAV1:
		return "av1"
	case CodecRawVideo:
		return "rawvideo"
	case CodecAAC:
		return "aac"
	case CodecMP3:
		return "mp3"
	case CodecOpus:
		return "opus"
	case CodecVorbis:
		return "vorbis"
	case CodecFLAC:
		return "flac"
	case CodecPCMS16LE:
		return "pcm_s16le"
	case CodecPCMS16BE:
		return "pcm_s16be"
	case CodecPCMF32LE:
		return "pcm_f32le"
	default:
		return "unknown"
	}
}

// IsVideo returns true if this is a video codec
func (c Codec) IsVideo() bool {
	switch c {
	case CodecH264, CodecHEVC, CodecVP8, CodecVP9, CodecAV1, CodecRawVideo:
		return true
	default:
		return false
	}
}

// IsAudio returns true if this is an audio codec
func (c Codec) IsAudio() bool {
	switch c {
	case CodecAAC, CodecMP3, CodecOpus, CodecVorbis, CodecFLAC,
		CodecPCMS16LE, CodecPCMS16BE, CodecPCMF32LE:
		return true
	default:
		return false
	}
}

// ParseCodec maps a container codec identifier to a Codec. It understands
// ISO BMFF sample entry types ("avc1", "mp4a", "sowt", "raw ") and Matroska codec ids
// ("V_MPEG4/ISO/AVC", "A_OPUS", "A_PCM/INT/LIT"), plus the Codec.String names.
func ParseCodec(id string) Codec {
	switch strings.TrimSpace(id) {
	case "avc1", "avc3", "V_MPEG4/ISO/AVC", "h264":
		return CodecH264
	case "hvc1", "hev1", "V_MPEGH/ISO/HEVC", "hevc":
		return CodecHEVC
	case "vp08", "V_VP8", "vp8":
		return CodecVP8
	case "vp09", "V_VP9", "vp9":
		return CodecVP9
	case "av01", "V_AV1", "av1":
		return CodecAV1
	case "raw", "V_UNCOMPRESSED", "rawvideo":
		return CodecRawVideo
	case "mp4a", "A_AAC", "A_AAC/MPEG4/LC", "A_AAC/MPEG2/LC", "aac":
		return CodecAAC
	case ".mp3", "A_MPEG/L3", "mp3":
		return CodecMP3
	case "Opus", "A_OPUS", "opus":
		return CodecOpus
	case "A_VORBIS", "vorbis":
		return CodecVorbis
	case "fLaC", "A_FLAC", "flac":
		return CodecFLAC
	case "sowt", "A_PCM/INT/LIT", "pcm_s16le":
		return CodecPCMS16LE
	case "twos", "A_PCM/INT/BIG", "pcm_s16be":
		return CodecPCMS16BE
	case "fl32", "A_PCM/FLOAT/IEEE", "pcm_f32le":
		return CodecPCMF32LE
	default:
		return CodecUnknown
	}
}
