package demuxtest

import "bytes"

// Movie builds an MP4 with n video and n audio samples, each 500 ms long and
// interleaved one to one. Video is 2x2 raw I420 (6-byte samples, keyframe on
// every even sample); audio is 48 kHz stereo little-endian PCM (8-byte
// samples, two sample frames each). Both decode with the built-in backends.
func Movie(n int) []byte {
	video := MP4Track{Handler: "vide", Entry: "raw ", Timescale: 1000, Width: 2, Height: 2}
	audio := MP4Track{Handler: "soun", Entry: "sowt", Timescale: 48000, Channels: 2, SampleRate: 48000}
	for i := 0; i < n; i++ {
		video.Samples = append(video.Samples, MP4Sample{
			Data:     bytes.Repeat([]byte{byte(0x10 + i)}, 6),
			Duration: 500,
			Keyframe: i%2 == 0,
		})
		audio.Samples = append(audio.Samples, MP4Sample{
			Data:     bytes.Repeat([]byte{byte(0x80 + i)}, 8),
			Duration: 24000,
			Keyframe: true,
		})
	}
	return BuildMP4(video, audio)
}
