package compose

import "fmt"

// Format is an output container with its codecs.
type Format struct {
	Name       string
	MIMEType   string
	Extension  string
	VideoCodec string
	AudioCodec string
	Muxer      string
	MuxerArgs  []string
}

var (
	// MP4 is H.264 + AAC in fragmented MP4 so it can be written to a pipe.
	MP4 = Format{
		Name:       "mp4",
		MIMEType:   "video/mp4",
		Extension:  "mp4",
		VideoCodec: "libx264",
		AudioCodec: "aac",
		Muxer:      "mp4",
		MuxerArgs:  []string{"-movflags", "frag_keyframe+empty_moov+default_base_moof"},
	}
	// WebM is VP9 + Opus.
	WebM = Format{
		Name:       "webm",
		MIMEType:   "video/webm",
		Extension:  "webm",
		VideoCodec: "libvpx-vp9",
		AudioCodec: "libopus",
		Muxer:      "webm",
	}
)

// DefaultFormats is the container preference order.
var DefaultFormats = []Format{MP4, WebM}

// Negotiate picks the first format whose codecs are both in encoders.
func Negotiate(encoders []string, preferred []Format) (Format, error) {
	available := make(map[string]bool, len(encoders))
	for _, e := range encoders {
		available[e] = true
	}
	for _, f := range preferred {
		if available[f.VideoCodec] && available[f.AudioCodec] {
			return f, nil
		}
	}
	return Format{}, fmt.Errorf("%w: no supported output container", ErrUnsupported)
}

// pixelFormat keeps native dimensions: 4:2:0 needs even sides, so odd-sized
// images are encoded 4:4:4 instead of being padded or scaled.
func pixelFormat(width, height int) string {
	if width%2 == 0 && height%2 == 0 {
		return "yuv420p"
	}
	return "yuv444p"
}
