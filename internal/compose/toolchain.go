package compose

import (
	"github.com/maauso/moments-api/internal/audio"
	"github.com/maauso/moments-api/internal/media"
)

// Toolchain is the capture toolchain a composition runs on.
type Toolchain interface {
	media.Processor
	audio.Prober
}

// ToolchainFactory binds a toolchain to the binary found by the capability probe.
type ToolchainFactory func(binary string) Toolchain

type ffmpegToolchain struct {
	*media.FFmpegProcessor
	*audio.FFmpegProber
}

// FFmpegToolchain returns a factory running the probed binary for both capture
// and metadata reads. Duration checks keep the processor's ffprobe.
func FFmpegToolchain(processor *media.FFmpegProcessor) ToolchainFactory {
	return func(binary string) Toolchain {
		return ffmpegToolchain{
			FFmpegProcessor: processor.WithBinary(binary),
			FFmpegProber:    audio.NewFFmpegProber(binary),
		}
	}
}
