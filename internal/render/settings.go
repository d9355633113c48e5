package render

import (
	"strconv"

	"github.com/makeasinger/autoedit/internal/ffmpeg"
	"github.com/makeasinger/autoedit/internal/model"
)

// Settings are the fixed output codec parameters.
type Settings struct {
	VideoCodec   string
	AudioCodec   string
	CRF          int
	Preset       string
	AudioBitrate string
}

// DefaultSettings is the standard quality preset.
func DefaultSettings() Settings {
	return Settings{
		VideoCodec:   ffmpeg.DefaultVideoCodec,
		AudioCodec:   ffmpeg.DefaultAudioCodec,
		CRF:          ffmpeg.DefaultCRF,
		Preset:       ffmpeg.DefaultPreset,
		AudioBitrate: ffmpeg.DefaultAudioBitrate,
	}
}

// ForQuality returns s adjusted for the requested preset. Standard keeps the
// configured values.
func (s Settings) ForQuality(q model.QualityPreset) Settings {
	out := s.withDefaults()
	if q == model.QualityBest {
		out.CRF = 18
		out.Preset = "slow"
		out.AudioBitrate = "320k"
	}
	return out
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.VideoCodec == "" {
		s.VideoCodec = d.VideoCodec
	}
	if s.AudioCodec == "" {
		s.AudioCodec = d.AudioCodec
	}
	if s.CRF <= 0 {
		s.CRF = d.CRF
	}
	if s.Preset == "" {
		s.Preset = d.Preset
	}
	if s.AudioBitrate == "" {
		s.AudioBitrate = d.AudioBitrate
	}
	return s
}

func (s Settings) videoArgs() []string {
	return []string{
		"-c:v", s.VideoCodec,
		"-crf", strconv.Itoa(s.CRF),
		"-preset", s.Preset,
		"-pix_fmt", "yuv420p",
	}
}

func (s Settings) audioArgs() []string {
	return []string{"-c:a", s.AudioCodec, "-b:a", s.AudioBitrate}
}
