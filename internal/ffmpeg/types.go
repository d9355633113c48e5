package ffmpeg

// VideoInfo contains metadata about a video file
type VideoInfo struct {
	FilePath        string
	DurationSeconds float64
	Width           int
	Height          int
	FPS             float64
	Bitrate         int64
	Size            int64
	VideoCodec      string
	HasAudio        bool
	AudioCodec      string
}

// Progress represents one ffmpeg -progress block
type Progress struct {
	Frame   int
	FPS     float64
	Bitrate string
	// OutTime is the position reached in the output, in seconds.
	OutTime float64
	Speed   string
	Done    bool
}

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	ProgressHandler func(*Progress)
	LogHandler      func(line string)
}

// Default encoding settings
const (
	DefaultCRF          = 23
	DefaultPreset       = "medium"
	DefaultVideoCodec   = "libx264"
	DefaultAudioCodec   = "aac"
	DefaultAudioBitrate = "192k"
)
