package config

const (
	defaultStateDir           = "~/.local/share/reencode"
	defaultLogDir             = "~/.local/share/reencode/logs"
	defaultWorkDir            = "~/.local/share/reencode/work"
	defaultLibraryDir         = "~/library/tv"
	defaultEngine             = EngineFFmpeg
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
	defaultVideoCodec         = "libx265"
	defaultAudioCodec         = "copy"
	defaultSubtitleCodec      = "copy"
	defaultExtraParameters    = "-crf 22 -preset medium"
	defaultContainer          = "mkv"
	defaultNamingTemplate     = `{{.Series}}/Season {{printf "%02d" .Season}}/{{.Series}} - S{{printf "%02d" .Season}}E{{printf "%02d" .Episode}}{{if .EpisodeName}} - {{.EpisodeName}}{{end}}`
	defaultHashAlgorithm      = "xxh64"
	defaultDuplicatePolicy    = DuplicateKeep
	defaultRecheckInterval    = 60
	defaultMinFreeGiB         = 5
	defaultThumbnailOffset    = 90
	defaultThumbnailWidth     = 640
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultDatabaseFileName   = "queue.db"
	defaultEncoderLockName    = "encoder.lock"
	defaultLogFileName        = "reencode.log"
	defaultProgressBucketSize = 5
)

// Engine names accepted by encoding.engine.
const (
	EngineFFmpeg = "ffmpeg"
	EngineDrapto = "drapto"
)

// Duplicate policies accepted by queue.duplicate_policy.
const (
	DuplicateKeep    = "keep"
	DuplicateDiscard = "discard"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
			WorkDir:    defaultWorkDir,
			LibraryDir: defaultLibraryDir,
		},
		Encoding: Encoding{
			Engine:          defaultEngine,
			FFmpegBinary:    defaultFFmpegBinary,
			FFprobeBinary:   defaultFFprobeBinary,
			VideoCodec:      defaultVideoCodec,
			AudioCodec:      defaultAudioCodec,
			SubtitleCodec:   defaultSubtitleCodec,
			ExtraParameters: defaultExtraParameters,
			Container:       defaultContainer,
		},
		Naming: Naming{
			Template: defaultNamingTemplate,
		},
		Queue: Queue{
			HashAlgorithm:   defaultHashAlgorithm,
			DuplicatePolicy: defaultDuplicatePolicy,
			RecheckInterval: defaultRecheckInterval,
			MinFreeGiB:      defaultMinFreeGiB,
		},
		Thumbnails: Thumbnails{
			Enabled:       true,
			OffsetSeconds: defaultThumbnailOffset,
			Width:         defaultThumbnailWidth,
		},
		Logging: Logging{
			Format:             defaultLogFormat,
			Level:              defaultLogLevel,
			ProgressBucketSize: defaultProgressBucketSize,
		},
	}
}
