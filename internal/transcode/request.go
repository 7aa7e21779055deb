package transcode

import (
	"fmt"
	"strings"
	"time"

	"reencode/internal/config"
	"reencode/internal/queue"
	"reencode/internal/services"
	"reencode/internal/textutil"
)

// Request describes one encode.
type Request struct {
	InputPath       string
	OutputPath      string
	Streams         []int
	VideoCodec      string
	AudioCodec      string
	SubtitleCodec   string
	ExtraParameters []string
	StereoMode      queue.StereoMode
	Container       string
	// Duration of the source, used to turn elapsed output time into a percentage.
	Duration time.Duration
}

// NewRequest builds the request for job, writing to output. Codecs and extra
// parameters the job leaves empty come from the encoding defaults.
func NewRequest(job *queue.Job, defaults config.Encoding, output string) (Request, error) {
	if job == nil {
		return Request{}, services.Wrap(services.ErrValidation, "transcode", "build request", "job is nil", nil)
	}
	extra := strings.TrimSpace(job.ExtraParameters)
	if extra == "" {
		extra = defaults.ExtraParameters
	}
	fields, err := textutil.SplitFields(extra)
	if err != nil {
		return Request{}, services.Wrap(services.ErrValidation, "transcode", "build request", fmt.Sprintf("extra parameters %q", extra), err)
	}
	return Request{
		InputPath:       job.SourcePath,
		OutputPath:      output,
		Streams:         append([]int(nil), job.Streams...),
		VideoCodec:      firstNonEmpty(job.VideoCodec, defaults.VideoCodec),
		AudioCodec:      firstNonEmpty(job.AudioCodec, defaults.AudioCodec),
		SubtitleCodec:   firstNonEmpty(job.SubtitleCodec, defaults.SubtitleCodec),
		ExtraParameters: fields,
		StereoMode:      job.StereoMode,
		Container:       defaults.Container,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
