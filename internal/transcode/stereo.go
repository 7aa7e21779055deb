package transcode

import (
	"strings"

	"reencode/internal/queue"
)

// StereoArgs returns the filter and metadata arguments for a stereoscopic
// source. Half-resolution packings are scaled back to full frames, which needs
// a real encoder; with a copied video stream only the metadata is written.
func StereoArgs(mode queue.StereoMode, videoCodec string) []string {
	var filter, layout string
	switch mode {
	case queue.StereoSideBySide:
		layout = "left_right"
	case queue.StereoHalfSideBySide:
		layout = "left_right"
		filter = "scale=iw*2:ih,setsar=1"
	case queue.StereoTopBottom:
		layout = "top_bottom"
	case queue.StereoHalfTopBottom:
		layout = "top_bottom"
		filter = "scale=iw:ih*2,setsar=1"
	default:
		return nil
	}
	var args []string
	if filter != "" && !strings.EqualFold(videoCodec, "copy") {
		args = append(args, "-vf", filter)
	}
	return append(args, "-metadata:s:v:0", "stereo_mode="+layout)
}
