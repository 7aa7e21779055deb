package tracks

import (
	"slices"
	"strconv"
	"strings"

	"reencode/internal/media/ffprobe"
)

// Preferences lists the languages to keep. Entries are ISO 639 codes.
type Preferences struct {
	AudioLanguages    []string
	SubtitleLanguages []string
}

// Selection describes the stream layout of the output.
type Selection struct {
	Primary      ffprobe.Stream
	PrimaryIndex int
	KeepIndices  []int
	Removed      []int
}

// All reports whether every stream is kept. Jobs store an empty selection in
// that case.
func (s Selection) All() bool {
	return len(s.Removed) == 0
}

// Streams returns the indices to record on a job: nil when nothing is removed.
func (s Selection) Streams() []int {
	if s.All() {
		return nil
	}
	return slices.Clone(s.KeepIndices)
}

// PrimaryLabel returns a human-readable summary of the primary audio stream.
func (s Selection) PrimaryLabel() string {
	if s.PrimaryIndex < 0 {
		return ""
	}
	return formatStreamSummary(s.Primary)
}

// Select applies prefs to the probed streams.
func Select(result ffprobe.Result, prefs Preferences) Selection {
	selection := Selection{PrimaryIndex: -1}
	keep := make(map[int]struct{})

	for _, stream := range result.StreamsOfType(ffprobe.TypeVideo) {
		if stream.IsAttachedPicture() {
			continue
		}
		keep[stream.Index] = struct{}{}
	}

	candidates := buildCandidates(result.StreamsOfType(ffprobe.TypeAudio))
	matched := candidates.matching(prefs.AudioLanguages)
	if len(matched) == 0 && len(candidates) > 0 {
		matched = candidateList{choosePrimary(candidates)}
	}
	for _, cand := range matched {
		keep[cand.stream.Index] = struct{}{}
	}
	if len(matched) > 0 {
		primary := choosePrimary(matched)
		selection.Primary = primary.stream
		selection.PrimaryIndex = primary.stream.Index
	}

	for _, stream := range result.StreamsOfType(ffprobe.TypeSubtitle) {
		if languageWanted(stream.Language(), prefs.SubtitleLanguages) {
			keep[stream.Index] = struct{}{}
		}
	}

	for _, stream := range result.Streams {
		if _, ok := keep[stream.Index]; ok {
			selection.KeepIndices = append(selection.KeepIndices, stream.Index)
		} else {
			selection.Removed = append(selection.Removed, stream.Index)
		}
	}
	slices.Sort(selection.KeepIndices)
	slices.Sort(selection.Removed)
	return selection
}

func languageWanted(language string, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, w := range wanted {
		if w == language || (len(w) == 2 && strings.HasPrefix(language, w)) {
			return true
		}
	}
	return false
}

// candidate captures the derived metadata used for audio ranking.
type candidate struct {
	stream         ffprobe.Stream
	order          int
	language       string
	isLossless     bool
	channels       int
	defaultFlagged bool
}

type candidateList []candidate

func (c candidateList) matching(languages []string) candidateList {
	result := make(candidateList, 0, len(c))
	for _, cand := range c {
		if languageWanted(cand.language, languages) {
			result = append(result, cand)
		}
	}
	return result
}

func choosePrimary(candidates candidateList) candidate {
	if len(candidates) == 0 {
		return candidate{}
	}
	best := candidates[0]
	bestScore := scorePrimary(best)
	for i := 1; i < len(candidates); i++ {
		score := scorePrimary(candidates[i])
		if score > bestScore {
			best = candidates[i]
			bestScore = score
		}
	}
	return best
}

func scorePrimary(cand candidate) float64 {
	score := 0.0

	switch {
	case cand.channels >= 8:
		score += 1000
	case cand.channels >= 6:
		score += 800
	case cand.channels >= 4:
		score += 600
	case cand.channels >= 2:
		score += 400
	default:
		score += 200
	}

	if cand.isLossless {
		score += 100
	} else {
		score += 50
	}

	if cand.defaultFlagged {
		score += 5
	}

	// Earlier tracks win ties.
	score -= float64(cand.order) * 0.1

	return score
}

func buildCandidates(streams []ffprobe.Stream) candidateList {
	result := make(candidateList, 0, len(streams))
	for order, stream := range streams {
		result = append(result, candidate{
			stream:         stream,
			order:          order,
			language:       stream.Language(),
			channels:       channelCount(stream),
			isLossless:     detectLossless(stream),
			defaultFlagged: stream.IsDefault(),
		})
	}
	return result
}

func channelCount(stream ffprobe.Stream) int {
	if stream.Channels > 0 {
		return stream.Channels
	}
	layout := strings.ToLower(strings.TrimSpace(stream.ChannelLayout))
	switch {
	case layout == "":
		return 0
	case strings.HasPrefix(layout, "7.1"):
		return 8
	case strings.HasPrefix(layout, "6.1"):
		return 7
	case strings.HasPrefix(layout, "5.1"):
		return 6
	case strings.HasPrefix(layout, "4.0"):
		return 4
	case strings.HasPrefix(layout, "stereo"), strings.HasPrefix(layout, "2.0"):
		return 2
	case strings.HasPrefix(layout, "mono"), strings.HasPrefix(layout, "1.0"):
		return 1
	}
	total := 0
	for _, part := range strings.Split(layout, ".") {
		part = strings.Trim(part, "abcdefghijklmnopqrstuvwxyz ()")
		if n, err := strconv.Atoi(part); err == nil {
			total += n
		}
	}
	return total
}

func detectLossless(stream ffprobe.Stream) bool {
	name := strings.ToLower(stream.CodecName)
	long := strings.ToLower(stream.CodecLong)
	switch name {
	case "truehd", "flac", "mlp", "alac", "pcm_s16le", "pcm_s24le", "pcm_s32le", "pcm_bluray", "pcm_s24be", "pcm_s16be":
		return true
	}
	return strings.Contains(long, "lossless") || strings.Contains(long, "master audio") || strings.Contains(long, "dts-hd")
}

func formatStreamSummary(stream ffprobe.Stream) string {
	parts := make([]string, 0, 4)
	if lang := stream.Language(); lang != "" {
		parts = append(parts, lang)
	}
	codec := stream.CodecLong
	if codec == "" {
		codec = stream.CodecName
	}
	if codec != "" {
		parts = append(parts, codec)
	}
	if stream.Channels > 0 {
		parts = append(parts, strconv.Itoa(stream.Channels)+"ch")
	}
	if title := stream.Title(); title != "" {
		parts = append(parts, title)
	}
	if len(parts) == 0 {
		return "audio"
	}
	return strings.Join(parts, " | ")
}
