package ffprobe

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
)

const sampleJSON = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080, "disposition": {"default": 1}},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "channels": 2, "tags": {"language": "JPN", "title": "Stereo"}},
    {"index": 2, "codec_name": "flac", "codec_type": "audio", "channels": 6, "tags": {"LANGUAGE": "eng"}},
    {"index": 3, "codec_name": "ass", "codec_type": "subtitle", "tags": {"language": "eng"}}
  ],
  "format": {"filename": "ep.mkv", "nb_streams": 4, "duration": "1420.5", "size": "734003200", "bit_rate": "4133000", "format_name": "matroska,webm"}
}`

func TestParseGroupsStreams(t *testing.T) {
	result, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.VideoStreamCount() != 1 || result.AudioStreamCount() != 2 || result.SubtitleStreamCount() != 1 {
		t.Fatalf("unexpected stream counts: %d/%d/%d", result.VideoStreamCount(), result.AudioStreamCount(), result.SubtitleStreamCount())
	}
	audio := result.StreamsOfType(TypeAudio)
	if audio[0].Language() != "jpn" || audio[0].Title() != "Stereo" {
		t.Fatalf("unexpected audio tags: %+v", audio[0])
	}
	if audio[1].Language() != "eng" {
		t.Fatalf("expected upper-case tag key to be honoured, got %q", audio[1].Language())
	}
	if !result.Streams[0].IsDefault() || audio[0].IsDefault() {
		t.Fatal("unexpected default dispositions")
	}
	if len(result.RawJSON()) == 0 {
		t.Fatal("expected raw payload to be retained")
	}
}

func TestResultHelpers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
			BitRate:  "32000",
		},
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	if result.BitRate() != 32000 {
		t.Fatalf("unexpected bitrate: %d", result.BitRate())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
			BitRate:  "nope",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.BitRate() != 0 {
		t.Fatalf("expected bitrate 0, got %d", result.BitRate())
	}
}

func TestInspectRunsBinary(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "ffprobe")
	body := fmt.Sprintf("#!/bin/sh\ncat <<'JSON'\n%s\nJSON\n", sampleJSON)
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	result, err := Inspect(context.Background(), script, "/media/ep.mkv")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if result.Format.FormatName != "matroska,webm" || len(result.Streams) != 4 {
		t.Fatalf("unexpected result: %+v", result.Format)
	}
}

func TestInspectReportsFailure(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "ffprobe")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho 'Invalid data found' >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := Inspect(context.Background(), script, "/media/ep.mkv"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := Inspect(context.Background(), script, "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
