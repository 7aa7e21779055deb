package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"reencode/internal/config"
	"reencode/internal/contenthash"
	"reencode/internal/episode"
	"reencode/internal/logging"
	"reencode/internal/media/tracks"
	"reencode/internal/queue"
	"reencode/internal/rewrite"
	"reencode/internal/services"
	"reencode/internal/textutil"
	"reencode/internal/transcode"
)

// RuleApplier corrects resolved identities.
type RuleApplier interface {
	Apply(ctx context.Context, id episode.Identity) (episode.Identity, *rewrite.Rule, error)
}

// Prober inspects a source's streams.
type Prober interface {
	Probe(ctx context.Context, path string) (transcode.ProbeResult, error)
}

// Options override the encoding defaults for one submission.
type Options struct {
	VideoCodec      string
	AudioCodec      string
	SubtitleCodec   string
	ExtraParameters string
	StereoMode      queue.StereoMode
	// KeepAllStreams skips language-based stream selection.
	KeepAllStreams bool
}

// Plan is the job built for one source and how it was derived.
type Plan struct {
	Job       *queue.Job
	Resolved  episode.Identity
	Identity  episode.Identity
	Rule      *rewrite.Rule
	Selection tracks.Selection
}

// NamingData is the value the naming template renders.
type NamingData struct {
	Series      string
	Season      int
	Episode     int
	EpisodeName string
	Fansubber   string
	Extension   string
}

// Planner builds jobs from source paths.
type Planner struct {
	cfg      *config.Config
	resolver *episode.Resolver
	rules    RuleApplier
	prober   Prober
	hasher   contenthash.Hasher
	naming   *template.Template
	logger   *slog.Logger
}

// NewPlanner compiles the naming template from cfg. rules and prober may be
// nil, in which case identities are used as resolved and every stream is kept.
func NewPlanner(cfg *config.Config, rules RuleApplier, prober Prober, hasher contenthash.Hasher, logger *slog.Logger) (*Planner, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "ingest", "new planner", "config is nil", nil)
	}
	if hasher == nil {
		return nil, services.Wrap(services.ErrConfiguration, "ingest", "new planner", "hasher is nil", nil)
	}
	naming, err := template.New("naming").Option("missingkey=error").Parse(cfg.Naming.Template)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "ingest", "parse naming template", "", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Planner{
		cfg:      cfg,
		resolver: episode.NewResolver(),
		rules:    rules,
		prober:   prober,
		hasher:   hasher,
		naming:   naming,
		logger:   logging.NewComponentLogger(logger, "ingest"),
	}, nil
}

// Plan builds the job for path. Unrecognized filenames return ErrNotRecognized
// and missing files ErrNotFound.
func (p *Planner) Plan(ctx context.Context, path string, opts Options) (*Plan, error) {
	source, err := config.ExpandPath(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "ingest", "plan", path, err)
	}
	info, err := os.Stat(source)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "ingest", "plan", source, err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "ingest", "plan", fmt.Sprintf("%s is a directory", source), nil)
	}

	resolved, ok := p.resolver.Resolve(source)
	if !ok {
		return nil, services.Wrap(services.ErrNotRecognized, "ingest", "resolve", filepath.Base(source), nil)
	}
	plan := &Plan{Resolved: resolved, Identity: resolved, Selection: tracks.Selection{PrimaryIndex: -1}}

	if p.rules != nil {
		identity, rule, err := p.rules.Apply(ctx, resolved)
		if err != nil {
			return nil, err
		}
		plan.Identity = identity
		plan.Rule = rule
	}

	if p.prober != nil && !opts.KeepAllStreams {
		probe, err := p.prober.Probe(ctx, source)
		if err != nil {
			return nil, err
		}
		plan.Selection = tracks.Select(probe.Raw, tracks.Preferences{
			AudioLanguages:    p.cfg.Encoding.AudioLanguages,
			SubtitleLanguages: p.cfg.Encoding.SubtitleLanguages,
		})
	}

	output, err := p.OutputPath(plan.Identity)
	if err != nil {
		return nil, err
	}
	if filepath.Clean(output) == filepath.Clean(source) {
		return nil, services.Wrap(services.ErrValidation, "ingest", "plan",
			fmt.Sprintf("output path %s would overwrite the source", output), nil)
	}

	hash, err := contenthash.File(ctx, p.hasher, source)
	if err != nil {
		return nil, err
	}

	stereo := opts.StereoMode
	if stereo == "" {
		stereo = queue.StereoMono
	}
	identity := plan.Identity
	var season *int
	if identity.Season != nil {
		value := *identity.Season
		season = &value
	}
	plan.Job = &queue.Job{
		SourcePath:      source,
		OutputPath:      output,
		Streams:         plan.Selection.Streams(),
		VideoCodec:      strings.TrimSpace(opts.VideoCodec),
		AudioCodec:      strings.TrimSpace(opts.AudioCodec),
		SubtitleCodec:   strings.TrimSpace(opts.SubtitleCodec),
		ExtraParameters: strings.TrimSpace(opts.ExtraParameters),
		StereoMode:      stereo,
		Status:          queue.StatusPending,
		SourceHash:      hash,
		Series:          identity.Series,
		Season:          season,
		Episode:         identity.Episode,
		EpisodeName:     identity.EpisodeName,
		SourceSize:      info.Size(),
	}

	attrs := []logging.Attr{
		logging.String("source", source),
		logging.String("output", output),
		logging.String("series", identity.Series),
		logging.Int("episode", identity.Episode),
		logging.Int("pattern", resolved.Pattern),
	}
	if plan.Rule != nil {
		attrs = append(attrs, logging.Int64("rule_id", plan.Rule.ID))
	}
	if !plan.Selection.All() {
		attrs = append(attrs, logging.Any("removed_streams", plan.Selection.Removed))
	}
	p.logger.DebugContext(ctx, "job planned", logging.Args(attrs...)...)
	return plan, nil
}

// OutputPath renders the library path for identity. Specials without a
// season land in season 0; other identities without one in season 1.
func (p *Planner) OutputPath(identity episode.Identity) (string, error) {
	ext := strings.TrimPrefix(strings.TrimSpace(p.cfg.Encoding.Container), ".")
	if ext == "" {
		ext = identity.Extension
	}
	data := NamingData{
		Series:      identity.Series,
		Season:      identity.SeasonNumber(1),
		Episode:     identity.Episode,
		EpisodeName: identity.EpisodeName,
		Fansubber:   identity.Fansubber,
		Extension:   ext,
	}
	var buf bytes.Buffer
	if err := p.naming.Execute(&buf, data); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "ingest", "render naming template", "", err)
	}
	relative := textutil.SanitizeRelativePath(buf.String())
	if relative == "" || relative == "." {
		return "", services.Wrap(services.ErrValidation, "ingest", "render naming template",
			fmt.Sprintf("template rendered an empty path for %q", identity.FileName), nil)
	}
	return filepath.Join(p.cfg.Paths.LibraryDir, relative+"."+strings.ToLower(ext)), nil
}
