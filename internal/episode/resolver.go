package episode

import (
	"regexp"
	"strconv"
	"strings"
)

// Identity is the series/season/episode tuple inferred for one file.
type Identity struct {
	FileName    string
	Fansubber   string
	Series      string
	Season      *int
	Episode     int
	EpisodeName string
	Container   Container
	Extension   string
	// Pattern is the 1-based position of the filename shape that matched.
	Pattern int
}

// SeasonNumber returns the season or fallback when none was inferred.
func (id Identity) SeasonNumber(fallback int) int {
	if id.Season == nil {
		return fallback
	}
	return *id.Season
}

type pattern struct {
	re *regexp.Regexp
	// expectSeason rejects numeric episodes that arrive without a season so a
	// looser shape gets a chance.
	expectSeason bool
	// dotted names use dots as word separators.
	dotted bool
}

const (
	fansubPrefix = `^\[(?P<fansub>[^\]]+)\]\s*`
	tags         = `(?:\s*\[[^\]]*\]|\s*\([^)]*\))*`
	extension    = `\.(?P<ext>[A-Za-z0-9]+)$`
	special      = `(?:Specials?|OVA|OAV|OAD|SP)\s*\d*(?:v\d+)?`
	numbered     = `\d+(?:v\d+)?`
	title        = `(?:\s+-\s+(?P<title>[^\[\]]+?))?`
)

var defaultPatterns = []pattern{
	// [Fansub] Series S2 - OVA 2 [tags].ext
	{re: regexp.MustCompile(`(?i)` + fansubPrefix + `(?P<series>.+?)\s+S(?P<season>\d+)\s+-\s+(?P<episode>` + special + `)` + tags + extension)},
	// [Fansub] Series - OVA 2 [tags].ext
	{re: regexp.MustCompile(`(?i)` + fansubPrefix + `(?P<series>.+?)\s+-\s+(?P<episode>` + special + `)` + tags + extension)},
	// [Fansub] Series - S01E05 - Title [tags].ext
	{re: regexp.MustCompile(`(?i)` + fansubPrefix + `(?P<series>.+?)\s+-\s+S(?P<season>\d+)E(?P<episode>` + numbered + `)` + title + tags + extension)},
	// [Fansub] Series S2 - 05 [tags].ext
	{re: regexp.MustCompile(`(?i)` + fansubPrefix + `(?P<series>.+?)(?:\s+S(?P<season>\d+))?\s+-\s+(?P<episode>` + numbered + `)` + tags + extension), expectSeason: true},
	// [Fansub] Series - 05 [tags].ext
	{re: regexp.MustCompile(`(?i)` + fansubPrefix + `(?P<series>.+?)\s+-\s+(?P<episode>` + numbered + `)` + tags + extension)},
	// Series - S01E12 - Title [tags].ext
	{re: regexp.MustCompile(`(?i)^(?P<series>[^\[\]]+?)\s+-\s+S(?P<season>\d+)E(?P<episode>` + numbered + `)` + title + tags + extension)},
	// Series.Name.S01E02.rest.ext
	{re: regexp.MustCompile(`(?i)^(?P<series>[^\[\]]+?)[.\s_]S(?P<season>\d+)E(?P<episode>` + numbered + `)(?:[.\s_-].*?)?` + extension), dotted: true},
	// Series 1x05 - Title.ext
	{re: regexp.MustCompile(`(?i)^(?P<series>[^\[\]]+?)\s+(?P<season>\d+)x(?P<episode>` + numbered + `)` + title + tags + extension)},
	// Series - 05 Title.ext, Series - OVA.ext
	{re: regexp.MustCompile(`(?i)^(?P<series>[^\[\]]+?)\s+-\s+(?P<episode>` + numbered + `|` + special + `)(?:\s+(?:-\s+)?(?P<title>[^\[\]]+?))?` + tags + extension)},
}

// Resolver matches filenames against an ordered list of shapes.
type Resolver struct {
	patterns []pattern
}

// NewResolver returns a resolver using the built-in filename shapes.
func NewResolver() *Resolver {
	return &Resolver{patterns: defaultPatterns}
}

var defaultResolver = NewResolver()

// Resolve infers an identity using the built-in shapes.
func Resolve(fileName string) (Identity, bool) {
	return defaultResolver.Resolve(fileName)
}

// Resolve strips leading directories from fileName and returns the identity
// produced by the first matching shape. It reports false when nothing matches.
func (r *Resolver) Resolve(fileName string) (Identity, bool) {
	base := baseName(fileName)
	if base == "" {
		return Identity{}, false
	}
	for i, p := range r.patterns {
		if id, ok := p.match(base); ok {
			id.FileName = base
			id.Pattern = i + 1
			return id, true
		}
	}
	return Identity{}, false
}

func (p pattern) match(name string) (Identity, bool) {
	m := p.re.FindStringSubmatch(name)
	if m == nil {
		return Identity{}, false
	}
	group := func(key string) string {
		if idx := p.re.SubexpIndex(key); idx >= 0 && idx < len(m) {
			return m[idx]
		}
		return ""
	}

	ext := strings.ToLower(group("ext"))
	container, ok := ContainerForExtension(ext)
	if !ok {
		return Identity{}, false
	}

	episode, isSpecial, ok := parseEpisodeToken(group("episode"))
	if !ok {
		return Identity{}, false
	}

	var season *int
	if raw := group("season"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return Identity{}, false
		}
		season = &value
	} else if isSpecial {
		zero := 0
		season = &zero
	} else if p.expectSeason {
		return Identity{}, false
	}

	series := cleanName(group("series"), p.dotted)
	if series == "" {
		return Identity{}, false
	}
	return Identity{
		Fansubber:   strings.TrimSpace(group("fansub")),
		Series:      series,
		Season:      season,
		Episode:     episode,
		EpisodeName: cleanName(group("title"), p.dotted),
		Container:   container,
		Extension:   ext,
	}, true
}

var versionSuffix = regexp.MustCompile(`(?i)v\d+$`)

// parseEpisodeToken returns the episode number and whether the token named a
// special. Specials drop their leading marker ("OVA 2" is 2) and default to 1
// when no number follows.
func parseEpisodeToken(token string) (int, bool, bool) {
	token = strings.TrimSpace(versionSuffix.ReplaceAllString(strings.TrimSpace(token), ""))
	if token == "" {
		return 1, true, true
	}
	if n, err := strconv.Atoi(token); err == nil {
		return n, false, n >= 0
	}
	digits := strings.TrimLeftFunc(token, func(r rune) bool { return r < '0' || r > '9' })
	if digits == "" {
		return 1, true, true
	}
	end := strings.IndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' })
	if end >= 0 {
		digits = digits[:end]
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false, false
	}
	return n, true, true
}

func cleanName(value string, dotted bool) string {
	value = strings.ReplaceAll(value, "_", " ")
	if dotted {
		value = strings.ReplaceAll(value, ".", " ")
	}
	return strings.TrimSpace(value)
}

func baseName(path string) string {
	if idx := strings.LastIndexAny(path, `/\`); idx >= 0 {
		path = path[idx+1:]
	}
	return strings.TrimSpace(path)
}
