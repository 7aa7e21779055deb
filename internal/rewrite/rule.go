package rewrite

import (
	"strings"
	"time"

	"golang.org/x/text/cases"

	"reencode/internal/episode"
)

// Rule maps an identity fragment of one series onto a corrected one.
type Rule struct {
	ID            int64
	BucketID      int64
	Series        string
	OldSeason     *int
	OldEpisode    *int
	NewSeason     *int
	NewEpisode    *int
	NewSeriesName string
	UpdatedAt     time.Time
}

// IsPlaceholder reports whether the rule has no season or episode filter.
func (r Rule) IsPlaceholder() bool {
	return r.OldSeason == nil && r.OldEpisode == nil
}

// IsInert reports whether applying the rule could never change an identity.
func (r Rule) IsInert() bool {
	return r.NewSeason == nil && strings.TrimSpace(r.NewSeriesName) == ""
}

// Covers reports whether the rule's filters select the identity. A rule with no
// filter at all never covers anything.
func (r Rule) Covers(id episode.Identity) bool {
	series := strings.TrimSpace(r.Series)
	if series == "" && r.IsPlaceholder() {
		return false
	}
	if series != "" && SeriesKey(series) != SeriesKey(id.Series) {
		return false
	}
	if r.OldSeason != nil {
		switch {
		case id.Season != nil && *id.Season == *r.OldSeason:
		case id.Season == nil && *r.OldSeason == 0:
		default:
			return false
		}
	}
	if r.OldEpisode != nil && id.Episode < *r.OldEpisode {
		return false
	}
	return true
}

// Apply returns the rewritten identity and whether the rule changed anything.
// A new season shifts the episode by NewEpisode-OldEpisode when both are set,
// never going below episode 1.
func (r Rule) Apply(id episode.Identity) (episode.Identity, bool) {
	if !r.Covers(id) {
		return id, false
	}
	applied := false
	if r.NewSeason != nil {
		season := *r.NewSeason
		id.Season = &season
		if r.OldEpisode != nil && r.NewEpisode != nil {
			id.Episode = max(id.Episode+(*r.NewEpisode-*r.OldEpisode), 1)
		}
		applied = true
	}
	if name := strings.TrimSpace(r.NewSeriesName); name != "" {
		id.Series = name
		applied = true
	}
	return id, applied
}

// SeriesKey is the case-insensitive bucket key for a series name.
func SeriesKey(series string) string {
	return cases.Fold().String(strings.Join(strings.Fields(series), " "))
}
