package expand

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
)

var hashtagPattern = regexp.MustCompile(`#\w+`)

// Service expands one user keyword into a bounded list of search-query
// variations. Expansion is advisory: a failed discovery fetch degrades to
// the seed variations and never blocks job creation.
type Service struct {
	discovery interfaces.Fetcher
	config    *common.Config
	logger    arbor.ILogger
}

// NewService creates a query expander backed by a discovery fetcher
func NewService(discovery interfaces.Fetcher, config *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		discovery: discovery,
		config:    config,
		logger:    logger,
	}
}

// SimpleQuery joins comma-separated keywords into one boolean-OR query
func SimpleQuery(keyword string) string {
	parts := splitKeywords(keyword)
	return strings.Join(parts, " OR ")
}

// SeedVariations builds the non-discovery variations: each trimmed keyword
// plus a #tag form with spaces stripped.
func SeedVariations(keyword string) []string {
	var variations []string
	for _, kw := range splitKeywords(keyword) {
		variations = append(variations, kw)
		tag := "#" + strings.ReplaceAll(kw, " ", "")
		if tag != "#" {
			variations = append(variations, tag)
		}
	}
	return dedupeCaseInsensitive(variations)
}

// Expand produces the full variation list: seeds, then context-word and
// hashtag variations mined from a discovery sample of the primary source.
func (s *Service) Expand(ctx context.Context, keyword string) []string {
	variations := SeedVariations(keyword)

	records, err := s.discovery.Fetch(ctx, keyword, s.config.Scraper.DiscoverySample)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("keyword", keyword).
			Int("seed_count", len(variations)).
			Msg("Discovery fetch failed, continuing with seed variations only")
		return capVariations(variations, s.config.Expand.MaxVariations)
	}

	var texts []string
	for _, rec := range records {
		if t := rec.Text(); t != "" {
			texts = append(texts, t)
		}
	}
	sample := strings.Join(texts, " ")

	base := strings.TrimSpace(keyword)
	for _, word := range s.contextWords(sample) {
		variations = append(variations, base+" "+word)
	}
	variations = append(variations, s.frequentHashtags(sample)...)

	variations = dedupeCaseInsensitive(variations)

	s.logger.Info().
		Str("keyword", keyword).
		Int("discovery_records", len(records)).
		Int("variations", len(variations)).
		Msg("Query expansion complete")

	return capVariations(variations, s.config.Expand.MaxVariations)
}

// contextWords ranks discovery tokens by frequency after dropping stop
// words, short tokens and pure numbers, keeping the top K.
func (s *Service) contextWords(text string) []string {
	counts := make(map[string]int)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		token = strings.Trim(token, ".,!?;:'\"()[]")
		if len(token) <= 3 {
			continue
		}
		if stopWords[token] {
			continue
		}
		if strings.HasPrefix(token, "#") || strings.HasPrefix(token, "@") {
			continue
		}
		if _, err := strconv.Atoi(token); err == nil {
			continue
		}
		counts[token]++
	}
	return topByCount(counts, s.config.Expand.MaxContextWords, 1)
}

// frequentHashtags extracts #tags occurring at least MinHashtagCount times
func (s *Service) frequentHashtags(text string) []string {
	counts := make(map[string]int)
	for _, tag := range hashtagPattern.FindAllString(strings.ToLower(text), -1) {
		counts[tag]++
	}
	return topByCount(counts, -1, s.config.Expand.MinHashtagCount)
}

// topByCount orders keys by descending count, ties broken alphabetically
// for determinism. limit < 0 means unbounded; keys below minCount drop.
func topByCount(counts map[string]int, limit, minCount int) []string {
	keys := make([]string, 0, len(counts))
	for k, c := range counts {
		if c >= minCount {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if limit >= 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

func splitKeywords(keyword string) []string {
	var parts []string
	for _, p := range strings.Split(keyword, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

func dedupeCaseInsensitive(variations []string) []string {
	seen := make(map[string]bool, len(variations))
	var out []string
	for _, v := range variations {
		key := strings.ToLower(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

func capVariations(variations []string, max int) []string {
	if max > 0 && len(variations) > max {
		return variations[:max]
	}
	return variations
}
