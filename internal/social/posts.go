// Package social serves the social-media feed for a disaster: a generated
// mock feed standing in for real platform integrations, merged with posts
// users create through the API.
package social

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/disaster-response-api/internal/domain"
)

// Cache is the slice of the TTL cache the feed needs.
type Cache interface {
	Get(key string, out any) bool
	Set(key string, value any, ttl time.Duration)
	Invalidate(pattern string) int
}

// Store is the slice of the record store the feed needs.
type Store interface {
	GetDisaster(id string) (domain.Disaster, error)
	CreateSocialPost(p *domain.SocialPost) error
	ListSocialPosts(disasterID string) ([]domain.SocialPost, error)
}

// Feed is a disaster's social-media feed with summary metadata.
type Feed struct {
	Posts []domain.SocialPost `json:"posts"`
	Meta  FeedMeta            `json:"meta"`
}

// FeedMeta summarizes a feed.
type FeedMeta struct {
	Total       int       `json:"total"`
	Platforms   []string  `json:"platforms"`
	GeneratedAt time.Time `json:"generated_at"`
}

// template is one mock post shape, filled in per disaster.
type template struct {
	platform   string
	user       string
	verified   bool
	text       string // %[1]s = disaster type, %[2]s = location
	likes      int
	retweets   int
	minutesAgo int
}

var templates = []template{
	{"Twitter", "@SpringfieldEM", true, "ALERT: %[1]s conditions worsening near %[2]s. Avoid low-lying roads and follow official guidance.", 245, 89, 12},
	{"Twitter", "@WeatherWatcherKC", false, "Can confirm the %[1]s situation in %[2]s is serious. Stay safe out there everyone.", 56, 12, 25},
	{"Twitter", "@LocalNews7", true, "BREAKING: Emergency crews responding to %[1]s in %[2]s. Shelter locations in thread.", 412, 203, 34},
	{"Twitter", "@road_report_il", false, "Route 4 closed due to %[1]s. Traffic diverting through %[2]s downtown.", 33, 8, 48},
	{"Twitter", "@RedCrossMW", true, "Our volunteers are on the ground supporting %[1]s response in %[2]s. Donation link below.", 178, 95, 67},
	{"Twitter", "@firstresponder_mike", false, "Long night ahead. %[1]s response in %[2]s is all hands on deck.", 89, 15, 85},
	{"Twitter", "@CityUtilities", true, "Crews working to restore service in areas affected by the %[1]s near %[2]s. Updates hourly.", 67, 21, 110},
	{"Twitter", "@concerned_parent", false, "Schools closed tomorrow because of the %[1]s. Check the %[2]s district page before driving.", 24, 3, 130},
	{"Bluesky", "@emergencyalerts.bsky.social", true, "%[2]s: %[1]s advisory remains in effect. Official updates aggregated in this feed.", 142, 51, 20},
	{"Bluesky", "@stormchaser.bsky.social", false, "Documenting the %[1]s around %[2]s. Conditions captured an hour ago, sharing for awareness.", 71, 28, 95},
}

// Service builds and caches disaster feeds.
type Service struct {
	store  Store
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger

	// rand.Rand is not safe for concurrent use; feeds for different
	// disasters generate on concurrent requests.
	mu  sync.Mutex
	rng *rand.Rand
}

// NewService creates the feed service. Pass a seeded rng in tests for
// deterministic engagement numbers; nil uses a time-seeded source.
func NewService(store Store, cache Cache, ttl time.Duration, rng *rand.Rand, logger *slog.Logger) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{store: store, cache: cache, ttl: ttl, rng: rng, logger: logger}
}

// DisasterFeed returns the cached feed for a disaster, generating and caching
// a fresh one on a miss. User posts always ride along with the mock feed.
func (s *Service) DisasterFeed(ctx context.Context, disasterID string) (Feed, error) {
	if disasterID == "" {
		return Feed{}, domain.NewValidationError("disaster id is required")
	}

	d, err := s.store.GetDisaster(disasterID)
	if err != nil {
		return Feed{}, err
	}

	key := feedCacheKey(disasterID, inferDisasterType(d))

	var cached Feed
	if s.cache.Get(key, &cached) {
		return cached, nil
	}

	posts := s.generate(d)
	userPosts, err := s.store.ListSocialPosts(disasterID)
	if err != nil {
		return Feed{}, err
	}
	posts = append(posts, userPosts...)

	sort.SliceStable(posts, func(i, j int) bool { return posts[i].Timestamp.After(posts[j].Timestamp) })

	feed := Feed{
		Posts: posts,
		Meta: FeedMeta{
			Total:       len(posts),
			Platforms:   platformsOf(posts),
			GeneratedAt: domain.Now(),
		},
	}
	s.cache.Set(key, feed, s.ttl)

	s.logger.Debug("generated social feed", "disaster_id", disasterID, "posts", len(posts))
	return feed, nil
}

// CreatePost stores a user post and invalidates the disaster's cached feeds
// so the next read includes it.
func (s *Service) CreatePost(ctx context.Context, disasterID, text, platform, userID string) (domain.SocialPost, error) {
	if strings.TrimSpace(text) == "" {
		return domain.SocialPost{}, domain.NewValidationError("post text is required")
	}
	if platform == "" {
		platform = "Twitter"
	}

	if _, err := s.store.GetDisaster(disasterID); err != nil {
		return domain.SocialPost{}, err
	}

	post := domain.SocialPost{
		DisasterID: disasterID,
		Post:       strings.TrimSpace(text),
		User:       "@" + userID,
		Platform:   platform,
		Source:     "user",
	}
	if err := s.store.CreateSocialPost(&post); err != nil {
		return domain.SocialPost{}, err
	}

	s.cache.Invalidate(feedCacheKey(disasterID, "*"))
	return post, nil
}

func (s *Service) generate(d domain.Disaster) []domain.SocialPost {
	disasterType := inferDisasterType(d)
	location := d.LocationName
	if location == "" {
		location = "the affected area"
	}

	now := domain.Now()
	posts := make([]domain.SocialPost, 0, len(templates))
	for i, tpl := range templates {
		posts = append(posts, domain.SocialPost{
			ID:         fmt.Sprintf("mock-%s-%d", d.ID, i),
			DisasterID: d.ID,
			Post:       fmt.Sprintf(tpl.text, disasterType, location),
			User:       tpl.user,
			Platform:   tpl.platform,
			Likes:      s.jitter(tpl.likes),
			Retweets:   s.jitter(tpl.retweets),
			Verified:   tpl.verified,
			Timestamp:  now.Add(-time.Duration(tpl.minutesAgo) * time.Minute),
			Source:     "mock",
		})
	}
	return posts
}

// jitter perturbs an engagement count by up to ±20% so regenerated feeds
// don't look frozen.
func (s *Service) jitter(base int) int {
	spread := base / 5
	if spread == 0 {
		return base
	}
	s.mu.Lock()
	n := s.rng.Intn(2*spread + 1)
	s.mu.Unlock()
	return base - spread + n
}

var typeKeywords = []string{"flood", "wildfire", "fire", "hurricane", "earthquake", "tornado", "storm"}

// inferDisasterType picks the feed's disaster wording from the title or tags.
func inferDisasterType(d domain.Disaster) string {
	haystack := strings.ToLower(d.Title + " " + strings.Join(d.Tags, " "))
	for _, k := range typeKeywords {
		if strings.Contains(haystack, k) {
			return k
		}
	}
	return "disaster"
}

func feedCacheKey(disasterID, disasterType string) string {
	return fmt.Sprintf("disaster_social_%s_%s", disasterID, disasterType)
}

func platformsOf(posts []domain.SocialPost) []string {
	seen := map[string]bool{}
	var platforms []string
	for _, p := range posts {
		if !seen[p.Platform] {
			seen[p.Platform] = true
			platforms = append(platforms, p.Platform)
		}
	}
	sort.Strings(platforms)
	return platforms
}
