package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-response-api/internal/domain"
)

type mapCache struct {
	data        map[string]json.RawMessage
	invalidated []string
}

func newMapCache() *mapCache { return &mapCache{data: map[string]json.RawMessage{}} }

func (c *mapCache) Get(key string, out any) bool {
	raw, ok := c.data[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (c *mapCache) Set(key string, value any, _ time.Duration) {
	raw, _ := json.Marshal(value)
	c.data[key] = raw
}

func (c *mapCache) Invalidate(pattern string) int {
	c.invalidated = append(c.invalidated, pattern)
	c.data = map[string]json.RawMessage{}
	return 1
}

type memStore struct {
	disasters map[string]domain.Disaster
	posts     []domain.SocialPost
}

func newMemStore(ds ...domain.Disaster) *memStore {
	s := &memStore{disasters: map[string]domain.Disaster{}}
	for _, d := range ds {
		s.disasters[d.ID] = d
	}
	return s
}

func (s *memStore) GetDisaster(id string) (domain.Disaster, error) {
	d, ok := s.disasters[id]
	if !ok {
		return domain.Disaster{}, domain.ErrNotFound
	}
	return d, nil
}

func (s *memStore) CreateSocialPost(p *domain.SocialPost) error {
	p.ID = "user-post"
	p.Timestamp = domain.Now()
	s.posts = append(s.posts, *p)
	return nil
}

func (s *memStore) ListSocialPosts(disasterID string) ([]domain.SocialPost, error) {
	var out []domain.SocialPost
	for _, p := range s.posts {
		if p.DisasterID == disasterID {
			out = append(out, p)
		}
	}
	return out, nil
}

var flood = domain.Disaster{ID: "d1", Title: "Springfield Flood", LocationName: "Springfield, IL", Tags: []string{"flood"}}

func newTestService(t *testing.T, store Store, cache Cache) *Service {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.July, 23, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, cache, 5*time.Minute, rand.New(rand.NewSource(1)), logger)
}

func TestService_DisasterFeedShape(t *testing.T) {
	svc := newTestService(t, newMemStore(flood), newMapCache())

	feed, err := svc.DisasterFeed(context.Background(), "d1")
	require.NoError(t, err)

	require.Len(t, feed.Posts, len(templates))
	assert.Equal(t, len(templates), feed.Meta.Total)
	assert.Equal(t, []string{"Bluesky", "Twitter"}, feed.Meta.Platforms)
	assert.False(t, feed.Meta.GeneratedAt.IsZero())

	twitter, bluesky := 0, 0
	for _, p := range feed.Posts {
		switch p.Platform {
		case "Twitter":
			twitter++
		case "Bluesky":
			bluesky++
		}
		assert.Contains(t, p.Post, "flood", "posts mention the inferred disaster type")
		assert.Equal(t, "mock", p.Source)
	}
	assert.Equal(t, 8, twitter)
	assert.Equal(t, 2, bluesky)
}

func TestService_FeedSortedNewestFirst(t *testing.T) {
	svc := newTestService(t, newMemStore(flood), newMapCache())

	feed, err := svc.DisasterFeed(context.Background(), "d1")
	require.NoError(t, err)

	for i := 1; i < len(feed.Posts); i++ {
		assert.False(t, feed.Posts[i-1].Timestamp.Before(feed.Posts[i].Timestamp))
	}
}

func TestService_FeedCached(t *testing.T) {
	cache := newMapCache()
	svc := newTestService(t, newMemStore(flood), cache)

	first, err := svc.DisasterFeed(context.Background(), "d1")
	require.NoError(t, err)
	second, err := svc.DisasterFeed(context.Background(), "d1")
	require.NoError(t, err)

	assert.Equal(t, first, second, "a cached feed must return identical engagement numbers")
}

func TestService_EngagementJitterWithinBounds(t *testing.T) {
	svc := newTestService(t, newMemStore(flood), newMapCache())

	feed, err := svc.DisasterFeed(context.Background(), "d1")
	require.NoError(t, err)

	for i, p := range feed.Posts {
		if p.Source != "mock" {
			continue
		}
		var tpl template
		for _, candidate := range templates {
			if candidate.user == p.User {
				tpl = candidate
				break
			}
		}
		require.NotEmpty(t, tpl.user, "post %d matches no template", i)
		assert.InDelta(t, tpl.likes, p.Likes, float64(tpl.likes)/5+0.5)
		assert.InDelta(t, tpl.retweets, p.Retweets, float64(tpl.retweets)/5+0.5)
	}
}

func TestService_ConcurrentFeedGeneration(t *testing.T) {
	disasters := make([]domain.Disaster, 8)
	for i := range disasters {
		disasters[i] = domain.Disaster{
			ID:           fmt.Sprintf("d%d", i),
			Title:        "Springfield Flood",
			LocationName: "Springfield, IL",
		}
	}
	svc := newTestService(t, newMemStore(disasters...), newMapCache())

	var wg sync.WaitGroup
	errs := make([]error, len(disasters))
	for i := range disasters {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.DisasterFeed(context.Background(), disasters[i].ID)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
}

func TestService_UnknownDisaster(t *testing.T) {
	svc := newTestService(t, newMemStore(), newMapCache())

	_, err := svc.DisasterFeed(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_GenericDisasterWording(t *testing.T) {
	d := domain.Disaster{ID: "d2", Title: "Chemical spill", LocationName: "Gary, IN"}
	svc := newTestService(t, newMemStore(d), newMapCache())

	feed, err := svc.DisasterFeed(context.Background(), "d2")
	require.NoError(t, err)
	assert.Contains(t, feed.Posts[0].Post, "disaster", "unrecognized types fall back to generic wording")
}

func TestService_CreatePostInvalidatesFeed(t *testing.T) {
	cache := newMapCache()
	store := newMemStore(flood)
	svc := newTestService(t, store, cache)

	_, err := svc.DisasterFeed(context.Background(), "d1")
	require.NoError(t, err)

	post, err := svc.CreatePost(context.Background(), "d1", "Water rising on 5th street", "Twitter", "citizen1")
	require.NoError(t, err)
	assert.Equal(t, "@citizen1", post.User)
	assert.Equal(t, "user", post.Source)
	require.Equal(t, []string{"disaster_social_d1_*"}, cache.invalidated)

	feed, err := svc.DisasterFeed(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, len(templates)+1, feed.Meta.Total, "the refreshed feed includes the user post")
}

func TestService_CreatePostValidation(t *testing.T) {
	svc := newTestService(t, newMemStore(flood), newMapCache())

	_, err := svc.CreatePost(context.Background(), "d1", "   ", "Twitter", "citizen1")
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestService_CreatePostUnknownDisaster(t *testing.T) {
	svc := newTestService(t, newMemStore(), newMapCache())

	_, err := svc.CreatePost(context.Background(), "ghost", "hello", "Twitter", "citizen1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
