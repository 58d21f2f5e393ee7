// Package store persists disaster, resource, and social-media records in
// LevelDB.
// It shares one DB handle with the TTL cache, separated by key prefixes.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/couchcryptid/disaster-response-api/internal/domain"
)

const (
	disasterPrefix = "disaster:"
	postPrefix     = "post:"
	resourcePrefix = "resource:"
)

// OpenDB opens (or creates) the shared LevelDB database at dir.
func OpenDB(dir string) (*leveldb.DB, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", dir, err)
	}
	return db, nil
}

// Store provides record access over a shared LevelDB handle.
type Store struct {
	db     *leveldb.DB
	logger *slog.Logger
}

// New creates a Store on the given DB.
func New(db *leveldb.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// CheckReadiness probes the database so /readyz reflects storage health.
func (s *Store) CheckReadiness(_ context.Context) error {
	if _, err := s.db.Get([]byte("readiness-probe"), nil); err != nil && !errors.Is(err, leveldb.ErrNotFound) {
		return fmt.Errorf("store not reachable: %w", err)
	}
	return nil
}

// CreateDisaster assigns an ID and timestamp, then persists the record.
func (s *Store) CreateDisaster(d *domain.Disaster) error {
	d.CreatedAt = domain.Now()
	d.ID = generateID("disaster", d.Title, d.LocationName, d.CreatedAt.UnixNano())
	return s.putDisaster(*d)
}

// GetDisaster returns the disaster with the given ID or domain.ErrNotFound.
func (s *Store) GetDisaster(id string) (domain.Disaster, error) {
	raw, err := s.db.Get([]byte(disasterPrefix+id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return domain.Disaster{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Disaster{}, fmt.Errorf("get disaster %s: %w", id, err)
	}
	var d domain.Disaster
	if err := json.Unmarshal(raw, &d); err != nil {
		return domain.Disaster{}, fmt.Errorf("decode disaster %s: %w", id, err)
	}
	return d, nil
}

// ListDisasters returns all disasters, newest first, optionally filtered to
// those carrying the given tag.
func (s *Store) ListDisasters(tag string) ([]domain.Disaster, error) {
	it := s.db.NewIterator(util.BytesPrefix([]byte(disasterPrefix)), nil)
	defer it.Release()

	disasters := []domain.Disaster{}
	for it.Next() {
		var d domain.Disaster
		if err := json.Unmarshal(it.Value(), &d); err != nil {
			s.logger.Warn("skipping undecodable disaster record", "key", string(it.Key()), "error", err)
			continue
		}
		if tag != "" && !hasTag(d, tag) {
			continue
		}
		disasters = append(disasters, d)
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("list disasters: %w", err)
	}

	sort.Slice(disasters, func(i, j int) bool { return disasters[i].CreatedAt.After(disasters[j].CreatedAt) })
	return disasters, nil
}

// PutDisaster overwrites an existing disaster record. The record must exist.
func (s *Store) PutDisaster(d domain.Disaster) error {
	if _, err := s.GetDisaster(d.ID); err != nil {
		return err
	}
	return s.putDisaster(d)
}

// DeleteDisaster removes a disaster and its user posts.
func (s *Store) DeleteDisaster(id string) error {
	if _, err := s.GetDisaster(id); err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	batch.Delete([]byte(disasterPrefix + id))

	for _, prefix := range []string{postPrefix, resourcePrefix} {
		it := s.db.NewIterator(util.BytesPrefix([]byte(prefix+id+":")), nil)
		for it.Next() {
			batch.Delete(append([]byte(nil), it.Key()...))
		}
		it.Release()
	}

	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("delete disaster %s: %w", id, err)
	}
	return nil
}

// CreateSocialPost assigns an ID and timestamp, then persists the post under
// its disaster.
func (s *Store) CreateSocialPost(p *domain.SocialPost) error {
	p.Timestamp = domain.Now()
	p.ID = generateID("post", p.DisasterID, p.Post, p.Timestamp.UnixNano())

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode social post: %w", err)
	}
	if err := s.db.Put([]byte(postPrefix+p.DisasterID+":"+p.ID), raw, nil); err != nil {
		return fmt.Errorf("put social post: %w", err)
	}
	return nil
}

// ListSocialPosts returns the user posts for a disaster, newest first.
func (s *Store) ListSocialPosts(disasterID string) ([]domain.SocialPost, error) {
	it := s.db.NewIterator(util.BytesPrefix([]byte(postPrefix+disasterID+":")), nil)
	defer it.Release()

	posts := []domain.SocialPost{}
	for it.Next() {
		var p domain.SocialPost
		if err := json.Unmarshal(it.Value(), &p); err != nil {
			s.logger.Warn("skipping undecodable social post", "key", string(it.Key()), "error", err)
			continue
		}
		posts = append(posts, p)
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("list social posts: %w", err)
	}

	sort.Slice(posts, func(i, j int) bool { return posts[i].Timestamp.After(posts[j].Timestamp) })
	return posts, nil
}

// CreateResource assigns an ID and timestamp, then persists the resource
// under its disaster. The disaster must exist.
func (s *Store) CreateResource(r *domain.Resource) error {
	if _, err := s.GetDisaster(r.DisasterID); err != nil {
		return err
	}

	r.CreatedAt = domain.Now()
	r.ID = generateID("resource", r.DisasterID, r.Name, r.CreatedAt.UnixNano())

	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode resource: %w", err)
	}
	if err := s.db.Put([]byte(resourcePrefix+r.DisasterID+":"+r.ID), raw, nil); err != nil {
		return fmt.Errorf("put resource: %w", err)
	}
	return nil
}

// ListResourcesNear returns a disaster's resources within radiusMeters of the
// given point, closest first.
func (s *Store) ListResourcesNear(disasterID string, lat, lon, radiusMeters float64) ([]domain.Resource, error) {
	it := s.db.NewIterator(util.BytesPrefix([]byte(resourcePrefix+disasterID+":")), nil)
	defer it.Release()

	type withDistance struct {
		resource domain.Resource
		meters   float64
	}
	var near []withDistance
	for it.Next() {
		var r domain.Resource
		if err := json.Unmarshal(it.Value(), &r); err != nil {
			s.logger.Warn("skipping undecodable resource record", "key", string(it.Key()), "error", err)
			continue
		}
		if d := haversineMeters(lat, lon, r.Lat, r.Lon); d <= radiusMeters {
			near = append(near, withDistance{r, d})
		}
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}

	sort.Slice(near, func(i, j int) bool { return near[i].meters < near[j].meters })
	resources := make([]domain.Resource, 0, len(near))
	for _, n := range near {
		resources = append(resources, n.resource)
	}
	return resources, nil
}

const earthRadiusMeters = 6371000

// haversineMeters is the great-circle distance between two points.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(a))
}

func (s *Store) putDisaster(d domain.Disaster) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode disaster: %w", err)
	}
	if err := s.db.Put([]byte(disasterPrefix+d.ID), raw, nil); err != nil {
		return fmt.Errorf("put disaster: %w", err)
	}
	return nil
}

func hasTag(d domain.Disaster, tag string) bool {
	for _, t := range d.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// generateID derives a deterministic short ID from the record's identifying
// fields plus creation time.
func generateID(parts ...any) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%v|", p)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
