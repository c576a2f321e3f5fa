package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/domain"
)

// SketchStore implements ports.SketchStore on Valkey. Each sketch lives
// under its own key with a sliding TTL, so abandoned drawing sessions
// expire on their own.
type SketchStore struct {
	client valkey.Client
	ttl    time.Duration
}

// NewSketchStore creates a sketch store sharing the cache's connection.
func NewSketchStore(cache *Cache, ttlSeconds int) *SketchStore {
	return &SketchStore{
		client: cache.client,
		ttl:    time.Duration(ttlSeconds) * time.Second,
	}
}

func sketchKey(id string) string {
	return "sketch:" + id
}

// Save stores the sketch and refreshes its TTL.
func (s *SketchStore) Save(ctx context.Context, sketch *domain.Sketch) error {
	data, err := json.Marshal(sketch)
	if err != nil {
		return fmt.Errorf("encode sketch: %w", err)
	}
	cmd := s.client.Do(ctx,
		s.client.B().Set().Key(sketchKey(sketch.ID)).Value(string(data)).Ex(s.ttl).Build(),
	)
	if cmd.Error() != nil {
		return fmt.Errorf("save sketch %s: %w", sketch.ID, cmd.Error())
	}
	return nil
}

// Get returns a sketch, or domain.ErrSketchNotFound once it expired.
func (s *SketchStore) Get(ctx context.Context, id string) (*domain.Sketch, error) {
	cmd := s.client.Do(ctx, s.client.B().Get().Key(sketchKey(id)).Build())
	if err := cmd.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, domain.ErrSketchNotFound
		}
		return nil, fmt.Errorf("load sketch %s: %w", id, err)
	}
	data, err := cmd.AsBytes()
	if err != nil {
		return nil, fmt.Errorf("load sketch %s: %w", id, err)
	}

	var sketch domain.Sketch
	if err := json.Unmarshal(data, &sketch); err != nil {
		return nil, fmt.Errorf("decode sketch %s: %w", id, err)
	}
	return &sketch, nil
}

// Delete discards a sketch.
func (s *SketchStore) Delete(ctx context.Context, id string) error {
	return s.client.Do(ctx, s.client.B().Del().Key(sketchKey(id)).Build()).Error()
}
