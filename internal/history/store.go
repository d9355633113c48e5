package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/makeasinger/autoedit/internal/model"
)

const (
	// MaxVersions is how many snapshots are kept per asset; older ones are evicted.
	MaxVersions = 10
	// MaxHistory bounds the cut log per asset.
	MaxHistory = 1000

	maxTxAttempts = 5
)

// ErrVersionNotFound is returned when a version id is not in the asset's ring.
var ErrVersionNotFound = errors.New("version not found")

// Store keeps per-asset edit history and version snapshots in Redis. Each asset
// has its own keys, so writers for different assets never contend.
type Store struct {
	redis *redis.Client
}

// NewStore creates a history store.
func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient}
}

func historyKey(assetID string) string {
	return fmt.Sprintf("edit:history:%s", assetID)
}

func versionsKey(assetID string) string {
	return fmt.Sprintf("edit:versions:%s", assetID)
}

// History returns the applied cuts for an asset, oldest first.
func (s *Store) History(ctx context.Context, assetID string) ([]model.EditHistoryEntry, error) {
	raw, err := s.redis.LRange(ctx, historyKey(assetID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	entries := make([]model.EditHistoryEntry, 0, len(raw))
	for _, r := range raw {
		var e model.EditHistoryEntry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("failed to decode history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// AppendHistory records applied cuts. Only the newest MaxHistory entries are kept.
func (s *Store) AppendHistory(ctx context.Context, assetID string, entries []model.EditHistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		e.AssetID = assetID
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		values = append(values, data)
	}

	key := historyKey(assetID)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, -MaxHistory, -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// SaveVersion pushes a snapshot to the front of the asset's ring and evicts
// beyond MaxVersions. ID and CreatedAt are filled when empty.
func (s *Store) SaveVersion(ctx context.Context, v *model.EditVersion) error {
	if v.AssetID == "" {
		return errors.New("version requires an asset id")
	}
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	key := versionsKey(v.AssetID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, MaxVersions-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save version: %w", err)
	}
	return nil
}

// Versions returns the asset's snapshots, newest first.
func (s *Store) Versions(ctx context.Context, assetID string) ([]model.EditVersion, error) {
	raw, err := s.redis.LRange(ctx, versionsKey(assetID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read versions: %w", err)
	}

	versions := make([]model.EditVersion, 0, len(raw))
	for _, r := range raw {
		var v model.EditVersion
		if err := json.Unmarshal([]byte(r), &v); err != nil {
			return nil, fmt.Errorf("failed to decode version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, nil
}

// Version looks up one snapshot.
func (s *Store) Version(ctx context.Context, assetID, versionID string) (*model.EditVersion, error) {
	versions, err := s.Versions(ctx, assetID)
	if err != nil {
		return nil, err
	}
	for i := range versions {
		if versions[i].ID == versionID {
			return &versions[i], nil
		}
	}
	return nil, ErrVersionNotFound
}

// HasRenderedRef reports whether any snapshot already points at ref.
func (s *Store) HasRenderedRef(ctx context.Context, assetID, ref string) (bool, error) {
	versions, err := s.Versions(ctx, assetID)
	if err != nil {
		return false, err
	}
	for _, v := range versions {
		if v.RenderedRef == ref {
			return true, nil
		}
	}
	return false, nil
}

// RaiseRenderedRef moves the snapshot pointing at ref to the front of the
// ring, so the next MaxVersions-1 saves cannot evict it. It reports whether
// such a snapshot exists.
func (s *Store) RaiseRenderedRef(ctx context.Context, assetID, ref string) (bool, error) {
	key := versionsKey(assetID)
	var found bool

	txf := func(tx *redis.Tx) error {
		found = false
		raw, err := tx.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return err
		}
		for i, r := range raw {
			var v model.EditVersion
			if err := json.Unmarshal([]byte(r), &v); err != nil {
				return fmt.Errorf("failed to decode version: %w", err)
			}
			if v.RenderedRef != ref {
				continue
			}
			found = true
			if i == 0 {
				return nil
			}
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.LRem(ctx, key, 1, r)
				pipe.LPush(ctx, key, r)
				return nil
			})
			return err
		}
		return nil
	}

	for i := 0; i < maxTxAttempts; i++ {
		err := s.redis.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("failed to raise version: %w", err)
		}
		return found, nil
	}
	return false, fmt.Errorf("versions of %s: too much contention", assetID)
}
