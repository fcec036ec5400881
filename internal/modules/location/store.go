// README: Device state stores; Redis hash per user in production, in-process map for tests and single-node runs.
package location

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pickleheart/internal/types"
)

// DeviceStore keeps the last permission report and sample per user.
type DeviceStore interface {
	Get(ctx context.Context, userID types.ID) (DeviceState, error)
	SetPermission(ctx context.Context, userID types.ID, perm Permission, capable bool, at time.Time) error
	SetLastSample(ctx context.Context, s Sample) error
}

// unknownState is returned for users the store has never heard from.
func unknownState(userID types.ID) DeviceState {
	return DeviceState{UserID: userID, Permission: PermissionUnknown}
}

type MemoryDeviceStore struct {
	mu     sync.RWMutex
	states map[types.ID]DeviceState
}

func NewMemoryDeviceStore() *MemoryDeviceStore {
	return &MemoryDeviceStore{states: make(map[types.ID]DeviceState)}
}

func (s *MemoryDeviceStore) Get(_ context.Context, userID types.ID) (DeviceState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[userID]
	if !ok {
		return unknownState(userID), nil
	}
	if st.LastSample != nil {
		cp := *st.LastSample
		st.LastSample = &cp
	}
	return st, nil
}

func (s *MemoryDeviceStore) SetPermission(_ context.Context, userID types.ID, perm Permission, capable bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[userID]
	if !ok {
		st = unknownState(userID)
	}
	st.Permission = perm
	st.Capable = capable
	st.UpdatedAt = at
	s.states[userID] = st
	return nil
}

func (s *MemoryDeviceStore) SetLastSample(_ context.Context, sample Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[sample.UserID]
	if !ok {
		st = unknownState(sample.UserID)
	}
	cp := sample
	st.LastSample = &cp
	// a device that sends fixes can geolocate
	st.Capable = true
	st.UpdatedAt = sample.RecordedAt
	s.states[sample.UserID] = st
	return nil
}

const (
	deviceKeyPrefix = "device:"
	deviceTTL       = 24 * time.Hour
)

// RedisDeviceStore stores one hash per user: capable, permission, sample, updated_at.
type RedisDeviceStore struct {
	redis *redis.Client
}

func NewRedisDeviceStore(client *redis.Client) *RedisDeviceStore {
	return &RedisDeviceStore{redis: client}
}

func deviceKey(userID types.ID) string {
	return deviceKeyPrefix + string(userID)
}

func (s *RedisDeviceStore) Get(ctx context.Context, userID types.ID) (DeviceState, error) {
	fields, err := s.redis.HGetAll(ctx, deviceKey(userID)).Result()
	if err != nil {
		return DeviceState{}, fmt.Errorf("device state %s: %w", userID, err)
	}
	st := unknownState(userID)
	if len(fields) == 0 {
		return st, nil
	}
	if v, ok := fields["permission"]; ok && Permission(v).Valid() {
		st.Permission = Permission(v)
	}
	st.Capable = fields["capable"] == "1"
	if v, ok := fields["updated_at"]; ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			st.UpdatedAt = time.UnixMilli(ms).UTC()
		}
	}
	if raw, ok := fields["sample"]; ok && raw != "" {
		var sample Sample
		if err := json.Unmarshal([]byte(raw), &sample); err != nil {
			return DeviceState{}, fmt.Errorf("decode sample for %s: %w", userID, err)
		}
		st.LastSample = &sample
	}
	return st, nil
}

func (s *RedisDeviceStore) SetPermission(ctx context.Context, userID types.ID, perm Permission, capable bool, at time.Time) error {
	if !perm.Valid() {
		return ErrBadRequest
	}
	key := deviceKey(userID)
	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, key,
		"permission", string(perm),
		"capable", boolFlag(capable),
		"updated_at", at.UnixMilli(),
	)
	pipe.Expire(ctx, key, deviceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set permission %s: %w", userID, err)
	}
	return nil
}

func (s *RedisDeviceStore) SetLastSample(ctx context.Context, sample Sample) error {
	raw, err := json.Marshal(sample)
	if err != nil {
		return err
	}
	key := deviceKey(sample.UserID)
	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, key,
		"sample", string(raw),
		"capable", "1",
		"updated_at", sample.RecordedAt.UnixMilli(),
	)
	pipe.Expire(ctx, key, deviceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set sample %s: %w", sample.UserID, err)
	}
	return nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
