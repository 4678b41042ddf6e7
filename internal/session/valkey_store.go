package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"
)

const valkeyKeyPrefix = "transportco2:session:"

// maxSwapAttempts bounds optimistic retries in Mutate.
const maxSwapAttempts = 8

// swapScript replaces KEYS[1] with ARGV[2] (PX ARGV[3]) only while it still
// holds ARGV[1].
var swapScript = valkey.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0
`)

// keyValue is the subset of Valkey commands the store needs.
type keyValue interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	// CompareAndSwap writes value only if key still holds old.
	CompareAndSwap(ctx context.Context, key string, old, value []byte, ttl time.Duration) (bool, error)
}

// errKeyMissing is returned by keyValue.Get for absent keys.
var errKeyMissing = errors.New("key missing")

// ValkeyStore keeps sessions as JSON blobs that Valkey expires on its own.
type ValkeyStore struct {
	kv  keyValue
	now func() time.Time
}

// NewValkeyStore connects to Valkey at addr.
func NewValkeyStore(addr string) (*ValkeyStore, func(), error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("valkey connect: %w", err)
	}
	return newValkeyStore(&valkeyKV{client: client}), client.Close, nil
}

func newValkeyStore(kv keyValue) *ValkeyStore {
	return &ValkeyStore{kv: kv, now: time.Now}
}

// Create stores a new session with a TTL matching its expiry.
func (v *ValkeyStore) Create(ctx context.Context, s *Session) error {
	if _, err := v.kv.Get(ctx, valkeyKey(s.ID)); err == nil {
		return ErrAlreadyExists
	} else if !errors.Is(err, errKeyMissing) {
		return fmt.Errorf("checking session: %w", err)
	}
	return v.write(ctx, s)
}

// Get loads a session.
func (v *ValkeyStore) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := v.kv.Get(ctx, valkeyKey(id))
	if err != nil {
		if errors.Is(err, errKeyMissing) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	if s.IsExpired(v.now()) {
		return nil, ErrNotFound
	}
	if s.Trips == nil {
		s.Trips = []Trip{}
	}
	return &s, nil
}

// Update replaces an existing session, keeping its original expiry.
func (v *ValkeyStore) Update(ctx context.Context, s *Session) error {
	if _, err := v.Get(ctx, s.ID); err != nil {
		return err
	}
	c := s.Clone()
	c.UpdatedAt = v.now().UTC()
	return v.write(ctx, c)
}

// Mutate applies fn and writes the result back only if no other writer
// replaced the session in between, retrying a bounded number of times.
func (v *ValkeyStore) Mutate(ctx context.Context, id string, fn func(s *Session) error) (*Session, error) {
	key := valkeyKey(id)
	for attempt := 0; attempt < maxSwapAttempts; attempt++ {
		raw, err := v.kv.Get(ctx, key)
		if err != nil {
			if errors.Is(err, errKeyMissing) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("loading session: %w", err)
		}

		var s Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decoding session: %w", err)
		}
		now := v.now()
		if s.IsExpired(now) {
			return nil, ErrNotFound
		}
		if s.Trips == nil {
			s.Trips = []Trip{}
		}
		if err := fn(&s); err != nil {
			return nil, err
		}
		s.ID = id
		s.UpdatedAt = now.UTC()

		next, err := json.Marshal(&s)
		if err != nil {
			return nil, fmt.Errorf("encoding session: %w", err)
		}
		swapped, err := v.kv.CompareAndSwap(ctx, key, raw, next, s.ExpiresAt.Sub(now))
		if err != nil {
			return nil, fmt.Errorf("storing session: %w", err)
		}
		if swapped {
			return &s, nil
		}
	}
	return nil, ErrConflict
}

// Delete removes a session.
func (v *ValkeyStore) Delete(ctx context.Context, id string) error {
	if err := v.kv.Del(ctx, valkeyKey(id)); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op: Valkey evicts keys when their TTL elapses.
func (v *ValkeyStore) DeleteExpired(context.Context) (int, error) {
	return 0, nil
}

// Ping checks that Valkey answers.
func (v *ValkeyStore) Ping(ctx context.Context) error {
	return v.kv.Ping(ctx)
}

func (v *ValkeyStore) write(ctx context.Context, s *Session) error {
	ttl := s.ExpiresAt.Sub(v.now())
	if ttl <= 0 {
		return ErrNotFound
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := v.kv.Set(ctx, valkeyKey(s.ID), raw, ttl); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	return nil
}

func valkeyKey(id string) string {
	return valkeyKeyPrefix + id
}

// valkeyKV adapts a valkey.Client to keyValue.
type valkeyKV struct {
	client valkey.Client
}

func (k *valkeyKV) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := k.client.Do(ctx, k.client.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, errKeyMissing
		}
		return nil, err
	}
	return b, nil
}

func (k *valkeyKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return k.client.Do(ctx, k.client.B().Set().Key(key).Value(string(value)).Ex(ttl).Build()).Error()
}

func (k *valkeyKV) Del(ctx context.Context, key string) error {
	return k.client.Do(ctx, k.client.B().Del().Key(key).Build()).Error()
}

func (k *valkeyKV) Ping(ctx context.Context) error {
	return k.client.Do(ctx, k.client.B().Ping().Build()).Error()
}

func (k *valkeyKV) CompareAndSwap(ctx context.Context, key string, old, value []byte, ttl time.Duration) (bool, error) {
	ms := ttl.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	n, err := swapScript.Exec(ctx, k.client, []string{key},
		[]string{string(old), string(value), strconv.FormatInt(ms, 10)}).AsInt64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
