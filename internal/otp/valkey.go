package otp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	valkeylib "github.com/valkey-io/valkey-go"
)

const defaultConnectTimeout = 5 * time.Second

// INCR и PEXPIRE одним скриптом: счетчик не останется без TTL
var incrScript = valkeylib.NewLuaScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// ValkeyConfig - параметры подключения к Valkey
type ValkeyConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
}

// ValkeyStore хранит коды в Valkey (SET ... EX), подходит для нескольких инстансов API
type ValkeyStore struct {
	client valkeylib.Client
	prefix string
}

// NewValkeyStore подключается и пингует сервер. Close() - на вызывающем.
func NewValkeyStore(cfg ValkeyConfig) (*ValkeyStore, error) {
	opts := valkeylib.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	client, err := valkeylib.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping valkey: %w", err)
	}

	return NewValkeyStoreWithClient(client, cfg.KeyPrefix), nil
}

// NewValkeyStoreWithClient оборачивает уже созданный клиент
func NewValkeyStoreWithClient(client valkeylib.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "milk"
	}
	return &ValkeyStore{client: client, prefix: prefix + ":"}
}

func (s *ValkeyStore) fullKey(key string) string {
	return s.prefix + key
}

func (s *ValkeyStore) Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal otp: %w", err)
	}

	cmd := s.client.B().Set().
		Key(s.fullKey(key)).
		Value(string(data)).
		Ex(ttl).
		Build()

	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to save otp: %w", err)
	}
	return nil
}

func (s *ValkeyStore) Get(ctx context.Context, key string) (*Entry, error) {
	cmd := s.client.B().Get().Key(s.fullKey(key)).Build()

	data, err := s.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkeylib.IsValkeyNil(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get otp: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal otp: %w", err)
	}
	return &entry, nil
}

func (s *ValkeyStore) Delete(ctx context.Context, key string) error {
	cmd := s.client.B().Del().Key(s.fullKey(key)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to delete otp: %w", err)
	}
	return nil
}

func (s *ValkeyStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ms := ttl.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	n, err := incrScript.Exec(ctx, s.client, []string{s.fullKey(key)}, []string{strconv.FormatInt(ms, 10)}).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("failed to increment otp counter: %w", err)
	}
	return n, nil
}

// Ping - для /health
func (s *ValkeyStore) Ping(ctx context.Context) error {
	return s.client.Do(ctx, s.client.B().Ping().Build()).Error()
}

func (s *ValkeyStore) Close() {
	s.client.Close()
}
