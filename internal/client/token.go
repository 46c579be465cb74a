package client

import "context"

// TokenKey is where the admin secret is persisted.
const TokenKey = "admin_token"

// TokenStore persists the admin secret used as bearer token.
type TokenStore interface {
	Token(ctx context.Context) (string, bool, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// KV is a byte-oriented key-value store (Redis, memory, file).
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// KVTokenStore keeps the secret verbatim under TokenKey.
type KVTokenStore struct {
	kv KV
}

func NewKVTokenStore(kv KV) *KVTokenStore {
	return &KVTokenStore{kv: kv}
}

func (s *KVTokenStore) Token(ctx context.Context) (string, bool, error) {
	raw, ok, err := s.kv.Get(ctx, TokenKey)
	if err != nil || !ok || len(raw) == 0 {
		return "", false, err
	}
	return string(raw), true, nil
}

func (s *KVTokenStore) SetToken(ctx context.Context, token string) error {
	return s.kv.Set(ctx, TokenKey, []byte(token))
}

func (s *KVTokenStore) ClearToken(ctx context.Context) error {
	return s.kv.Delete(ctx, TokenKey)
}
