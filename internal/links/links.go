package links

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"server/internal/domain"
)

const tokenPrefix = "dl:"

// Service issues short-lived download links for stored assets. A link is an
// opaque token mapped in Redis onto the owning user and storage path; the
// token expires with its TTL and is useless afterwards.
type Service struct {
	rdb     *redis.Client
	baseURL string
	ttl     time.Duration
}

type tokenPayload struct {
	UserID string `json:"user_id"`
	Path   string `json:"path"`
}

// New wires a link service. baseURL is the externally reachable API origin.
func New(rdb *redis.Client, baseURL string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Service{
		rdb:     rdb,
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
	}
}

// Issue mints a download URL for the given storage path.
func (s *Service) Issue(ctx context.Context, userID, path string) (string, error) {
	payload, err := json.Marshal(tokenPayload{UserID: userID, Path: path})
	if err != nil {
		return "", fmt.Errorf("links: encode payload: %w", err)
	}
	token := uuid.NewString()
	if err := s.rdb.Set(ctx, tokenPrefix+token, payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("links: store token: %w", err)
	}
	return fmt.Sprintf("%s/v1/files/%s", s.baseURL, token), nil
}

// Resolve maps a token back onto its storage path. Expired or unknown tokens
// report domain.ErrNotFound.
func (s *Service) Resolve(ctx context.Context, token string) (userID, path string, err error) {
	raw, err := s.rdb.Get(ctx, tokenPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", "", domain.ErrNotFound
		}
		return "", "", fmt.Errorf("links: load token: %w", err)
	}
	var payload tokenPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", "", fmt.Errorf("links: decode payload: %w", err)
	}
	return payload.UserID, payload.Path, nil
}
