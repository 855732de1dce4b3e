package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hoony8355/searcap/internal/models"
)

// Cache keeps short-lived dedup and block flags in Redis. Every method is
// nil-safe and degrades to a no-op when Redis is unreachable: losing dedup
// must never fail a capture run.
type Cache struct {
	rdb      *redis.Client
	seenTTL  time.Duration
	blockTTL time.Duration
	logger   *slog.Logger
}

type Config struct {
	Addr     string
	Password string
	DB       int
	SeenTTL  time.Duration
	BlockTTL time.Duration
}

// New returns nil when no address is configured; a nil *Cache is valid and
// inert.
func New(cfg Config) *Cache {
	if cfg.Addr == "" {
		return nil
	}

	c := &Cache{
		rdb: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		seenTTL:  cfg.SeenTTL,
		blockTTL: cfg.BlockTTL,
		logger:   slog.Default().With("component", "cache"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		c.logger.Warn("redis unreachable, dedup disabled", "addr", cfg.Addr, "error", err)
	}

	return c
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

// SeenRecently reports whether this section was already captured within the
// seen TTL.
func (c *Cache) SeenRecently(ctx context.Context, surface models.Surface, keyword string, kind models.SectionKind) bool {
	if c == nil {
		return false
	}

	n, err := c.rdb.Exists(ctx, seenKey(surface, keyword, kind)).Result()
	if err != nil {
		c.logger.Warn("seen lookup failed", "error", err)
		return false
	}
	return n > 0
}

// MarkSeen flags a section as captured for the seen TTL.
func (c *Cache) MarkSeen(ctx context.Context, surface models.Surface, keyword string, kind models.SectionKind) {
	if c == nil {
		return
	}

	if err := c.rdb.Set(ctx, seenKey(surface, keyword, kind), 1, c.seenTTL).Err(); err != nil {
		c.logger.Warn("failed to mark seen", "error", err)
	}
}

// IsBlocked reports whether the surface is under an abuse-detection block.
func (c *Cache) IsBlocked(ctx context.Context, surface models.Surface) bool {
	if c == nil {
		return false
	}

	n, err := c.rdb.Exists(ctx, blockKey(surface)).Result()
	if err != nil {
		c.logger.Warn("block lookup failed", "error", err)
		return false
	}
	return n > 0
}

// MarkBlocked pauses a surface for the block TTL after Naver serves its
// abuse interstitial.
func (c *Cache) MarkBlocked(ctx context.Context, surface models.Surface) {
	if c == nil {
		return
	}

	if err := c.rdb.Set(ctx, blockKey(surface), 1, c.blockTTL).Err(); err != nil {
		c.logger.Warn("failed to mark blocked", "error", err)
	}
}

func seenKey(surface models.Surface, keyword string, kind models.SectionKind) string {
	return fmt.Sprintf("searcap:seen:%s:%s:%s", surface, kind, keyword)
}

func blockKey(surface models.Surface) string {
	return fmt.Sprintf("searcap:blocked:%s", surface)
}
