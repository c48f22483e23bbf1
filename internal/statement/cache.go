package statement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheVersionKey = "statement:version"
	bumpChannel     = "statement.bump"
)

// Cache versions generated statements in Redis. New event data bumps the
// global version, which shifts every key and orphans stale entries instead
// of deleting them. A nil client degrades to pass-through.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	if ver <= 0 {
		ver = 1
		if err := c.client.Set(ctx, cacheVersionKey, ver, 0).Err(); err != nil {
			return 0, err
		}
	}
	return ver, nil
}

// BuildKey composes a cache key suffixed with the current version.
func (c *Cache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	if c == nil || c.client == nil {
		return strings.Join(parts, ":"), nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", strings.Join(parts, ":"), ver), nil
}

// FetchJSON loads a cached value or populates it through the loader.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	if loader == nil {
		return errors.New("statement: cache loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, dest)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if err != redis.Nil {
		return err
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates every cached statement by incrementing the version and
// notifying other instances.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, bumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation subscribes to version bump notifications so that a
// bump on one instance shifts keys everywhere.
func (c *Cache) ListenForInvalidation(ctx context.Context, channel string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if channel == "" {
		channel = bumpChannel
	}
	pubsub := c.client.Subscribe(ctx, channel)
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload != "" {
					if ver, err := strconv.ParseInt(msg.Payload, 10, 64); err == nil {
						_ = c.client.Set(ctx, cacheVersionKey, ver, 0).Err()
						continue
					}
				}
				_ = c.client.Incr(ctx, cacheVersionKey).Err()
			}
		}
	}()
	return nil
}

// statementKey identifies one generation scope. Facility IDs arrive sorted
// from the resolver, so the key is stable for a given scope. The requested
// facility is part of the key: province resolution expands from that anchor,
// so two requests with identical accessible sets but different anchors can
// still aggregate different facilities.
func statementKey(req GenerateRequest, facilityIDs []int64) []string {
	ids := make([]string, len(facilityIDs))
	for i, id := range facilityIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	parts := []string{
		"statement",
		req.StatementCode,
		strconv.FormatInt(req.ProjectID, 10),
		strconv.FormatInt(req.ReportingPeriodID, 10),
		string(req.Level),
		strings.Join(ids, ","),
	}
	if req.FacilityID != nil {
		parts = append(parts, strconv.FormatInt(*req.FacilityID, 10))
	}
	return parts
}

// CachedStatement serves Generate through the versioned cache.
func (s *Service) CachedStatement(ctx context.Context, cache *Cache, req GenerateRequest) (FinancialStatementResponse, error) {
	scope := statementScopeIDs(req)
	key, err := cache.BuildKey(ctx, statementKey(req, scope)...)
	if err != nil {
		return FinancialStatementResponse{}, err
	}
	var resp FinancialStatementResponse
	err = cache.FetchJSON(ctx, key, &resp, func(ctx context.Context) (interface{}, error) {
		return s.Generate(ctx, req)
	})
	return resp, err
}

// CachedService pairs a service with its cache so transports can depend on
// the plain Generate contract while still hitting Redis first.
type CachedService struct {
	Service *Service
	Cache   *Cache
}

// Generate serves the comparative statements through the cache.
func (c CachedService) Generate(ctx context.Context, req GenerateRequest) (FinancialStatementResponse, error) {
	return c.Service.CachedStatement(ctx, c.Cache, req)
}

// GenerateBudgetVsActual bypasses the cache. Budget comparisons aggregate a
// single period without carryforward lookups, so regeneration is cheap.
func (c CachedService) GenerateBudgetVsActual(ctx context.Context, req GenerateRequest) (BudgetVsActualStatement, error) {
	return c.Service.GenerateBudgetVsActual(ctx, req)
}

// statementScopeIDs approximates the resolved scope for key construction
// before resolution has run. The accessible set is already the upper bound
// of whatever the resolver returns.
func statementScopeIDs(req GenerateRequest) []int64 {
	if req.Level == "FACILITY" && req.FacilityID != nil {
		return []int64{*req.FacilityID}
	}
	ids := append([]int64(nil), req.AccessibleFacilityIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
