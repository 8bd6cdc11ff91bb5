package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/pkg/logging"
	"github.com/rushteam/movierec/pkg/title"
)

// cacheFailureThreshold 连续失败次数达到后熔断，熔断期间直接走引擎。
const cacheFailureThreshold = 5

// resultCache 把推荐结果以 JSON 存入 core.Store。
// 快照在进程内不变，同一组归一化参数的结果在 TTL 内始终有效。
// 后端（Redis）不可用时由熔断器短路，请求不会被缓存拖慢。
type resultCache struct {
	store  core.Store
	ttl    int // 秒，<= 0 不过期
	prefix string
	cb     *gobreaker.CircuitBreaker[[]byte]
}

func newResultCache(s core.Store, ttl time.Duration) *resultCache {
	if s == nil {
		return nil
	}
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "result-cache:" + s.Name(),
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cacheFailureThreshold
		},
		// key 不存在是正常的未命中
		IsSuccessful: func(err error) bool {
			return err == nil || core.IsStoreNotFound(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("cache breaker state changed")
		},
	})
	return &resultCache{store: s, ttl: int(ttl / time.Second), prefix: "movierec:rec:", cb: cb}
}

// key 由归一化种子、条数与去重排序后的归一化排除片名组成。
func (c *resultCache) key(seed string, n int, exclude []string) string {
	set := make(map[string]struct{}, len(exclude))
	for _, t := range exclude {
		if nt := title.Normalize(t); nt != "" {
			set[nt] = struct{}{}
		}
	}
	excl := make([]string, 0, len(set))
	for t := range set {
		excl = append(excl, t)
	}
	sort.Strings(excl)

	h := sha256.New()
	h.Write([]byte(title.Normalize(seed)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(n)))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(excl, "\x1f")))
	return c.prefix + hex.EncodeToString(h.Sum(nil))
}

func (c *resultCache) get(ctx context.Context, key string) ([]core.RecommendationRecord, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.cb.Execute(func() ([]byte, error) {
		return c.store.Get(ctx, key)
	})
	if err != nil {
		if core.IsStoreNotFound(err) {
			RecommendCacheTotal.WithLabelValues("miss").Inc()
		} else {
			RecommendCacheTotal.WithLabelValues("error").Inc()
			logging.Ctx(ctx).Warn().Err(err).Str("store", c.store.Name()).Msg("cache get failed")
		}
		return nil, false
	}
	var recs []core.RecommendationRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		RecommendCacheTotal.WithLabelValues("error").Inc()
		logging.Ctx(ctx).Warn().Err(err).Msg("cache entry corrupt")
		return nil, false
	}
	RecommendCacheTotal.WithLabelValues("hit").Inc()
	return recs, true
}

func (c *resultCache) set(ctx context.Context, key string, recs []core.RecommendationRecord) {
	if c == nil {
		return
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return
	}
	_, err = c.cb.Execute(func() ([]byte, error) {
		return nil, c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("store", c.store.Name()).Msg("cache set failed")
	}
}
