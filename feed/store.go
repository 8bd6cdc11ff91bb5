package feed

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/rushteam/movierec/core"
)

// StoreFeed 从 core.Store（Memory / Redis）读取目录与评分。
//
// 存储格式（JSON 数组，顺序即数据源顺序）：
//   - {KeyPrefix}:movies  → [{"movie_id":1,"title":"...","genres":"A|B","overview":"...","poster_path":"..."}]
//   - {KeyPrefix}:ratings → [{"user_id":1,"movie_id":1,"rating":4.5}]
type StoreFeed struct {
	store core.Store

	// KeyPrefix 是存储 key 的前缀，默认 "movierec"
	KeyPrefix string
}

// NewStoreFeed 创建一个基于 core.Store 的数据源。
func NewStoreFeed(s core.Store, keyPrefix string) *StoreFeed {
	if keyPrefix == "" {
		keyPrefix = "movierec"
	}
	return &StoreFeed{store: s, KeyPrefix: keyPrefix}
}

func (f *StoreFeed) Name() string { return "store:" + f.store.Name() }

func (f *StoreFeed) moviesKey() string  { return f.KeyPrefix + ":movies" }
func (f *StoreFeed) ratingsKey() string { return f.KeyPrefix + ":ratings" }

func (f *StoreFeed) Movies(ctx context.Context) ([]core.RawMovie, error) {
	var out []core.RawMovie
	if err := f.load(ctx, f.moviesKey(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *StoreFeed) Ratings(ctx context.Context) ([]core.RawRating, error) {
	var out []core.RawRating
	if err := f.load(ctx, f.ratingsKey(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *StoreFeed) load(ctx context.Context, key string, dst any) error {
	data, err := f.store.Get(ctx, key)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return core.WrapDomainError(core.ModuleFeed, core.ErrorCodeNotFound, err, "feed key %s", key)
		}
		return core.WrapDomainError(core.ModuleFeed, core.ErrorCodeUnavailable, err, "read %s from %s", key, f.store.Name())
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	// 保留数字原文，id 不经 float64 中转
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return core.WrapDomainError(core.ModuleFeed, core.ErrorCodeSchema, err, "decode %s", key)
	}
	return nil
}

func (f *StoreFeed) Close() error { return f.store.Close() }

// SeedStore 把目录与评分写入 Store，供 StoreFeed 读取（导入工具与测试使用）。
func SeedStore(ctx context.Context, f *StoreFeed, movies []core.RawMovie, ratings []core.RawRating) error {
	moviesData, err := json.Marshal(movies)
	if err != nil {
		return fmt.Errorf("encode movies: %w", err)
	}
	ratingsData, err := json.Marshal(ratings)
	if err != nil {
		return fmt.Errorf("encode ratings: %w", err)
	}
	return f.store.BatchSet(ctx, map[string][]byte{
		f.moviesKey():  moviesData,
		f.ratingsKey(): ratingsData,
	})
}

var _ Source = (*StoreFeed)(nil)
