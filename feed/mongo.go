package feed

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rushteam/movierec/core"
)

// MongoConfig 描述 MongoDB 数据源。
type MongoConfig struct {
	URI               string `koanf:"uri"`
	Database          string `koanf:"database"`
	MoviesCollection  string `koanf:"movies_collection"`
	RatingsCollection string `koanf:"ratings_collection"`
}

// MongoFeed 从 MongoDB 读取目录与评分。
//
// 文档格式：
//   - movies:  {movieId, title, genres: [..] | "A|B", overview, posterPath | posterUrl,
//     externalData: {overview, posterUrl}}
//   - ratings: {userId, movieId, rating}
//
// 两个集合都按 _id 升序读取，即插入顺序。
type MongoFeed struct {
	client  *mongo.Client
	movies  *mongo.Collection
	ratings *mongo.Collection
	name    string
}

// OpenMongo 连接 MongoDB 并执行一次 Ping。
func OpenMongo(ctx context.Context, cfg MongoConfig) (*MongoFeed, error) {
	if cfg.URI == "" || cfg.Database == "" {
		return nil, core.NewDomainError(core.ModuleFeed, core.ErrorCodeInvalidInput, "mongo feed requires uri and database")
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleFeed, core.ErrorCodeUnavailable, err, "mongo connect")
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background()) //nolint:errcheck
		return nil, core.WrapDomainError(core.ModuleFeed, core.ErrorCodeUnavailable, err, "mongo ping")
	}
	return NewMongoFeed(client, cfg), nil
}

// NewMongoFeed 基于已连接的客户端创建数据源。
func NewMongoFeed(client *mongo.Client, cfg MongoConfig) *MongoFeed {
	moviesColl := cfg.MoviesCollection
	if moviesColl == "" {
		moviesColl = "movies"
	}
	ratingsColl := cfg.RatingsCollection
	if ratingsColl == "" {
		ratingsColl = "ratings"
	}
	db := client.Database(cfg.Database)
	return &MongoFeed{
		client:  client,
		movies:  db.Collection(moviesColl),
		ratings: db.Collection(ratingsColl),
		name:    "mongo:" + cfg.Database,
	}
}

func (f *MongoFeed) Name() string { return f.name }

func (f *MongoFeed) Movies(ctx context.Context) ([]core.RawMovie, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := f.movies.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleFeed, core.ErrorCodeUnavailable, err, "find movies")
	}
	defer cur.Close(ctx)

	var out []core.RawMovie
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, core.WrapDomainError(core.ModuleFeed, core.ErrorCodeSchema, err, "decode movie %d", len(out))
		}
		out = append(out, movieFromDoc(doc))
	}
	if err := cur.Err(); err != nil {
		return nil, core.WrapDomainError(core.ModuleFeed, core.ErrorCodeUnavailable, err, "iterate movies")
	}
	return out, nil
}

func (f *MongoFeed) Ratings(ctx context.Context) ([]core.RawRating, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.D{{Key: "userId", Value: 1}, {Key: "movieId", Value: 1}, {Key: "rating", Value: 1}})
	cur, err := f.ratings.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleFeed, core.ErrorCodeUnavailable, err, "find ratings")
	}
	defer cur.Close(ctx)

	var out []core.RawRating
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, core.WrapDomainError(core.ModuleFeed, core.ErrorCodeSchema, err, "decode rating %d", len(out))
		}
		out = append(out, core.RawRating{
			UserID:  doc["userId"],
			MovieID: doc["movieId"],
			Rating:  doc["rating"],
		})
	}
	if err := cur.Err(); err != nil {
		return nil, core.WrapDomainError(core.ModuleFeed, core.ErrorCodeUnavailable, err, "iterate ratings")
	}
	return out, nil
}

func (f *MongoFeed) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return f.client.Disconnect(ctx)
}

// movieFromDoc 把 movies 文档映射为 RawMovie，顶层字段优先于 externalData。
func movieFromDoc(doc bson.M) core.RawMovie {
	ext := subDocument(doc["externalData"])
	return core.RawMovie{
		ID:         doc["movieId"],
		Title:      doc["title"],
		Genres:     plainValue(doc["genres"]),
		Overview:   firstPresent(doc["overview"], ext["overview"]),
		PosterPath: firstPresent(doc["posterPath"], doc["posterUrl"], ext["posterUrl"]),
	}
}

func subDocument(v any) bson.M {
	switch d := v.(type) {
	case bson.M:
		return d
	case map[string]any:
		return d
	case primitive.D:
		m := make(bson.M, len(d))
		for _, e := range d {
			m[e.Key] = e.Value
		}
		return m
	default:
		return nil
	}
}

// plainValue 把 BSON 数组转为 []any，其余值原样返回。
func plainValue(v any) any {
	if arr, ok := v.(primitive.A); ok {
		return []any(arr)
	}
	return v
}

func firstPresent(vals ...any) any {
	for _, v := range vals {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		return v
	}
	return nil
}

var _ Source = (*MongoFeed)(nil)
