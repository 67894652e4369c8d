//go:build integration

// Package dbassert reads cache entries straight from the backing databases so
// tests can check what the stores actually persisted.
package dbassert

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// PostgreSQLKeys lists cache_entries keys starting with prefix.
func PostgreSQLKeys(t *testing.T, ctx context.Context, pool *pgxpool.Pool, prefix string) []string {
	t.Helper()
	rows, err := pool.Query(ctx, `SELECT key FROM cache_entries WHERE starts_with(key, $1) ORDER BY key`, prefix)
	require.NoError(t, err)
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	require.NoError(t, err)
	return keys
}

// MongoDBKeys lists document ids in collection starting with prefix.
func MongoDBKeys(t *testing.T, ctx context.Context, collection *mongo.Collection, prefix string) []string {
	t.Helper()
	cursor, err := collection.Find(ctx, bson.D{})
	require.NoError(t, err)
	defer cursor.Close(ctx)

	var keys []string
	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		require.NoError(t, cursor.Decode(&doc))
		if strings.HasPrefix(doc.ID, prefix) {
			keys = append(keys, doc.ID)
		}
	}
	require.NoError(t, cursor.Err())
	sort.Strings(keys)
	return keys
}

// RedisKeys lists keys starting with prefix.
func RedisKeys(t *testing.T, ctx context.Context, client *redis.Client, prefix string) []string {
	t.Helper()
	var keys []string
	iter := client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	require.NoError(t, iter.Err())
	sort.Strings(keys)
	return keys
}
