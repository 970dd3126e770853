package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunScript(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewFromUniversal(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	defer client.Close()

	require.NoError(t, client.LoadScriptFromContent("incr_by", `return redis.call('incrby', KEYS[1], ARGV[1])`))

	ctx := context.Background()
	res, err := client.RunScript(ctx, "incr_by", []string{"counter"}, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), res)

	res, err = client.RunScript(ctx, "incr_by", []string{"counter"}, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(7), res)

	_, err = client.RunScript(ctx, "missing", nil)
	assert.ErrorContains(t, err, "not loaded")

	assert.Error(t, client.LoadScriptFromContent("empty", "  "))
}
