package redis

import goredis "github.com/redis/go-redis/v9"

// registerScript creates a non-host user unless it exists and returns
// {is_host, created}.
// KEYS: [1]=users hash, [2]=user order list. ARGV: [1]=username
var registerScript = goredis.NewScript(`
local existing = redis.call('HGET', KEYS[1], ARGV[1])
if existing then
	return {existing, 0}
end
redis.call('HSET', KEYS[1], ARGV[1], '0')
redis.call('RPUSH', KEYS[2], ARGV[1])
return {'0', 1}
`)

// incrementVoteScript adds one vote to an existing option and returns
// {found, option1, votes1, option2, votes2, ...} in poll order.
// KEYS: [1]=poll hash, [2]=poll order list. ARGV: [1]=option
var incrementVoteScript = goredis.NewScript(`
local found = '0'
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 then
	redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
	found = '1'
end
local out = {found}
for _, field in ipairs(redis.call('LRANGE', KEYS[2], 0, -1)) do
	out[#out + 1] = field
	out[#out + 1] = redis.call('HGET', KEYS[1], field) or '0'
end
return out
`)

// likeScript adds username to the stream's liker set, appending to the
// ordered list only on first like, and returns the ordered list.
// KEYS: [1]=liker set, [2]=liker list, [3]=stream index set. ARGV: [1]=username, [2]=stream id
var likeScript = goredis.NewScript(`
if redis.call('SADD', KEYS[1], ARGV[1]) == 1 then
	redis.call('RPUSH', KEYS[2], ARGV[1])
	redis.call('SADD', KEYS[3], ARGV[2])
end
return redis.call('LRANGE', KEYS[2], 0, -1)
`)

// orderedHashScript reads a hash in the order kept by a companion list and
// returns {field1, value1, field2, value2, ...}.
// KEYS: [1]=hash, [2]=order list
var orderedHashScript = goredis.NewScript(`
local fields = redis.call('LRANGE', KEYS[2], 0, -1)
local out = {}
for _, field in ipairs(fields) do
	out[#out + 1] = field
	out[#out + 1] = redis.call('HGET', KEYS[1], field) or '0'
end
return out
`)
