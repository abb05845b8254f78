// Package redisstore stores click buckets in Redis so several server instances
// can share one set of aggregates.
//
// Layout, with the link id as cluster hash tag:
//
//	agg:{<link>}:<YYYY-MM-DD>  hash   total, device:<d>, country:<c>, referrer:<r>, labels:<dim>
//	agg:{<link>}:days          zset   bucket days scored by days since epoch
package redisstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/ports"
)

const DefaultMaxLabels = 1000

// recordScript increments every counter of one click atomically.
//
// KEYS[1]: bucket hash
// KEYS[2]: day index
// ARGV: country, referrer, device, max labels, day score, day, overflow label
var recordScript = redis.NewScript(`
local bucket = KEYS[1]
local max = tonumber(ARGV[4])

local function admit(dim, label)
  local field = dim .. ':' .. label
  if redis.call('HEXISTS', bucket, field) == 0 and label ~= ARGV[7] then
    local n = tonumber(redis.call('HGET', bucket, 'labels:' .. dim) or '0')
    if n >= max then
      field = dim .. ':' .. ARGV[7]
    else
      redis.call('HINCRBY', bucket, 'labels:' .. dim, 1)
    end
  end
  redis.call('HINCRBY', bucket, field, 1)
end

redis.call('HINCRBY', bucket, 'total', 1)
redis.call('HINCRBY', bucket, 'device:' .. ARGV[3], 1)
admit('country', ARGV[1])
admit('referrer', ARGV[2])
redis.call('ZADD', KEYS[2], ARGV[5], ARGV[6])
return 1
`)

type AggregateStore struct {
	client    *redis.Client
	maxLabels int
}

func NewAggregateStore(client *redis.Client, maxLabels int) *AggregateStore {
	if maxLabels <= 0 {
		maxLabels = DefaultMaxLabels
	}
	return &AggregateStore{client: client, maxLabels: maxLabels}
}

func bucketKey(linkID, day string) string {
	return fmt.Sprintf("agg:{%s}:%s", linkID, day)
}

func daysKey(linkID string) string {
	return fmt.Sprintf("agg:{%s}:days", linkID)
}

func dayScore(t time.Time) int64 {
	return domain.TruncateDay(t).Unix() / 86400
}

func (s *AggregateStore) Record(ctx context.Context, linkID string, click domain.ClassifiedClick) error {
	device := click.Device
	if !device.Valid() {
		device = domain.DeviceOther
	}
	day := click.Day.Format(domain.DayLayout)

	err := recordScript.Run(ctx, s.client,
		[]string{bucketKey(linkID, day), daysKey(linkID)},
		click.Country, click.ReferrerHost, string(device), s.maxLabels, dayScore(click.Day), day, domain.OverflowLabel,
	).Err()
	if err != nil && err != redis.Nil {
		return domain.StorageError("record click", err)
	}
	return nil
}

// days lists the link's bucket days within [start, end].
func (s *AggregateStore) days(ctx context.Context, linkID string, start, end time.Time) ([]string, error) {
	days, err := s.client.ZRangeByScore(ctx, daysKey(linkID), &redis.ZRangeBy{
		Min: strconv.FormatInt(dayScore(start), 10),
		Max: strconv.FormatInt(dayScore(end), 10),
	}).Result()
	if err != nil {
		return nil, domain.StorageError("range days", err)
	}
	return days, nil
}

func (s *AggregateStore) RangeTotals(ctx context.Context, linkID string, start, end time.Time) ([]domain.DayTotal, error) {
	days, err := s.days(ctx, linkID, start, end)
	if err != nil || len(days) == 0 {
		return []domain.DayTotal{}, err
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(days))
	for i, day := range days {
		cmds[i] = pipe.HGet(ctx, bucketKey(linkID, day), "total")
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, domain.StorageError("range totals", err)
	}

	totals := make([]domain.DayTotal, 0, len(days))
	for i, day := range days {
		n, err := cmds[i].Int64()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, domain.StorageError("read total", err)
		}
		d, err := time.Parse(domain.DayLayout, day)
		if err != nil {
			return nil, domain.StorageError("parse bucket day", err)
		}
		totals = append(totals, domain.DayTotal{Day: d, Total: n})
	}
	return totals, nil
}

func (s *AggregateStore) RangeBreakdown(ctx context.Context, linkID string, start, end time.Time, dim domain.Dimension, limit int) ([]domain.LabelCount, error) {
	days, err := s.days(ctx, linkID, start, end)
	if err != nil || len(days) == 0 {
		return []domain.LabelCount{}, err
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringStringMapCmd, len(days))
	for i, day := range days {
		cmds[i] = pipe.HGetAll(ctx, bucketKey(linkID, day))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, domain.StorageError("range breakdown", err)
	}

	prefix := string(dim) + ":"
	sum := make(map[string]int64)
	for _, cmd := range cmds {
		for field, v := range cmd.Val() {
			label, ok := strings.CutPrefix(field, prefix)
			if !ok {
				continue
			}
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, domain.StorageError("parse counter", err)
			}
			sum[label] += n
		}
	}
	return domain.RankLabels(sum, limit), nil
}

func (s *AggregateStore) PurgeLink(ctx context.Context, linkID string) error {
	days, err := s.client.ZRange(ctx, daysKey(linkID), 0, -1).Result()
	if err != nil {
		return domain.StorageError("list days", err)
	}
	keys := make([]string, 0, len(days)+1)
	for _, day := range days {
		keys = append(keys, bucketKey(linkID, day))
	}
	keys = append(keys, daysKey(linkID))
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return domain.StorageError("purge link", err)
	}
	return nil
}

// LinkIDs scans for day indexes; every link with a bucket has one.
func (s *AggregateStore) LinkIDs(ctx context.Context) ([]string, error) {
	var cursor uint64
	seen := make(map[string]struct{})
	for {
		keys, next, err := s.client.Scan(ctx, cursor, "agg:{*}:days", 500).Result()
		if err != nil {
			return nil, domain.StorageError("scan links", err)
		}
		for _, k := range keys {
			seen[strings.TrimSuffix(strings.TrimPrefix(k, "agg:{"), "}:days")] = struct{}{}
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

var _ ports.AggregateStore = (*AggregateStore)(nil)
