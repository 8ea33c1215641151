// Package actionlog records file-download actions and enforces the
// one-request-per-action rate limit on a managed key-value store.
// User identifiers are stored only as SHA-512 hashes.
package actionlog

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "paskoocheh.actionlog")

// ErrRedisUnavailable wraps any store-level failure.
var ErrRedisUnavailable = errors.New("actionlog: redis unavailable")

// DefaultWindow limits each user to one request per action per ~23
// hours, leaving headroom under a daily cadence.
const DefaultWindow = 85000 * time.Second

const (
	limitPrefix = "al:"
	auditPrefix = "audit:"
)

// Record is one audit entry, marshaled as JSON into the per-user set.
type Record struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	Source string `json:"source"`
	Time   int64  `json:"time"`
}

type Log struct {
	rdb    redis.UniversalClient
	window time.Duration
	now    func() time.Time
}

type Option func(*Log)

func WithWindow(d time.Duration) Option {
	return func(l *Log) { l.window = d }
}

func New(rdb redis.UniversalClient, opts ...Option) *Log {
	l := &Log{
		rdb:    rdb,
		window: DefaultWindow,
		now:    time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// IsLimitExceeded reports whether the user already performed the
// action inside the current window.
func (l *Log) IsLimitExceeded(ctx context.Context, user, action string) (bool, error) {
	n, err := l.rdb.Exists(ctx, limitKey(user, action)).Result()
	if err != nil {
		return false, errors.Wrapf(ErrRedisUnavailable, "%v", err)
	}
	return n > 0, nil
}

// LogAction records the action in the audit set and arms the
// rate-limit marker for the window.
func (l *Log) LogAction(ctx context.Context, user, action, source string) error {

	now := l.now()

	if err := l.rdb.Set(ctx, limitKey(user, action), 1, l.window).Err(); err != nil {
		return errors.Wrapf(ErrRedisUnavailable, "%v", err)
	}

	rec := Record{
		ID:     uuid.NewString(),
		Action: action,
		Source: source,
		Time:   now.Unix(),
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal audit record")
	}

	err = l.rdb.ZAdd(ctx, auditKey(user), redis.Z{
		Score:  float64(now.Unix()),
		Member: payload,
	}).Err()
	if err != nil {
		return errors.Wrapf(ErrRedisUnavailable, "%v", err)
	}

	logger.WithFields(logrus.Fields{"action": action, "source": source}).Debug("action logged")
	return nil
}

// HasRequested reports whether the user has any audit history at all.
func (l *Log) HasRequested(ctx context.Context, user string) (bool, error) {
	n, err := l.rdb.ZCard(ctx, auditKey(user)).Result()
	if err != nil {
		return false, errors.Wrapf(ErrRedisUnavailable, "%v", err)
	}
	return n > 0, nil
}

// Purge removes audit records older than age, deleting at most
// maxDelete entries per call so cleanup stays bounded. Returns the
// number of records removed.
func (l *Log) Purge(ctx context.Context, age time.Duration, maxDelete int64) (int64, error) {

	if maxDelete <= 0 {
		maxDelete = 100
	}
	cutoff := strconv.FormatInt(l.now().Add(-age).Unix(), 10)

	var deleted int64
	iter := l.rdb.Scan(ctx, 0, auditPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if deleted >= maxDelete {
			break
		}
		key := iter.Val()

		members, err := l.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{
			Min:   "-inf",
			Max:   "(" + cutoff,
			Count: maxDelete - deleted,
		}).Result()
		if err != nil {
			return deleted, errors.Wrapf(ErrRedisUnavailable, "%v", err)
		}
		if len(members) == 0 {
			continue
		}

		args := make([]interface{}, len(members))
		for i, m := range members {
			args[i] = m
		}
		removed, err := l.rdb.ZRem(ctx, key, args...).Result()
		if err != nil {
			return deleted, errors.Wrapf(ErrRedisUnavailable, "%v", err)
		}
		deleted += removed
	}
	if err := iter.Err(); err != nil {
		return deleted, errors.Wrapf(ErrRedisUnavailable, "%v", err)
	}

	logger.WithField("deleted", deleted).Debug("audit purge complete")
	return deleted, nil
}

func hashUser(user string) string {
	sum := sha512.Sum512([]byte(user))
	return hex.EncodeToString(sum[:])
}

func limitKey(user, action string) string {
	return limitPrefix + hashUser(user) + ":" + action
}

func auditKey(user string) string {
	return auditPrefix + hashUser(user)
}
