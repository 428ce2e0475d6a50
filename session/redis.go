package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goGuard/clock"
	"github.com/MrEthical07/goGuard/fingerprint"
	"github.com/MrEthical07/goGuard/internal"
	"github.com/MrEthical07/goGuard/risk"
	"github.com/redis/go-redis/v9"
)

// DefaultMaxTxRetries bounds optimistic transaction retries.
const DefaultMaxTxRetries = 8

const scanBatch = 256

// RedisStore is a Store on Redis.
//
// Each session lives at "<prefix>:s:<id>" as a CBOR blob whose PX is
// the remaining lifetime. Each user has a reverse index
// "<prefix>:u:<userID>", a sorted set of session ids scored by
// LastAccessedAt in unix milliseconds. Mutations run as WATCH/MULTI
// transactions on the keys they read.
type RedisStore struct {
	redis      redis.UniversalClient
	prefix     string
	cfg        Config
	risk       *risk.Engine
	clock      clock.Clock
	maxRetries int
}

// NewRedisStore returns a RedisStore. A nil engine uses risk.Default and
// a nil clock uses the wall clock.
func NewRedisStore(client redis.UniversalClient, prefix string, cfg Config, engine *risk.Engine, clk clock.Clock) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("session: redis client is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if engine == nil {
		engine = risk.Default()
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &RedisStore{
		redis:      client,
		prefix:     prefix,
		cfg:        cfg,
		risk:       engine,
		clock:      clk,
		maxRetries: DefaultMaxTxRetries,
	}, nil
}

func (s *RedisStore) sessionKey(id string) string {
	return s.prefix + ":s:" + id
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// Create stores a new session, evicting the user's least recently
// accessed sessions when the cap is reached. Index entries whose session
// is gone or expired are pruned in the same transaction.
func (s *RedisStore) Create(ctx context.Context, userID string, fp fingerprint.Fingerprint, privileged bool) (CreateResult, error) {
	if userID == "" {
		return CreateResult{}, ErrUserIDRequired
	}
	id, err := internal.NewSessionIDString()
	if err != nil {
		return CreateResult{}, err
	}
	uKey := s.userKey(userID)

	var result CreateResult
	err = s.watch(ctx, func(tx *redis.Tx) error {
		result = CreateResult{}
		members, err := tx.ZRange(ctx, uKey, 0, -1).Result()
		if err != nil {
			return redisErr(err)
		}
		keys := s.sessionKeys(members)
		if len(keys) > 0 {
			if err := tx.Watch(ctx, keys...).Err(); err != nil {
				return redisErr(err)
			}
		}
		now := s.clock.Now()
		live, stale, err := s.loadMembers(ctx, tx, members, now)
		if err != nil {
			return err
		}
		victims := evictionVictims(live, s.cfg.MaxConcurrentSessions)

		sess := newSession(id, userID, fp, privileged, now, s.cfg)
		blob, err := Encode(sess)
		if err != nil {
			return err
		}
		err = s.exec(ctx, tx, func(pipe redis.Pipeliner) error {
			for _, sid := range stale {
				pipe.ZRem(ctx, uKey, sid)
				pipe.Del(ctx, s.sessionKey(sid))
			}
			for _, v := range victims {
				pipe.ZRem(ctx, uKey, v.ID)
				pipe.Del(ctx, s.sessionKey(v.ID))
			}
			s.queuePut(ctx, pipe, sess, blob, now)
			return nil
		})
		if err != nil {
			return err
		}
		for _, v := range victims {
			result.Evicted = append(result.Evicted, v.ID)
		}
		result.Session = sess
		return nil
	}, uKey)
	if err != nil {
		return CreateResult{}, err
	}
	return result, nil
}

// Validate checks id against fp and applies the risk policy in one
// transaction.
func (s *RedisStore) Validate(ctx context.Context, id string, fp fingerprint.Fingerprint) (Result, error) {
	if !internal.ValidSessionID(id) {
		return Result{Outcome: OutcomeNotFound}, nil
	}
	sKey := s.sessionKey(id)

	var result Result
	err := s.watch(ctx, func(tx *redis.Tx) error {
		result = Result{}
		now := s.clock.Now()
		sess, err := s.load(ctx, tx, id)
		if errors.Is(err, ErrSessionNotFound) {
			result.Outcome = OutcomeNotFound
			return nil
		}
		if err != nil {
			return err
		}
		if sess.Expired(now) {
			result.Outcome = OutcomeExpired
			return s.execDelete(ctx, tx, sess)
		}

		a := s.risk.Score(sess.Fingerprint, fp)
		applyAssessment(sess, a, now, s.cfg)
		result.Assessment = a

		if a.Level != risk.LevelHigh {
			if err := s.execPut(ctx, tx, sess, now); err != nil {
				return err
			}
			result.Outcome = OutcomeValid
			result.Session = sess
			return nil
		}
		if !canRotate(sess, s.cfg) {
			result.Outcome = OutcomeRotationLimit
			return s.execDelete(ctx, tx, sess)
		}
		next, err := s.execReplace(ctx, tx, sess, fp, false, now)
		if err != nil {
			return err
		}
		result.Outcome = OutcomeValid
		result.Session = next
		result.Rotated = true
		result.PreviousID = id
		return nil
	}, sKey)
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// Rotate replaces id with a fresh session bound to fp.
func (s *RedisStore) Rotate(ctx context.Context, id string, fp fingerprint.Fingerprint) (*Session, error) {
	return s.replace(ctx, id, fp, false)
}

// Escalate rotates id into a privileged session.
func (s *RedisStore) Escalate(ctx context.Context, id string, fp fingerprint.Fingerprint) (*Session, error) {
	return s.replace(ctx, id, fp, true)
}

func (s *RedisStore) replace(ctx context.Context, id string, fp fingerprint.Fingerprint, escalate bool) (*Session, error) {
	if !internal.ValidSessionID(id) {
		return nil, ErrSessionNotFound
	}

	var (
		next    *Session
		outcome error
	)
	err := s.watch(ctx, func(tx *redis.Tx) error {
		next, outcome = nil, nil
		now := s.clock.Now()
		sess, err := s.load(ctx, tx, id)
		if errors.Is(err, ErrSessionNotFound) {
			outcome = ErrSessionNotFound
			return nil
		}
		if err != nil {
			return err
		}
		if sess.Expired(now) {
			outcome = ErrSessionExpired
			return s.execDelete(ctx, tx, sess)
		}
		if !canRotate(sess, s.cfg) {
			outcome = ErrRotationLimit
			return s.execDelete(ctx, tx, sess)
		}
		next, err = s.execReplace(ctx, tx, sess, fp, escalate, now)
		return err
	}, s.sessionKey(id))
	if err != nil {
		return nil, err
	}
	if outcome != nil {
		return nil, outcome
	}
	return next, nil
}

// Get returns the session without touching it.
func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	if !internal.ValidSessionID(id) {
		return nil, ErrSessionNotFound
	}
	sess, err := s.load(ctx, s.redis, id)
	if err != nil {
		return nil, err
	}
	if sess.Expired(s.clock.Now()) {
		return nil, ErrSessionExpired
	}
	return sess, nil
}

// ListForUser returns the user's live sessions, most recently accessed
// first.
func (s *RedisStore) ListForUser(ctx context.Context, userID string) ([]*Session, error) {
	members, err := s.redis.ZRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, redisErr(err)
	}
	live, _, err := s.loadMembers(ctx, s.redis, members, s.clock.Now())
	if err != nil {
		return nil, err
	}
	sortMostRecentFirst(live)
	return live, nil
}

// Destroy removes id and its index entry. Unknown ids are not an error.
func (s *RedisStore) Destroy(ctx context.Context, id string) error {
	if !internal.ValidSessionID(id) {
		return nil
	}
	sKey := s.sessionKey(id)
	return s.watch(ctx, func(tx *redis.Tx) error {
		sess, err := s.load(ctx, tx, id)
		switch {
		case errors.Is(err, ErrSessionNotFound):
			return nil
		case errors.Is(err, ErrSessionCorrupt), errors.Is(err, ErrUnsupportedSchema):
			return s.exec(ctx, tx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, sKey)
				return nil
			})
		case err != nil:
			return err
		}
		return s.execDelete(ctx, tx, sess)
	}, sKey)
}

// DestroyAllForUser removes every indexed session of userID and returns
// how many still existed.
func (s *RedisStore) DestroyAllForUser(ctx context.Context, userID string) (int, error) {
	uKey := s.userKey(userID)

	var removed int
	err := s.watch(ctx, func(tx *redis.Tx) error {
		removed = 0
		members, err := tx.ZRange(ctx, uKey, 0, -1).Result()
		if err != nil {
			return redisErr(err)
		}
		if len(members) == 0 {
			return nil
		}
		keys := s.sessionKeys(members)
		if err := tx.Watch(ctx, keys...).Err(); err != nil {
			return redisErr(err)
		}
		existing, err := tx.Exists(ctx, keys...).Result()
		if err != nil {
			return redisErr(err)
		}
		err = s.exec(ctx, tx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, append(keys, uKey)...)
			return nil
		})
		if err != nil {
			return err
		}
		removed = int(existing)
		return nil
	}, uKey)
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Stats scans every session key. Its cost is linear in the number of
// stored sessions.
func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	now := s.clock.Now()
	acc := newStatsAccumulator(s.risk.Thresholds().High)
	err := s.scan(ctx, s.prefix+":s:*", func(keys []string) error {
		blobs, err := s.redis.MGet(ctx, keys...).Result()
		if err != nil {
			return redisErr(err)
		}
		for i, raw := range blobs {
			str, ok := raw.(string)
			if !ok {
				continue
			}
			sess, err := Decode(keys[i][len(s.prefix)+3:], []byte(str))
			if err != nil || sess.Expired(now) {
				continue
			}
			acc.add(sess)
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	return acc.result(), nil
}

// Sweep walks every user index, deleting expired sessions and index
// entries whose session no longer exists. It returns the number of index
// entries removed.
func (s *RedisStore) Sweep(ctx context.Context) (int, error) {
	now := s.clock.Now()
	removed := 0
	err := s.scan(ctx, s.prefix+":u:*", func(indexKeys []string) error {
		for _, uKey := range indexKeys {
			members, err := s.redis.ZRange(ctx, uKey, 0, -1).Result()
			if err != nil {
				return redisErr(err)
			}
			_, stale, err := s.loadMembers(ctx, s.redis, members, now)
			if err != nil {
				return err
			}
			if len(stale) == 0 {
				continue
			}
			_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, sid := range stale {
					pipe.ZRem(ctx, uKey, sid)
					pipe.Del(ctx, s.sessionKey(sid))
				}
				return nil
			})
			if err != nil {
				return redisErr(err)
			}
			removed += len(stale)
		}
		return nil
	})
	return removed, err
}

// watch runs fn under WATCH keys, retrying on optimistic conflicts.
func (s *RedisStore) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.redis.Watch(ctx, fn, keys...)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if isStoreErr(err) {
			return err
		}
		return redisErr(err)
	}
	return ErrStoreBusy
}

// exec runs a MULTI/EXEC block. Conflicts are returned unwrapped so
// watch can retry them.
func (s *RedisStore) exec(ctx context.Context, tx *redis.Tx, fn func(redis.Pipeliner) error) error {
	_, err := tx.TxPipelined(ctx, fn)
	if err == nil || errors.Is(err, redis.TxFailedErr) {
		return err
	}
	return redisErr(err)
}

func (s *RedisStore) execDelete(ctx context.Context, tx *redis.Tx, sess *Session) error {
	return s.exec(ctx, tx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.sessionKey(sess.ID))
		pipe.ZRem(ctx, s.userKey(sess.UserID), sess.ID)
		return nil
	})
}

func (s *RedisStore) execPut(ctx context.Context, tx *redis.Tx, sess *Session, now time.Time) error {
	blob, err := Encode(sess)
	if err != nil {
		return err
	}
	return s.exec(ctx, tx, func(pipe redis.Pipeliner) error {
		s.queuePut(ctx, pipe, sess, blob, now)
		return nil
	})
}

func (s *RedisStore) execReplace(ctx context.Context, tx *redis.Tx, old *Session, fp fingerprint.Fingerprint, escalate bool, now time.Time) (*Session, error) {
	newID, err := internal.NewSessionIDString()
	if err != nil {
		return nil, err
	}
	next := rotated(old, newID, fp, escalate, now, s.cfg)
	blob, err := Encode(next)
	if err != nil {
		return nil, err
	}
	err = s.exec(ctx, tx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.sessionKey(old.ID))
		pipe.ZRem(ctx, s.userKey(old.UserID), old.ID)
		s.queuePut(ctx, pipe, next, blob, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// queuePut writes the blob with its remaining lifetime and refreshes the
// user index entry and TTL.
func (s *RedisStore) queuePut(ctx context.Context, pipe redis.Pipeliner, sess *Session, blob []byte, now time.Time) {
	ttl := sess.ExpiresAt.Sub(now)
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	uKey := s.userKey(sess.UserID)
	pipe.Set(ctx, s.sessionKey(sess.ID), blob, ttl)
	pipe.ZAdd(ctx, uKey, redis.Z{Score: float64(sess.LastAccessedAt.UnixMilli()), Member: sess.ID})
	pipe.PExpire(ctx, uKey, s.cfg.maxTTL())
}

func (s *RedisStore) load(ctx context.Context, c redis.Cmdable, id string) (*Session, error) {
	blob, err := c.Get(ctx, s.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, redisErr(err)
	}
	return Decode(id, blob)
}

// loadMembers splits index members into live sessions and stale ids.
// Missing, expired and undecodable sessions are stale.
func (s *RedisStore) loadMembers(ctx context.Context, c redis.Cmdable, members []string, now time.Time) ([]*Session, []string, error) {
	if len(members) == 0 {
		return nil, nil, nil
	}
	blobs, err := c.MGet(ctx, s.sessionKeys(members)...).Result()
	if err != nil {
		return nil, nil, redisErr(err)
	}
	var (
		live  []*Session
		stale []string
	)
	for i, raw := range blobs {
		str, ok := raw.(string)
		if !ok {
			stale = append(stale, members[i])
			continue
		}
		sess, err := Decode(members[i], []byte(str))
		if err != nil || sess.Expired(now) {
			stale = append(stale, members[i])
			continue
		}
		live = append(live, sess)
	}
	return live, stale, nil
}

func (s *RedisStore) sessionKeys(ids []string) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.sessionKey(id)
	}
	return keys
}

func (s *RedisStore) scan(ctx context.Context, match string, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return redisErr(err)
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func redisErr(err error) error {
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}

func isStoreErr(err error) bool {
	return errors.Is(err, ErrRedisUnavailable) ||
		errors.Is(err, ErrSessionCorrupt) ||
		errors.Is(err, ErrUnsupportedSchema)
}

var _ Store = (*RedisStore)(nil)
