package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/clock"
	"github.com/MrEthical07/goGuard/fingerprint"
	"github.com/MrEthical07/goGuard/risk"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var epoch = time.Unix(1_700_000_000, 0)

var baseMeta = fingerprint.Metadata{
	UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0",
	AcceptLanguage: "en-US,en;q=0.9",
	AcceptEncoding: "gzip, deflate, br",
	RemoteAddr:     "203.0.113.7:51234",
}

func baseFP() fingerprint.Fingerprint {
	return fingerprint.Compute(baseMeta)
}

func driftFP(mutate func(*fingerprint.Metadata)) fingerprint.Fingerprint {
	m := baseMeta
	mutate(&m)
	return fingerprint.Compute(m)
}

type harness struct {
	name    string
	store   Store
	clock   *clock.FakeClock
	advance func(time.Duration)
	mr      *miniredis.Miniredis
}

func newHarnesses(t *testing.T, cfg Config) []harness {
	t.Helper()

	mclk := clock.Fake(epoch)
	mem, err := NewMemoryStore(cfg, risk.Default(), mclk)
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}

	rs, rclk, mr := newRedisStore(t, cfg)

	return []harness{
		{name: "memory", store: mem, clock: mclk, advance: mclk.Advance},
		{name: "redis", store: rs, clock: rclk, mr: mr, advance: func(d time.Duration) {
			rclk.Advance(d)
			mr.FastForward(d)
		}},
	}
}

func newRedisStore(t *testing.T, cfg Config) (*RedisStore, *clock.FakeClock, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	clk := clock.Fake(epoch)
	rs, err := NewRedisStore(rdb, "gg", cfg, risk.Default(), clk)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	return rs, clk, mr
}

func mustCreate(t *testing.T, s Store, userID string, privileged bool) *Session {
	t.Helper()
	res, err := s.Create(context.Background(), userID, baseFP(), privileged)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.Session == nil {
		t.Fatalf("Create returned nil session")
	}
	return res.Session
}

func mustValidate(t *testing.T, s Store, id string, fp fingerprint.Fingerprint) Result {
	t.Helper()
	res, err := s.Validate(context.Background(), id, fp)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return res
}

func TestCreateAssignsLifetime(t *testing.T) {
	cfg := DefaultConfig()
	for _, h := range newHarnesses(t, cfg) {
		t.Run(h.name, func(t *testing.T) {
			regular := mustCreate(t, h.store, "alice", false)
			if !regular.ExpiresAt.Equal(epoch.Add(cfg.RegularTTL)) {
				t.Fatalf("regular ExpiresAt = %v, want %v", regular.ExpiresAt, epoch.Add(cfg.RegularTTL))
			}
			privileged := mustCreate(t, h.store, "alice", true)
			if !privileged.Privileged || !privileged.ExpiresAt.Equal(epoch.Add(cfg.PrivilegedTTL)) {
				t.Fatalf("privileged session = %+v", privileged)
			}
			if regular.ID == privileged.ID {
				t.Fatalf("session ids collide")
			}
			if _, err := h.store.Create(context.Background(), "", baseFP(), false); !errors.Is(err, ErrUserIDRequired) {
				t.Fatalf("empty user id error = %v, want ErrUserIDRequired", err)
			}
		})
	}
}

func TestCreateEvictsLeastRecentlyAccessed(t *testing.T) {
	for _, h := range newHarnesses(t, DefaultConfig()) {
		t.Run(h.name, func(t *testing.T) {
			ids := make([]string, 0, DefaultMaxConcurrentSessions)
			for i := 0; i < DefaultMaxConcurrentSessions; i++ {
				ids = append(ids, mustCreate(t, h.store, "alice", false).ID)
				h.advance(time.Second)
			}

			// Touching the oldest makes the second oldest the LRU victim.
			if res := mustValidate(t, h.store, ids[0], baseFP()); !res.Valid() {
				t.Fatalf("validate oldest: %v", res.Outcome)
			}
			h.advance(time.Second)

			res, err := h.store.Create(context.Background(), "alice", baseFP(), false)
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			if len(res.Evicted) != 1 || res.Evicted[0] != ids[1] {
				t.Fatalf("Evicted = %v, want [%s]", res.Evicted, ids[1])
			}
			if _, err := h.store.Get(context.Background(), ids[1]); !errors.Is(err, ErrSessionNotFound) {
				t.Fatalf("evicted session Get error = %v", err)
			}

			list, err := h.store.ListForUser(context.Background(), "alice")
			if err != nil {
				t.Fatalf("ListForUser: %v", err)
			}
			if len(list) != DefaultMaxConcurrentSessions {
				t.Fatalf("live sessions = %d, want %d", len(list), DefaultMaxConcurrentSessions)
			}
			if list[0].ID != res.Session.ID || list[1].ID != ids[0] {
				t.Fatalf("ListForUser order = %s,%s; want newest then touched", list[0].ID, list[1].ID)
			}

			// Other users are unaffected by alice's cap.
			mustCreate(t, h.store, "bob", false)
			bob, err := h.store.ListForUser(context.Background(), "bob")
			if err != nil || len(bob) != 1 {
				t.Fatalf("bob sessions = %d, %v", len(bob), err)
			}
		})
	}
}

func TestValidateZeroDrift(t *testing.T) {
	for _, h := range newHarnesses(t, DefaultConfig()) {
		t.Run(h.name, func(t *testing.T) {
			s := mustCreate(t, h.store, "alice", false)
			h.advance(time.Minute)

			res := mustValidate(t, h.store, s.ID, baseFP())
			if !res.Valid() || res.Rotated {
				t.Fatalf("result = %+v", res)
			}
			if res.Assessment.Score != 0 || res.Assessment.Level != risk.LevelLow {
				t.Fatalf("assessment = %+v", res.Assessment)
			}
			if res.Session.ID != s.ID || res.Session.RiskScore != 0 {
				t.Fatalf("session = %+v", res.Session)
			}
			if !res.Session.LastAccessedAt.Equal(epoch.Add(time.Minute)) {
				t.Fatalf("LastAccessedAt = %v", res.Session.LastAccessedAt)
			}
			if !res.Session.ExpiresAt.Equal(s.ExpiresAt) {
				t.Fatalf("access extended expiry: %v -> %v", s.ExpiresAt, res.Session.ExpiresAt)
			}
		})
	}
}

func TestValidateLowDriftRaisesStoredRisk(t *testing.T) {
	for _, h := range newHarnesses(t, DefaultConfig()) {
		t.Run(h.name, func(t *testing.T) {
			s := mustCreate(t, h.store, "alice", false)
			fp := driftFP(func(m *fingerprint.Metadata) { m.AcceptEncoding = "identity" })

			res := mustValidate(t, h.store, s.ID, fp)
			if !res.Valid() || res.Rotated {
				t.Fatalf("result = %+v", res)
			}
			if res.Assessment.Score != 10 || res.Assessment.Level != risk.LevelLow {
				t.Fatalf("assessment = %+v", res.Assessment)
			}
			got, err := h.store.Get(context.Background(), s.ID)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.RiskScore != 10 {
				t.Fatalf("stored RiskScore = %d, want 10", got.RiskScore)
			}

			// A later clean request does not lower it without decay.
			mustValidate(t, h.store, s.ID, baseFP())
			got, _ = h.store.Get(context.Background(), s.ID)
			if got.RiskScore != 10 {
				t.Fatalf("RiskScore after clean request = %d, want 10", got.RiskScore)
			}
		})
	}
}

func TestValidationRiskDecay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ValidationRiskDecay = 10
	medium := driftFP(func(m *fingerprint.Metadata) {
		m.RemoteAddr = "198.51.100.9:4000"
		m.UserAgent = "curl/8.5.0"
	})

	for _, h := range newHarnesses(t, cfg) {
		t.Run(h.name, func(t *testing.T) {
			ctx := context.Background()
			s := mustCreate(t, h.store, "alice", false)

			res := mustValidate(t, h.store, s.ID, medium)
			if res.Assessment.Level != risk.LevelMedium || res.Session.RiskScore != 55 {
				t.Fatalf("drifted validation = %+v", res)
			}

			// A repeated medium request neither raises nor decays the score.
			res = mustValidate(t, h.store, s.ID, medium)
			if res.Session.RiskScore != 55 {
				t.Fatalf("RiskScore after medium request = %d, want 55", res.Session.RiskScore)
			}

			for _, want := range []int{45, 35, 25, 15, 5, 0, 0} {
				res = mustValidate(t, h.store, s.ID, baseFP())
				if !res.Valid() || res.Assessment.Level != risk.LevelLow {
					t.Fatalf("clean validation = %+v", res)
				}
				got, err := h.store.Get(ctx, s.ID)
				if err != nil {
					t.Fatalf("Get: %v", err)
				}
				if got.RiskScore != want {
					t.Fatalf("RiskScore = %d, want %d", got.RiskScore, want)
				}
			}
		})
	}
}

func TestValidateMediumRiskKeepsSession(t *testing.T) {
	for _, h := range newHarnesses(t, DefaultConfig()) {
		t.Run(h.name, func(t *testing.T) {
			s := mustCreate(t, h.store, "alice", false)
			fp := driftFP(func(m *fingerprint.Metadata) {
				m.RemoteAddr = "198.51.100.9:4000"
				m.UserAgent = "curl/8.5.0"
			})

			res := mustValidate(t, h.store, s.ID, fp)
			if !res.Valid() || res.Rotated {
				t.Fatalf("result = %+v", res)
			}
			if res.Assessment.Score != 55 || res.Assessment.Level != risk.LevelMedium {
				t.Fatalf("assessment = %+v", res.Assessment)
			}
			if res.Session.ID != s.ID || res.Session.RiskScore != 55 {
				t.Fatalf("session = %+v", res.Session)
			}
			if res.Session.Fingerprint.Hash != s.Fingerprint.Hash {
				t.Fatalf("medium risk rebound fingerprint")
			}
		})
	}
}

func TestValidateHighRiskRotates(t *testing.T) {
	for _, h := range newHarnesses(t, DefaultConfig()) {
		t.Run(h.name, func(t *testing.T) {
			s := mustCreate(t, h.store, "alice", false)
			h.advance(time.Minute)
			fp := driftFP(func(m *fingerprint.Metadata) {
				m.RemoteAddr = "198.51.100.9:4000"
				m.UserAgent = "curl/8.5.0"
				m.AcceptLanguage = "de-DE"
				m.AcceptEncoding = "identity"
			})

			res := mustValidate(t, h.store, s.ID, fp)
			if !res.Valid() || !res.Rotated || res.PreviousID != s.ID {
				t.Fatalf("result = %+v", res)
			}
			if res.Assessment.Level != risk.LevelHigh || res.Assessment.Score != 80 {
				t.Fatalf("assessment = %+v", res.Assessment)
			}
			next := res.Session
			if next.ID == s.ID {
				t.Fatalf("rotation kept id")
			}
			if next.RotationCount != 1 || next.RiskScore != 80-DefaultRotationRiskDecay {
				t.Fatalf("rotated session = %+v", next)
			}
			if next.Fingerprint.Hash != fp.Hash || next.UserID != "alice" || next.Privileged {
				t.Fatalf("rotated session = %+v", next)
			}
			if !next.CreatedAt.Equal(s.CreatedAt) || !next.RotatedAt.Equal(epoch.Add(time.Minute)) {
				t.Fatalf("rotated times = created %v rotated %v", next.CreatedAt, next.RotatedAt)
			}

			if old := mustValidate(t, h.store, s.ID, baseFP()); old.Outcome != OutcomeNotFound {
				t.Fatalf("old id outcome = %v, want not_found", old.Outcome)
			}
			if again := mustValidate(t, h.store, next.ID, fp); !again.Valid() || again.Rotated {
				t.Fatalf("new id result = %+v", again)
			}
		})
	}
}

func TestRotationLimitDestroysSession(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRotations = 2
	for _, h := range newHarnesses(t, cfg) {
		t.Run(h.name, func(t *testing.T) {
			ctx := context.Background()
			s := mustCreate(t, h.store, "alice", false)

			id := s.ID
			for i := 0; i < cfg.MaxRotations; i++ {
				next, err := h.store.Rotate(ctx, id, baseFP())
				if err != nil {
					t.Fatalf("Rotate %d: %v", i, err)
				}
				id = next.ID
			}
			if _, err := h.store.Rotate(ctx, id, baseFP()); !errors.Is(err, ErrRotationLimit) {
				t.Fatalf("Rotate past limit error = %v, want ErrRotationLimit", err)
			}
			if _, err := h.store.Get(ctx, id); !errors.Is(err, ErrSessionNotFound) {
				t.Fatalf("Get after limit error = %v, want ErrSessionNotFound", err)
			}

			// Validate surfaces the same breach as a forced logout.
			s = mustCreate(t, h.store, "bob", false)
			id = s.ID
			for i := 0; i < cfg.MaxRotations; i++ {
				next, err := h.store.Rotate(ctx, id, baseFP())
				if err != nil {
					t.Fatalf("Rotate %d: %v", i, err)
				}
				id = next.ID
			}
			hostile := driftFP(func(m *fingerprint.Metadata) {
				m.RemoteAddr = "198.51.100.9:4000"
				m.UserAgent = "curl/8.5.0"
				m.AcceptLanguage = "de-DE"
				m.AcceptEncoding = "identity"
			})
			res := mustValidate(t, h.store, id, hostile)
			if res.Outcome != OutcomeRotationLimit || res.Session != nil {
				t.Fatalf("result = %+v, want rotation_limit", res)
			}
			if res := mustValidate(t, h.store, id, baseFP()); res.Outcome != OutcomeNotFound {
				t.Fatalf("outcome after breach = %v", res.Outcome)
			}
		})
	}
}

func TestValidateExpiry(t *testing.T) {
	cfg := DefaultConfig()
	for _, h := range newHarnesses(t, cfg) {
		t.Run(h.name, func(t *testing.T) {
			s := mustCreate(t, h.store, "alice", true)

			h.clock.Advance(cfg.PrivilegedTTL)
			if res := mustValidate(t, h.store, s.ID, baseFP()); !res.Valid() {
				t.Fatalf("at ExpiresAt outcome = %v, want valid", res.Outcome)
			}

			h.clock.Advance(time.Millisecond)
			if res := mustValidate(t, h.store, s.ID, baseFP()); res.Outcome != OutcomeExpired {
				t.Fatalf("past ExpiresAt outcome = %v, want expired", res.Outcome)
			}
			if res := mustValidate(t, h.store, s.ID, baseFP()); res.Outcome != OutcomeNotFound {
				t.Fatalf("expired session was not destroyed: %v", res.Outcome)
			}
			if _, err := h.store.Rotate(context.Background(), s.ID, baseFP()); !errors.Is(err, ErrSessionNotFound) {
				t.Fatalf("Rotate error = %v", err)
			}
		})
	}
}

func TestValidateUnknownSession(t *testing.T) {
	for _, h := range newHarnesses(t, DefaultConfig()) {
		t.Run(h.name, func(t *testing.T) {
			for _, id := range []string{"", "not-a-session", "AAAAAAAAAAAAAAAAAAAAAA"} {
				if res := mustValidate(t, h.store, id, baseFP()); res.Outcome != OutcomeNotFound {
					t.Fatalf("Validate(%q) = %v, want not_found", id, res.Outcome)
				}
			}
		})
	}
}

func TestEscalateGrantsPrivilege(t *testing.T) {
	cfg := DefaultConfig()
	for _, h := range newHarnesses(t, cfg) {
		t.Run(h.name, func(t *testing.T) {
			ctx := context.Background()
			s := mustCreate(t, h.store, "alice", false)
			h.advance(time.Hour)

			res := mustValidate(t, h.store, s.ID, baseFP())
			if res.Session.Privileged {
				t.Fatalf("validate promoted session")
			}

			up, err := h.store.Escalate(ctx, s.ID, baseFP())
			if err != nil {
				t.Fatalf("Escalate: %v", err)
			}
			if !up.Privileged || up.ID == s.ID || up.RotationCount != 1 {
				t.Fatalf("escalated = %+v", up)
			}
			if want := epoch.Add(time.Hour).Add(cfg.PrivilegedTTL); !up.ExpiresAt.Equal(want) {
				t.Fatalf("escalated ExpiresAt = %v, want %v", up.ExpiresAt, want)
			}
			if _, err := h.store.Get(ctx, s.ID); !errors.Is(err, ErrSessionNotFound) {
				t.Fatalf("pre-escalation id still present: %v", err)
			}

			// Plain rotation keeps privilege without re-granting it.
			next, err := h.store.Rotate(ctx, up.ID, baseFP())
			if err != nil {
				t.Fatalf("Rotate: %v", err)
			}
			if !next.Privileged || next.RotationCount != 2 {
				t.Fatalf("rotated privileged = %+v", next)
			}

			if _, err := h.store.Escalate(ctx, "missing", baseFP()); !errors.Is(err, ErrSessionNotFound) {
				t.Fatalf("Escalate missing error = %v", err)
			}
		})
	}
}

func TestDestroy(t *testing.T) {
	for _, h := range newHarnesses(t, DefaultConfig()) {
		t.Run(h.name, func(t *testing.T) {
			ctx := context.Background()
			s := mustCreate(t, h.store, "alice", false)
			for i := 0; i < 2; i++ {
				if err := h.store.Destroy(ctx, s.ID); err != nil {
					t.Fatalf("Destroy #%d: %v", i, err)
				}
			}
			if res := mustValidate(t, h.store, s.ID, baseFP()); res.Outcome != OutcomeNotFound {
				t.Fatalf("outcome after destroy = %v", res.Outcome)
			}
			if err := h.store.Destroy(ctx, "never-existed"); err != nil {
				t.Fatalf("Destroy unknown: %v", err)
			}
		})
	}
}

func TestDestroyAllForUser(t *testing.T) {
	for _, h := range newHarnesses(t, DefaultConfig()) {
		t.Run(h.name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				mustCreate(t, h.store, "alice", false)
			}
			keep := mustCreate(t, h.store, "bob", false)

			n, err := h.store.DestroyAllForUser(ctx, "alice")
			if err != nil || n != 3 {
				t.Fatalf("DestroyAllForUser = %d, %v; want 3", n, err)
			}
			n, err = h.store.DestroyAllForUser(ctx, "alice")
			if err != nil || n != 0 {
				t.Fatalf("second DestroyAllForUser = %d, %v; want 0", n, err)
			}
			if _, err := h.store.Get(ctx, keep.ID); err != nil {
				t.Fatalf("bob's session lost: %v", err)
			}
		})
	}
}

func TestDestroyAllForUserCountsOnlyLiveSessions(t *testing.T) {
	cfg := DefaultConfig()
	for _, h := range newHarnesses(t, cfg) {
		t.Run(h.name, func(t *testing.T) {
			mustCreate(t, h.store, "alice", true)
			mustCreate(t, h.store, "alice", false)
			h.advance(cfg.PrivilegedTTL + time.Minute)

			n, err := h.store.DestroyAllForUser(context.Background(), "alice")
			if err != nil || n != 1 {
				t.Fatalf("DestroyAllForUser = %d, %v; want 1", n, err)
			}
			list, err := h.store.ListForUser(context.Background(), "alice")
			if err != nil || len(list) != 0 {
				t.Fatalf("sessions left = %d, %v", len(list), err)
			}
		})
	}
}

func TestStats(t *testing.T) {
	for _, h := range newHarnesses(t, DefaultConfig()) {
		t.Run(h.name, func(t *testing.T) {
			ctx := context.Background()
			a := mustCreate(t, h.store, "alice", false)
			mustCreate(t, h.store, "alice", true)
			b := mustCreate(t, h.store, "bob", false)

			if _, err := h.store.Rotate(ctx, a.ID, baseFP()); err != nil {
				t.Fatalf("Rotate: %v", err)
			}
			// Three changed dimensions score 70, stored without rotating.
			mustValidate(t, h.store, b.ID, driftFP(func(m *fingerprint.Metadata) {
				m.RemoteAddr = "198.51.100.9:4000"
				m.UserAgent = "curl/8.5.0"
				m.AcceptLanguage = "de-DE"
			}))

			st, err := h.store.Stats(ctx)
			if err != nil {
				t.Fatalf("Stats: %v", err)
			}
			if st.Total != 3 || st.Privileged != 1 || st.Users != 2 || st.HighRisk != 0 {
				t.Fatalf("stats = %+v", st)
			}
			if st.MeanRotationCount < 0.33 || st.MeanRotationCount > 0.34 {
				t.Fatalf("MeanRotationCount = %v, want 1/3", st.MeanRotationCount)
			}
		})
	}
}

func TestStatsCountsHighRisk(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RotationRiskDecay = 0
	for _, h := range newHarnesses(t, cfg) {
		t.Run(h.name, func(t *testing.T) {
			s := mustCreate(t, h.store, "alice", false)
			res := mustValidate(t, h.store, s.ID, driftFP(func(m *fingerprint.Metadata) {
				m.RemoteAddr = "198.51.100.9:4000"
				m.UserAgent = "curl/8.5.0"
				m.AcceptLanguage = "de-DE"
				m.AcceptEncoding = "identity"
			}))
			if !res.Rotated {
				t.Fatalf("expected rotation")
			}
			st, err := h.store.Stats(context.Background())
			if err != nil {
				t.Fatalf("Stats: %v", err)
			}
			if st.HighRisk != 1 {
				t.Fatalf("HighRisk = %d, want 1", st.HighRisk)
			}
		})
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	cfg := DefaultConfig()
	for _, h := range newHarnesses(t, cfg) {
		t.Run(h.name, func(t *testing.T) {
			ctx := context.Background()
			mustCreate(t, h.store, "alice", true)
			mustCreate(t, h.store, "bob", true)
			live := mustCreate(t, h.store, "carol", false)

			h.advance(cfg.PrivilegedTTL + time.Second)

			n, err := h.store.Sweep(ctx)
			if err != nil || n != 2 {
				t.Fatalf("Sweep = %d, %v; want 2", n, err)
			}
			n, err = h.store.Sweep(ctx)
			if err != nil || n != 0 {
				t.Fatalf("second Sweep = %d, %v; want 0", n, err)
			}
			if _, err := h.store.Get(ctx, live.ID); err != nil {
				t.Fatalf("live session swept: %v", err)
			}
			st, _ := h.store.Stats(ctx)
			if st.Total != 1 || st.Users != 1 {
				t.Fatalf("stats after sweep = %+v", st)
			}
		})
	}
}

func TestConcurrentHighRiskValidateRotatesOnce(t *testing.T) {
	for _, h := range newHarnesses(t, DefaultConfig()) {
		t.Run(h.name, func(t *testing.T) {
			s := mustCreate(t, h.store, "alice", false)
			hostile := driftFP(func(m *fingerprint.Metadata) {
				m.RemoteAddr = "198.51.100.9:4000"
				m.UserAgent = "curl/8.5.0"
				m.AcceptLanguage = "de-DE"
				m.AcceptEncoding = "identity"
			})

			const workers = 8
			results := make([]Result, workers)
			errs := make([]error, workers)
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i], errs[i] = h.store.Validate(context.Background(), s.ID, hostile)
				}(i)
			}
			wg.Wait()

			rotations := 0
			for i := range results {
				if errs[i] != nil {
					t.Fatalf("worker %d: %v", i, errs[i])
				}
				switch results[i].Outcome {
				case OutcomeValid:
					if !results[i].Rotated {
						t.Fatalf("worker %d validated without rotating", i)
					}
					rotations++
				case OutcomeNotFound:
				default:
					t.Fatalf("worker %d outcome = %v", i, results[i].Outcome)
				}
			}
			if rotations != 1 {
				t.Fatalf("rotations = %d, want exactly 1", rotations)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	bad := []func(*Config){
		func(c *Config) { c.MaxConcurrentSessions = 0 },
		func(c *Config) { c.PrivilegedTTL = 0 },
		func(c *Config) { c.RegularTTL = -time.Second },
		func(c *Config) { c.MaxRotations = -1 },
		func(c *Config) { c.RotationRiskDecay = -1 },
		func(c *Config) { c.ValidationRiskDecay = -5 },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
		if _, err := NewMemoryStore(cfg, nil, nil); err == nil {
			t.Fatalf("case %d: NewMemoryStore accepted invalid config", i)
		}
	}
}
