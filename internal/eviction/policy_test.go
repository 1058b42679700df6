package eviction

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Humphrey-He/guardcache/internal/storage"
	"github.com/Humphrey-He/guardcache/internal/utils"
	cacheerrors "github.com/Humphrey-He/guardcache/pkg/errors"
	"github.com/Humphrey-He/guardcache/pkg/level"
)

func fill(t *testing.T, s *storage.Store, clock *utils.ManualClock, prefix string, n int, size int64, p level.Priority) {
	t.Helper()
	for i := 0; i < n; i++ {
		now := clock.NowMillis()
		_, err := s.Insert(&storage.Entry{
			Key:            fmt.Sprintf("%s%02d", prefix, i),
			Priority:       p,
			SizeBytes:      size,
			CreatedAt:      now,
			LastAccessedAt: now,
			AccessCount:    1,
		})
		require.NoError(t, err)
		clock.Advance(time.Millisecond)
	}
}

func newEngine(clock *utils.ManualClock, mutate func(*Config)) *Engine {
	cfg := Config{
		MaxSize:             1 << 20,
		MaxEntries:          10,
		Threshold:           0.8,
		PriorityProtection:  true,
		Headroom:            true,
		StormThreshold:      10,
		StormGraceWindow:    5 * time.Second,
		StormCapacityFactor: 1.25,
		Clock:               clock,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewEngine(cfg)
}

func TestEvictLowestPriorityFirst(t *testing.T) {
	clock := utils.NewManualClock(1000)
	s := storage.NewStore(storage.Config{})
	fill(t, s, clock, "low", 3, 1, level.Low)
	fill(t, s, clock, "normal", 8, 1, level.Normal)

	e := newEngine(clock, func(c *Config) { c.Headroom = false })
	res, err := e.Evict(s, ReasonAdmission, "normal07")
	require.NoError(t, err)

	require.Len(t, res.Evicted, 1)
	assert.Equal(t, "low00", res.Evicted[0].Key, "oldest low-priority entry goes first")
	assert.Equal(t, 10, s.Len())
	assert.Equal(t, level.PressureCritical, res.Pressure)
}

func TestHeadroomGrowsWithPressure(t *testing.T) {
	clock := utils.NewManualClock(1000)
	s := storage.NewStore(storage.Config{})
	fill(t, s, clock, "k", 11, 1, level.Normal)

	res, err := newEngine(clock, nil).Evict(s, ReasonAdmission, "")
	require.NoError(t, err)
	assert.Len(t, res.Evicted, 2, "critical pressure reclaims ten percent below the limit")
	assert.Equal(t, 9, s.Len())
}

func TestHeadroomIsNotAStorm(t *testing.T) {
	clock := utils.NewManualClock(1000)
	s := storage.NewStore(storage.Config{})
	fill(t, s, clock, "k", 11, 1, level.Normal)

	e := newEngine(clock, func(c *Config) { c.StormThreshold = 2 })
	res, err := e.Evict(s, ReasonAdmission, "")
	require.NoError(t, err)
	assert.Len(t, res.Evicted, 2)
	assert.Equal(t, 1, res.Required, "only the first eviction was needed to get back under the limit")
	assert.False(t, res.Storm)
	assert.False(t, e.InGraceWindow())
}

func TestExcludedKeyIsNeverEvicted(t *testing.T) {
	clock := utils.NewManualClock(1000)
	s := storage.NewStore(storage.Config{})
	fill(t, s, clock, "k", 11, 1, level.Low)

	res, err := newEngine(clock, nil).Evict(s, ReasonAdmission, "k00")
	require.NoError(t, err)
	for _, v := range res.Evicted {
		assert.NotEqual(t, "k00", v.Key)
	}
	_, ok := s.Peek("k00")
	assert.True(t, ok)
}

func TestCriticalEntriesAreProtected(t *testing.T) {
	clock := utils.NewManualClock(1000)
	s := storage.NewStore(storage.Config{})
	fill(t, s, clock, "crit", 1, 1, level.Critical)
	fill(t, s, clock, "low", 20, 1, level.Low)

	res, err := newEngine(clock, nil).Evict(s, ReasonAdmission, "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Evicted)
	_, ok := s.Peek("crit00")
	assert.True(t, ok, "low entries remain, so the critical entry must survive")
}

func TestCriticalEvictedOnlyUnderCriticalPressure(t *testing.T) {
	clock := utils.NewManualClock(1000)

	t.Run("critical pressure", func(t *testing.T) {
		s := storage.NewStore(storage.Config{})
		fill(t, s, clock, "crit", 11, 1, level.Critical)

		res, err := newEngine(clock, nil).Evict(s, ReasonAdmission, "")
		require.NoError(t, err)
		assert.Len(t, res.Evicted, 2)
	})

	t.Run("high pressure", func(t *testing.T) {
		s := storage.NewStore(storage.Config{})
		fill(t, s, clock, "crit", 9, 1, level.Critical)

		res, err := newEngine(clock, nil).Evict(s, ReasonPressure, "")
		require.NoError(t, err)
		assert.Empty(t, res.Evicted)
		assert.Equal(t, level.PressureHigh, res.Pressure)
		assert.Equal(t, 9, s.Len())
	})

	t.Run("protection disabled", func(t *testing.T) {
		s := storage.NewStore(storage.Config{})
		fill(t, s, clock, "crit", 9, 1, level.Critical)

		e := newEngine(clock, func(c *Config) { c.PriorityProtection = false })
		res, err := e.Evict(s, ReasonPressure, "")
		require.NoError(t, err)
		assert.Len(t, res.Evicted, 1)
		assert.Equal(t, 8, s.Len())
	})
}

func TestFloorAndStarvation(t *testing.T) {
	clock := utils.NewManualClock(1000)
	s := storage.NewStore(storage.Config{})
	fill(t, s, clock, "big", 4, 40, level.Normal)

	e := newEngine(clock, func(c *Config) {
		c.MaxSize = 100
		c.MinEntries = 3
	})
	res, err := e.Evict(s, ReasonAdmission, "")
	require.NoError(t, err)

	assert.Len(t, res.Evicted, 1)
	assert.Equal(t, 3, s.Len(), "never below the floor")
	assert.True(t, res.Starved)
}

func TestFloorOnlyStarvesWhenItStopsThePass(t *testing.T) {
	clock := utils.NewManualClock(1000)
	s := storage.NewStore(storage.Config{})
	fill(t, s, clock, "k", 11, 1, level.Normal)

	e := newEngine(clock, func(c *Config) {
		c.MinEntries = 10
		c.Headroom = false
	})
	res, err := e.Evict(s, ReasonAdmission, "")
	require.NoError(t, err)

	assert.Len(t, res.Evicted, 1)
	assert.Equal(t, 10, s.Len())
	assert.False(t, res.Starved, "the constraint was met before the floor was reached")

	fill(t, s, clock, "more", 1, 1, level.Normal)
	e = newEngine(clock, func(c *Config) { c.MinEntries = 10 })
	res, err = e.Evict(s, ReasonAdmission, "")
	require.NoError(t, err)
	assert.Len(t, res.Evicted, 1)
	assert.True(t, res.Starved, "headroom target is below the floor and 10/10 is still critical")
}

func TestStormRelaxesLimitsForGraceWindow(t *testing.T) {
	clock := utils.NewManualClock(1000)
	s := storage.NewStore(storage.Config{})
	fill(t, s, clock, "k", 14, 1, level.Normal)

	e := newEngine(clock, func(c *Config) { c.StormThreshold = 3 })
	res, err := e.Evict(s, ReasonAdmission, "")
	require.NoError(t, err)
	assert.Len(t, res.Evicted, 5)
	assert.Equal(t, 4, res.Required)
	assert.True(t, res.Storm)
	assert.True(t, e.InGraceWindow())

	fill(t, s, clock, "burst", 3, 1, level.Normal)
	require.Equal(t, 12, s.Len())
	assert.False(t, e.NeedsEviction(s), "12 entries fit under the relaxed limit of 12")

	res, err = e.Evict(s, ReasonAdmission, "")
	require.NoError(t, err)
	assert.Empty(t, res.Evicted)

	clock.Advance(6 * time.Second)
	assert.False(t, e.InGraceWindow())
	assert.True(t, e.NeedsEviction(s))
}

func TestPressurePassReclaimsBelowHigh(t *testing.T) {
	clock := utils.NewManualClock(1000)
	s := storage.NewStore(storage.Config{})
	fill(t, s, clock, "k", 9, 1, level.Normal)

	res, err := newEngine(clock, nil).Evict(s, ReasonPressure, "")
	require.NoError(t, err)
	assert.Len(t, res.Evicted, 1)
	assert.Equal(t, 8, s.Len())
	assert.False(t, res.Storm, "storms are only detected on the write path")
}

func TestScoringFaultAbortsPass(t *testing.T) {
	clock := utils.NewManualClock(1000)
	s := storage.NewStore(storage.Config{})
	fill(t, s, clock, "k", 11, 1, level.Normal)

	e := newEngine(clock, func(c *Config) {
		c.Scorer = ScorerFunc(func(*storage.Entry, *ScoreContext) (float64, error) {
			return 0, errors.New("corrupted entry")
		})
	})
	_, err := e.Evict(s, ReasonAdmission, "")
	require.Error(t, err)
	assert.True(t, cacheerrors.IsEvictionFailure(err))
	assert.Equal(t, 11, s.Len(), "nothing is removed when scoring fails")
}

func TestFallback(t *testing.T) {
	clock := utils.NewManualClock(1000)
	s := storage.NewStore(storage.Config{TrackOrder: true})
	fill(t, s, clock, "crit", 1, 1, level.Critical)
	fill(t, s, clock, "low", 3, 1, level.Low)

	e := newEngine(clock, func(c *Config) { c.MinEntries = 2 })

	victim, ok := e.Fallback(s, "low00")
	require.True(t, ok)
	assert.Equal(t, "low01", victim.Key, "critical and excluded entries are skipped")

	victim, ok = e.Fallback(s, "")
	require.True(t, ok)
	assert.Equal(t, "low00", victim.Key)

	_, ok = e.Fallback(s, "")
	assert.False(t, ok, "floor reached")
	assert.Equal(t, 2, s.Len())
}

func TestCompositeScorerOrdering(t *testing.T) {
	ctx := &ScoreContext{Now: 1000}
	base := func() *storage.Entry {
		return &storage.Entry{Priority: level.Normal, LastAccessedAt: 500, AccessCount: 1, ResolutionCost: 10 * time.Millisecond}
	}
	recent, costly, frequent, important := base(), base(), base(), base()
	recent.LastAccessedAt = 999
	costly.ResolutionCost = 500 * time.Millisecond
	frequent.AccessCount = 50
	important.Priority = level.High
	important.LastAccessedAt = 0

	all := []*storage.Entry{base(), recent, costly, frequent, important}
	all[0].LastAccessedAt = 0
	for _, e := range all {
		ctx.Observe(e)
	}

	s := NewCompositeScorer(DefaultWeights(), true, true)
	score := func(e *storage.Entry) float64 {
		v, err := s.Score(e, ctx)
		require.NoError(t, err)
		return v
	}

	plain := base()
	assert.Greater(t, score(recent), score(plain))
	assert.Greater(t, score(costly), score(plain))
	assert.Greater(t, score(frequent), score(plain))

	best := &storage.Entry{Priority: level.Normal, LastAccessedAt: 1000, AccessCount: 50, ResolutionCost: 500 * time.Millisecond}
	assert.Greater(t, score(important), score(best), "one priority step outweighs every other term")

	noPriority := NewCompositeScorer(DefaultWeights(), true, false)
	v1, _ := noPriority.Score(important, ctx)
	v2, _ := noPriority.Score(best, ctx)
	assert.Less(t, v1, v2)

	noRecency := NewCompositeScorer(DefaultWeights(), false, true)
	v1, _ = noRecency.Score(recent, ctx)
	v2, _ = noRecency.Score(plain, ctx)
	assert.Equal(t, v1, v2)
}
