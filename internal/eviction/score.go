package eviction

import (
	"math"

	"github.com/Humphrey-He/guardcache/internal/storage"
)

// Weights configures the composite eviction score.
// The priority weight must exceed the sum of the other three so that the
// priority rank always dominates: each of the other terms is normalised to [0, 1].
//
// Weights 配置复合淘汰分数。
// 优先级权重必须大于其他三项权重之和，保证优先级始终占主导：其他各项都被归一化到[0, 1]。
type Weights struct {
	Priority  float64 // Per priority step / 每个优先级等级
	Recency   float64 // Recently read entries are safer / 最近访问的条目更安全
	Cost      float64 // Expensive entries are safer / 代价高的条目更安全
	Frequency float64 // Frequently read entries are safer / 访问频繁的条目更安全
}

// DefaultWeights returns the default score weights.
//
// DefaultWeights 返回默认的分数权重。
func DefaultWeights() Weights {
	return Weights{
		Priority:  10,
		Recency:   0.4,
		Cost:      0.35,
		Frequency: 0.25,
	}
}

// ScoreContext carries the normalisation bounds of one eviction pass.
//
// ScoreContext 携带一次淘汰过程的归一化边界。
type ScoreContext struct {
	Now          int64 // Current monotonic milliseconds / 当前单调毫秒时间
	OldestAccess int64 // Smallest LastAccessedAt among candidates / 候选条目中最早的访问时间
	MaxCostMs    int64 // Largest ResolutionCost among candidates / 候选条目中最大的解析代价
	MaxAccess    int64 // Largest AccessCount among candidates / 候选条目中最大的访问次数

	observed bool
}

// Observe widens the bounds to include e.
func (c *ScoreContext) Observe(e *storage.Entry) {
	if !c.observed || e.LastAccessedAt < c.OldestAccess {
		c.OldestAccess = e.LastAccessedAt
		c.observed = true
	}
	if ms := e.ResolutionCost.Milliseconds(); ms > c.MaxCostMs {
		c.MaxCostMs = ms
	}
	if e.AccessCount > c.MaxAccess {
		c.MaxAccess = e.AccessCount
	}
}

// Scorer ranks eviction candidates: lower scores are evicted first.
//
// Scorer 为淘汰候选条目打分：分数越低越先被淘汰。
type Scorer interface {
	// Score returns the retention score of e.
	//
	// Score 返回条目e的保留分数。
	//
	// Parameters:
	//   - e: The candidate entry
	//   - ctx: Normalisation bounds of the current pass
	//
	// Returns:
	//   - float64: The score, higher means safer
	//   - error: A fault that aborts the pass
	Score(e *storage.Entry, ctx *ScoreContext) (float64, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(e *storage.Entry, ctx *ScoreContext) (float64, error)

// Score implements Scorer.
func (f ScorerFunc) Score(e *storage.Entry, ctx *ScoreContext) (float64, error) {
	return f(e, ctx)
}

// CompositeScorer combines priority, recency, resolution cost and access frequency.
//
// CompositeScorer 组合优先级、最近访问时间、解析代价和访问频率。
type CompositeScorer struct {
	weights Weights
}

// NewCompositeScorer creates a composite scorer.
// Disabling LRU zeroes the recency term; disabling priority eviction zeroes the priority term.
//
// NewCompositeScorer 创建复合打分器。
// 禁用LRU时最近访问项为0；禁用优先级淘汰时优先级项为0。
func NewCompositeScorer(w Weights, useRecency, usePriority bool) *CompositeScorer {
	if !useRecency {
		w.Recency = 0
	}
	if !usePriority {
		w.Priority = 0
	}
	return &CompositeScorer{weights: w}
}

// Score implements Scorer.
func (s *CompositeScorer) Score(e *storage.Entry, ctx *ScoreContext) (float64, error) {
	score := s.weights.Priority * float64(e.Priority.Rank())

	if s.weights.Recency > 0 {
		recency := 1.0
		if span := ctx.Now - ctx.OldestAccess; span > 0 {
			recency = float64(e.LastAccessedAt-ctx.OldestAccess) / float64(span)
		}
		score += s.weights.Recency * clamp01(recency)
	}
	if ctx.MaxCostMs > 0 {
		score += s.weights.Cost * clamp01(float64(e.ResolutionCost.Milliseconds())/float64(ctx.MaxCostMs))
	}
	if ctx.MaxAccess > 0 {
		freq := math.Log1p(float64(e.AccessCount)) / math.Log1p(float64(ctx.MaxAccess))
		score += s.weights.Frequency * clamp01(freq)
	}
	return score, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	}
	return v
}
