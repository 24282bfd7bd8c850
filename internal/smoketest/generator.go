package smoketest

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/okian/turnover/internal/domain/features"
	"github.com/okian/turnover/pkg/logger"
)

// generateRequests returns n in-domain requests. The first ones are the
// form defaults and both domain corners; the rest are uniform random.
func generateRequests(ctx context.Context, cfg *Config, stats *Stats) []Request {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	logger.Get().Info(ctx, "generating feature vectors",
		logger.Int("count", cfg.NumRequests),
		logger.Int64("seed", int64(seed)),
	)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	fixed := []Request{
		fromVector(features.Default()),
		corner(func(f features.Field) float64 { return f.Min }),
		corner(func(f features.Field) float64 { return f.Max }),
	}

	out := make([]Request, 0, cfg.NumRequests)
	for i := 0; i < cfg.NumRequests; i++ {
		if i < len(fixed) {
			out = append(out, fixed[i])
			continue
		}
		out = append(out, randomRequest(rng))
	}
	stats.Generated = len(out)
	return out
}

func randomRequest(rng *rand.Rand) Request {
	var values [features.Count]float64
	for i, f := range features.Fields() {
		steps := math.Floor((f.Max - f.Min) / f.Step)
		values[i] = f.Min + float64(rng.IntN(int(steps)+1))*f.Step
		if f.Kind == features.Float {
			values[i] = math.Round(values[i]*100) / 100
		}
	}
	return fromVector(features.Clamp(values))
}

func corner(pick func(features.Field) float64) Request {
	var values [features.Count]float64
	for i, f := range features.Fields() {
		values[i] = pick(f)
	}
	return fromVector(features.Clamp(values))
}

func fromVector(v features.Vector) Request {
	return Request{
		SatisfactionLevel:   v.SatisfactionLevel(),
		TimeSpendCompany:    v.TimeSpendCompany(),
		AverageMonthlyHours: v.AverageMonthlyHours(),
		NumberProject:       v.NumberProject(),
		LastEvaluation:      v.LastEvaluation(),
	}
}
