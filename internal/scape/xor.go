package scape

import (
	"context"
	"fmt"
	"strings"
)

// XORScape scores the four boolean cases. Each case contributes
// 1-(want-got)^2 and the total is squared, so a perfect network scores 16.
type XORScape struct{}

func (XORScape) Name() string {
	return "xor"
}

func (XORScape) Evaluate(ctx context.Context, agent Agent) (Fitness, Trace, error) {
	return XORScape{}.EvaluateMode(ctx, agent, "gt")
}

func (XORScape) EvaluateMode(ctx context.Context, agent Agent, mode string) (Fitness, Trace, error) {
	cfg, err := xorConfigForMode(mode)
	if err != nil {
		return 0, nil, err
	}
	return evaluateXOR(ctx, cfg, func(ctx context.Context, in []float64) (float64, error) {
		out, err := agent.RunStep(ctx, in)
		if err != nil {
			return 0, err
		}
		if len(out) != 1 {
			return 0, fmt.Errorf("xor requires one output, got %d", len(out))
		}
		return out[0], nil
	})
}

type xorCase struct {
	in   []float64
	want float64
}

type xorModeConfig struct {
	mode  string
	cases []xorCase
}

func xorConfigForMode(mode string) (xorModeConfig, error) {
	base := []xorCase{
		{in: []float64{0, 0}, want: 0},
		{in: []float64{1, 0}, want: 1},
		{in: []float64{0, 1}, want: 1},
		{in: []float64{1, 1}, want: 0},
	}

	switch strings.TrimSpace(strings.ToLower(mode)) {
	case "", "gt":
		return xorModeConfig{mode: "gt", cases: base}, nil
	case "validation":
		return xorModeConfig{
			mode:  "validation",
			cases: []xorCase{base[2], base[1], base[0], base[3]},
		}, nil
	case "test":
		return xorModeConfig{
			mode:  "test",
			cases: []xorCase{base[3], base[1], base[2], base[0]},
		}, nil
	default:
		return xorModeConfig{}, fmt.Errorf("unsupported xor mode: %s", mode)
	}
}

func evaluateXOR(
	ctx context.Context,
	cfg xorModeConfig,
	predict func(context.Context, []float64) (float64, error),
) (Fitness, Trace, error) {
	var score, sse float64
	predictions := make([]float64, 0, len(cfg.cases))
	for _, c := range cfg.cases {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		predicted, err := predict(ctx, c.in)
		if err != nil {
			return 0, nil, err
		}
		predictions = append(predictions, predicted)
		delta := c.want - predicted
		score += 1 - delta*delta
		sse += delta * delta
	}

	mse := 0.0
	if len(cfg.cases) > 0 {
		mse = sse / float64(len(cfg.cases))
	}
	return Fitness(score * score), Trace{
		"mse":         mse,
		"sse":         sse,
		"predictions": predictions,
		"mode":        cfg.mode,
		"cases":       len(cfg.cases),
	}, nil
}
