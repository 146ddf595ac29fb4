package credits

import (
	"fmt"
	"math"
)

// Rate prices one model in credits per 1000 tokens.
type Rate struct {
	Input  float64
	Output float64
}

// modelRates prices the AI models available to hosted projects.
var modelRates = map[string]Rate{
	"gpt-4o":            {Input: 5, Output: 15},
	"gpt-4o-mini":       {Input: 0.15, Output: 0.6},
	"claude-3-5-sonnet": {Input: 3, Output: 15},
	"claude-3-haiku":    {Input: 0.25, Output: 1.25},
}

// KnownModel reports whether credits can be calculated for model.
func KnownModel(model string) bool {
	_, ok := modelRates[model]
	return ok
}

// Calculate converts a token count into billed credits, rounding up so any
// nonzero usage bills at least one credit.
func Calculate(model string, inputTokens, outputTokens int64) (int64, error) {
	rate, ok := modelRates[model]
	if !ok {
		return 0, fmt.Errorf("credits: unknown model %q", model)
	}
	raw := float64(inputTokens)/1000*rate.Input + float64(outputTokens)/1000*rate.Output
	return int64(math.Ceil(raw)), nil
}
