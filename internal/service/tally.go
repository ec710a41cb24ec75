package service

import (
	"math"

	"classpoll/internal/domain"
)

// ComputeTally derives per-option counts and percentages from a ledger
// snapshot and a poll definition. It is a pure function; percentages
// round independently and need not sum to 100.
func ComputeTally(poll *domain.Poll, responses map[string]domain.Response, eligible int) domain.Tally {
	counts := make(map[string]int, len(poll.Options))
	for _, resp := range responses {
		counts[resp.Option]++
	}

	total := len(responses)

	options := make([]domain.OptionTally, 0, len(poll.Options))
	for _, opt := range poll.Options {
		count := counts[opt.Text]
		percentage := 0
		if total > 0 {
			percentage = int(math.Round(float64(count) * 100 / float64(total)))
		}
		options = append(options, domain.OptionTally{
			Text:       opt.Text,
			IsCorrect:  opt.IsCorrect,
			Count:      count,
			Percentage: percentage,
		})
	}

	return domain.Tally{
		Question:       poll.Question,
		Options:        options,
		TotalResponses: total,
		TotalEligible:  eligible,
	}
}
