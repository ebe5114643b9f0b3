package conversation

import (
	"math"

	"github.com/bclt-academy/voicequiz/pkg/core/types"
)

// Summary is the finalized outcome of one session.
type Summary struct {
	Correct          int     `json:"correct"`
	PartiallyCorrect int     `json:"partially_correct"`
	Incorrect        int     `json:"incorrect"`
	Total            int     `json:"total"`
	Percent          int     `json:"percent"`
	ScorePercentage  float64 `json:"score_percentage"`
}

// NewSummary derives the total exchange count and a whole percentage.
func NewSummary(resp *types.SummaryResponse) Summary {
	if resp == nil {
		return Summary{}
	}
	s := Summary{
		Correct:         resp.CorrectCount,
		ScorePercentage: resp.ScorePercentage,
	}
	if resp.PartiallyCorrectCount != nil {
		s.PartiallyCorrect = *resp.PartiallyCorrectCount
	}
	if resp.IncorrectCount != nil {
		s.Incorrect = *resp.IncorrectCount
	}
	s.Total = s.Correct + s.PartiallyCorrect + s.Incorrect

	pct := resp.ScorePercentage
	if math.IsNaN(pct) {
		pct = 0
	}
	s.Percent = int(math.Round(math.Max(0, math.Min(100, pct))))
	return s
}
