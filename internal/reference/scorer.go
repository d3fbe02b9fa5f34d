package reference

import (
	"math"

	"github.com/nikhilbhutani/promptcompliance/internal/models"
)

// NeutralScore is the preference alignment reported when there is nothing to compare against.
const NeutralScore = 0.5

const previewRunes = 280

// Score rates how much closer response is to the chosen side of ref than to the rejected side.
func Score(response string, ref *models.ReferenceRecord) (float64, *models.MatchedReference) {
	if ref == nil {
		return NeutralScore, nil
	}

	simChosen := Similarity(response, ref.Chosen)
	simRejected := Similarity(response, ref.Rejected)

	score := NeutralScore
	if total := simChosen + simRejected; total > 0 {
		score = simChosen / total
	}

	return score, &models.MatchedReference{
		ReferenceID:          ref.ReferenceID,
		SimilarityToChosen:   Round4(simChosen),
		SimilarityToRejected: Round4(simRejected),
		ChosenPreview:        preview(ref.Chosen),
		RejectedPreview:      preview(ref.Rejected),
	}
}

// Round4 rounds v to four decimal places.
func Round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewRunes {
		return s
	}
	return string(r[:previewRunes])
}
