package analysis

import (
	"regexp"
	"sort"
	"strings"

	"github.com/makeasinger/autoedit/internal/model"
)

const (
	minBigramRepeats = 3
	minFillerRepeats = 5
)

var fillerLexicon = map[string]struct{}{
	"um": {}, "uh": {}, "er": {}, "ah": {}, "like": {}, "so": {},
	"well": {}, "actually": {}, "basically": {}, "literally": {},
}

var wordPattern = regexp.MustCompile(`[a-z0-9']+`)

func tokenize(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

// AnalyzeRepetition counts repeated bigrams and filler words. A bigram seen at
// least three times is a repetition; a filler word seen at least five times is a
// filler entry. Results are ordered by count, highest first, then by phrase.
func AnalyzeRepetition(transcript string) []model.Repetition {
	reps := []model.Repetition{}
	tokens := tokenize(transcript)
	if len(tokens) == 0 {
		return reps
	}

	bigrams := make(map[string]int)
	for i := 0; i+1 < len(tokens); i++ {
		bigrams[tokens[i]+" "+tokens[i+1]]++
	}
	fillers := make(map[string]int)
	for _, tok := range tokens {
		if _, ok := fillerLexicon[tok]; ok {
			fillers[tok]++
		}
	}

	for phrase, count := range bigrams {
		if count >= minBigramRepeats {
			reps = append(reps, model.Repetition{Phrase: phrase, Count: count, Kind: model.RepetitionPhrase})
		}
	}
	for word, count := range fillers {
		if count >= minFillerRepeats {
			reps = append(reps, model.Repetition{Phrase: word, Count: count, Kind: model.RepetitionFiller})
		}
	}

	sort.Slice(reps, func(i, j int) bool {
		if reps[i].Count != reps[j].Count {
			return reps[i].Count > reps[j].Count
		}
		if reps[i].Phrase != reps[j].Phrase {
			return reps[i].Phrase < reps[j].Phrase
		}
		return reps[i].Kind < reps[j].Kind
	})
	return reps
}
