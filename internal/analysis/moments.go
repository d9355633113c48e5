package analysis

import (
	"regexp"
	"strings"

	"github.com/makeasinger/autoedit/internal/model"
)

const (
	hookTokens           = 15
	hookMaxSeconds       = 5.0
	thumbnailWindowShare = 0.3
	maxMomentsPerKind    = 10
)

var (
	reactionPattern  = regexp.MustCompile(`(?i)[!?]*!+[!?]*|\b(?:wow|amazing|incredible|unbelievable|insane|crazy|omg|oh my god|ha(?:ha)+|lol)\b`)
	highlightPattern = regexp.MustCompile(`[$€£]\s?\d[\d,]*(?:\.\d+)?|\b\d[\d,]*(?:\.\d+)?%?|\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+`)
)

// DetectKeyMoments derives a hook, reactions and highlights from the transcript
// and picks a thumbnail time from the audio. Transcript offsets map to time in
// proportion to the transcript's length; there are no word timings.
func DetectKeyMoments(transcript string, duration float64, audio Signal) model.KeyMoments {
	km := model.KeyMoments{
		Reactions:  []model.Moment{},
		Highlights: []model.Moment{},
	}
	if duration <= 0 {
		return km
	}

	if words := strings.Fields(transcript); len(words) > 0 {
		if len(words) > hookTokens {
			words = words[:hookTokens]
		}
		km.Hook = &model.Hook{
			Text:  strings.Join(words, " "),
			Start: 0,
			End:   min(hookMaxSeconds, duration),
		}
	}

	km.Reactions = matchMoments(reactionPattern, transcript, duration)
	km.Highlights = matchMoments(highlightPattern, transcript, duration)
	km.BestThumbnailTime = bestThumbnailTime(audio, duration)
	return km
}

func matchMoments(re *regexp.Regexp, transcript string, duration float64) []model.Moment {
	moments := []model.Moment{}
	if transcript == "" {
		return moments
	}
	length := float64(len(transcript))
	for _, loc := range re.FindAllStringIndex(transcript, -1) {
		if len(moments) == maxMomentsPerKind {
			break
		}
		moments = append(moments, model.Moment{
			Time: roundMillis(float64(loc[0]) / length * duration),
			Text: strings.TrimSpace(transcript[loc[0]:loc[1]]),
		})
	}
	return moments
}

// bestThumbnailTime is the loudest sample within the opening share of the asset.
func bestThumbnailTime(audio Signal, duration float64) *float64 {
	if !audio.Valid() {
		return nil
	}
	limit := duration * thumbnailWindowShare
	best, bestIdx := -1.0, -1
	for i, v := range audio.Values {
		if audio.Time(i) >= limit {
			break
		}
		if v > best {
			best, bestIdx = v, i
		}
	}
	if bestIdx < 0 {
		return nil
	}
	t := audio.Time(bestIdx)
	return &t
}
