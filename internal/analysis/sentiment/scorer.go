// Package sentiment scores the tone of filing text with keyword
// dictionaries. It is deterministic and offline.
package sentiment

import (
	"math"
	"strings"
	"unicode"
)

// ------------------------------------------------------------------
// Keyword-based tone scorer for MD&A text.
// Phrases are matched on word boundaries against lowercased text.
// ------------------------------------------------------------------

// positive / negative keyword dictionaries (lowercase).
var positiveWords = map[string]float64{
	"record": 0.6, "growth": 0.4, "grew": 0.4, "increase": 0.3, "increased": 0.3,
	"strong": 0.4, "strength": 0.4, "improved": 0.5, "improvement": 0.5,
	"exceeded": 0.5, "favorable": 0.4, "expansion": 0.4, "momentum": 0.4,
	"robust": 0.5, "profitable": 0.4, "outperformed": 0.6, "gain": 0.3,
	"higher demand": 0.5, "margin expansion": 0.6, "share repurchase": 0.3,
}

var negativeWords = map[string]float64{
	"decline": 0.5, "declined": 0.5, "decrease": 0.3, "decreased": 0.3,
	"weak": 0.4, "weakness": 0.5, "impairment": 0.7, "restructuring": 0.5,
	"unfavorable": 0.4, "headwinds": 0.5, "loss": 0.4, "losses": 0.4,
	"adverse": 0.5, "uncertainty": 0.3, "challenging": 0.4, "downturn": 0.6,
	"write-down": 0.6, "layoffs": 0.6, "litigation": 0.4, "shortfall": 0.5,
}

// riskWords are counted, unweighted, to measure how risk-heavy a Risk
// Factors section reads.
var riskWords = []string{
	"risk", "uncertainty", "adverse", "negative", "decline",
	"failure", "loss", "damage", "harm", "threat", "vulnerable",
	"litigation", "regulatory", "competition", "disruption",
}

// Score is the tone of a block of text.
type Score struct {
	Value      float64 `json:"value"`      // -1.0 (negative) .. +1.0 (positive)
	Confidence float64 `json:"confidence"` // 0.1 .. 0.85
	Matches    int     `json:"matches"`
	Label      string  `json:"label"`
}

// ScoreText returns a tone score for a block of text. Every occurrence of a
// dictionary phrase adds its weight; the net is normalized to -1..+1.
func ScoreText(text string) Score {
	words := tokenize(text)
	if len(words) == 0 {
		return Score{Confidence: 0.1, Label: "Neutral"} // no signal
	}
	joined := " " + strings.Join(words, " ") + " "

	pos, posN := weigh(joined, positiveWords)
	neg, negN := weigh(joined, negativeWords)
	matches := posN + negN

	total := pos + neg
	if matches == 0 || total == 0 {
		return Score{Confidence: 0.1, Label: "Neutral"}
	}

	value := (pos - neg) / total
	// Confidence grows with evidence, saturating well below certainty.
	conf := math.Min(0.2+0.15*math.Log1p(float64(matches)), 0.85)

	return Score{Value: value, Confidence: conf, Matches: matches, Label: label(value)}
}

// Aggregate combines paragraph scores into one, weighting each by its
// confidence.
func Aggregate(scores []Score) Score {
	if len(scores) == 0 {
		return Score{Confidence: 0.1, Label: "Neutral"}
	}
	var weighted, totalWeight, confSum float64
	matches := 0
	for _, s := range scores {
		weighted += s.Value * s.Confidence
		totalWeight += s.Confidence
		confSum += s.Confidence
		matches += s.Matches
	}
	avg := 0.0
	if totalWeight > 0 {
		avg = weighted / totalWeight
	}
	return Score{
		Value:      avg,
		Confidence: confSum / float64(len(scores)),
		Matches:    matches,
		Label:      label(avg),
	}
}

// ScoreSection splits a section into paragraphs, scores each and
// aggregates them, so one long paragraph cannot dominate.
func ScoreSection(section string) Score {
	var scores []Score
	for _, para := range strings.Split(section, "\n") {
		if len(strings.Fields(para)) < 8 {
			continue // headings, table cells
		}
		if s := ScoreText(para); s.Matches > 0 {
			scores = append(scores, s)
		}
	}
	return Aggregate(scores)
}

// RiskScore maps risk-keyword density to a 0..10 scale: ten risk words per
// hundred words scores 10. ok is false for empty text.
func RiskScore(text string) (score float64, ok bool) {
	words := tokenize(text)
	if len(words) == 0 {
		return 0, false
	}
	count := 0
	for _, w := range words {
		for _, k := range riskWords {
			if strings.HasPrefix(w, k) {
				count++
				break
			}
		}
	}
	per1000 := float64(count) / float64(len(words)) * 1000
	return math.Min(10, math.Max(0, per1000/10)), true
}

func label(v float64) string {
	switch {
	case v > 0.3:
		return "Positive"
	case v > 0.1:
		return "Slightly Positive"
	case v < -0.3:
		return "Negative"
	case v < -0.1:
		return "Slightly Negative"
	}
	return "Neutral"
}

// weigh counts whole-word occurrences of each phrase in padded text.
func weigh(padded string, dict map[string]float64) (float64, int) {
	var sum float64
	n := 0
	for phrase, w := range dict {
		if c := strings.Count(padded, " "+phrase+" "); c > 0 {
			sum += w * float64(c)
			n += c
		}
	}
	return sum, n
}

// tokenize lowercases text and splits it into words, keeping inner hyphens.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}
