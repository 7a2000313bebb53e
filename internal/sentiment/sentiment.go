// Package sentiment scores text with a small polarity/subjectivity lexicon
// and maps the scores to a closed set of labels.
package sentiment

import (
	"bufio"
	_ "embed"
	"strconv"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/stat"

	"github.com/your-org/mediascribe/internal/domain"
)

//go:embed lexicon.tsv
var lexiconTSV string

const (
	positiveThreshold  = 0.1
	negativeThreshold  = -0.1
	objectiveThreshold = 0.3
	negationFactor     = -0.5
	negationWindow     = 1
)

type entry struct {
	polarity     float64
	subjectivity float64
}

var lexicon = parseLexicon(lexiconTSV)

var intensifiers = map[string]float64{
	"very":       1.3,
	"really":     1.3,
	"extremely":  1.5,
	"so":         1.2,
	"too":        1.2,
	"quite":      1.1,
	"highly":     1.4,
	"incredibly": 1.5,
	"truly":      1.3,
	"pretty":     1.1,
	"slightly":   0.7,
	"somewhat":   0.8,
}

var negations = map[string]bool{
	"not":     true,
	"no":      true,
	"never":   true,
	"nothing": true,
	"n't":     true,
	"hardly":  true,
	"neither": true,
	"nor":     true,
}

// Scores are averaged over every lexicon hit in the text.
// Polarity is in [-1, 1], Subjectivity in [0, 1].
type Scores struct {
	Polarity     float64
	Subjectivity float64
}

// Analyze computes lexicon scores for text. Text without any known word
// scores zero on both axes.
func Analyze(text string) Scores {
	tokens := tokenize(text)

	var polarities, subjectivities []float64
	for i, tok := range tokens {
		e, ok := lexicon[tok]
		if !ok {
			continue
		}
		p, s := e.polarity, e.subjectivity

		j := i - 1
		if j >= 0 {
			if m, ok := intensifiers[tokens[j]]; ok {
				p = clamp(p*m, -1, 1)
				s = clamp(s*m, 0, 1)
				j--
			}
		}
		for k := j; k >= 0 && k >= j-negationWindow; k-- {
			if negations[tokens[k]] {
				p *= negationFactor
				break
			}
		}

		polarities = append(polarities, p)
		subjectivities = append(subjectivities, s)
	}

	if len(polarities) == 0 {
		return Scores{}
	}
	return Scores{
		Polarity:     clamp(stat.Mean(polarities, nil), -1, 1),
		Subjectivity: clamp(stat.Mean(subjectivities, nil), 0, 1),
	}
}

// Decide maps scores to a label. The order of the checks matters and both
// polarity bounds are strict.
func Decide(s Scores) domain.Sentiment {
	switch {
	case s.Polarity > positiveThreshold:
		return domain.SentimentPositive
	case s.Polarity < negativeThreshold:
		return domain.SentimentNegative
	case s.Subjectivity < objectiveThreshold:
		return domain.SentimentNeutral
	default:
		return domain.SentimentMixed
	}
}

// Classifier labels provider output. Blank text is never analyzed.
type Classifier struct {
	analyze func(string) Scores
}

// NewClassifier returns a Classifier backed by the built-in lexicon.
func NewClassifier() *Classifier {
	return &Classifier{analyze: Analyze}
}

// Classify returns Unavailable for blank text, otherwise the decided label.
func (c *Classifier) Classify(text string) domain.Sentiment {
	if strings.TrimSpace(text) == "" {
		return domain.SentimentUnavailable
	}
	return Decide(c.analyze(text))
}

// tokenize lowercases text and splits it into words, emitting "n't" as its
// own token so contractions negate like "not".
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\'' && r != '’'
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, "’", "'")
		if strings.HasSuffix(f, "n't") {
			if stem := strings.TrimSuffix(f, "n't"); stem != "" {
				tokens = append(tokens, stem)
			}
			tokens = append(tokens, "n't")
			continue
		}
		f = strings.Trim(f, "'")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func parseLexicon(raw string) map[string]entry {
	out := map[string]entry{}
	sc := bufio.NewScanner(strings.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) != 3 {
			continue
		}
		p, perr := strconv.ParseFloat(cols[1], 64)
		s, serr := strconv.ParseFloat(cols[2], 64)
		if perr != nil || serr != nil {
			continue
		}
		out[cols[0]] = entry{polarity: p, subjectivity: s}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
