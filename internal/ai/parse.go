package ai

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	scorePattern   = regexp.MustCompile(`\$([0-9]{1,3})\$`)
	numberRegex    = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)
	ErrParseFailed = errors.New("parse_failed")
)

// ParseScreening extracts the score and rationale from a model reply of the
// form "$<score>$ <rationale>". Without the envelope it falls back to the
// first number in the text. Scores are clamped to 0..100.
func ParseScreening(text string) (*Screening, error) {
	text = strings.TrimSpace(text)
	if m := scorePattern.FindStringSubmatchIndex(text); m != nil {
		v, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
		}
		return &Screening{Score: clampScore(float64(v)), Rationale: rationale(text[:m[0]] + " " + text[m[1]:])}, nil
	}
	loc := numberRegex.FindStringIndex(text)
	if loc == nil {
		return nil, fmt.Errorf("%w: no score found", ErrParseFailed)
	}
	v, err := strconv.ParseFloat(text[loc[0]:loc[1]], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	return &Screening{Score: clampScore(v), Rationale: rationale(text[loc[1]:])}, nil
}

func clampScore(v float64) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return int(v + 0.5)
}

func rationale(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimLeft(s, ":-. ")
	if r := []rune(s); len(r) > 280 {
		s = string(r[:280])
	}
	return s
}
