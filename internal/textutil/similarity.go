package textutil

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/hbollon/go-edlib"
)

// Normalize lowercases text and replaces every non letter/digit rune with a space.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Ratio returns the indel similarity of two strings scaled to [0, 100]:
// 2*LCS / (len(a)+len(b)).
func Ratio(a, b string) int {
	return int(math.RoundToEven(ratio(a, b)))
}

func ratio(a, b string) float64 {
	total := len([]rune(a)) + len([]rune(b))
	if total == 0 {
		return 100
	}
	return float64(2*edlib.LCS(a, b)) / float64(total) * 100
}

// TokenSetRatio compares the sorted token intersection of a and b against each
// side's intersection-plus-remainder and returns the best pairwise Ratio.
func TokenSetRatio(a, b string) int {
	ta := tokenSet(Normalize(a))
	tb := tokenSet(Normalize(b))
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var inter, onlyA, onlyB []string
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			inter = append(inter, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range tb {
		if _, ok := ta[tok]; !ok {
			onlyB = append(onlyB, tok)
		}
	}
	sort.Strings(inter)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	sect := strings.Join(inter, " ")
	combinedA := strings.TrimSpace(sect + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(sect + " " + strings.Join(onlyB, " "))

	best := ratio(combinedA, combinedB)
	if sect != "" {
		best = math.Max(best, ratio(sect, combinedA))
		best = math.Max(best, ratio(sect, combinedB))
	}
	return int(math.RoundToEven(best))
}

func tokenSet(text string) map[string]struct{} {
	fields := strings.Fields(text)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
