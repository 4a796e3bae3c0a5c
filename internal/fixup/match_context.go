package fixup

import "strings"

// DefaultMinRatio is the minimum fraction of matching context lines
// required to accept a candidate hunk position (spec §4.10).
const DefaultMinRatio = 0.8

// DefaultWindow is how many lines around the expected position are
// searched for a better-matching context.
const DefaultWindow = 20

// contextLines extracts the leading ' '-prefixed (unchanged) and
// '-'-prefixed (removed) lines from a hunk body — the lines that must
// already exist in the target file at the hunk's position.
func contextLines(hunk Hunk) []string {
	var ctx []string
	for _, l := range hunk.Lines {
		if len(l) == 0 {
			ctx = append(ctx, "")
			continue
		}
		switch l[0] {
		case ' ', '-':
			ctx = append(ctx, l[1:])
		}
	}
	return ctx
}

// findBestContextMatch searches [expectedPos-window, expectedPos+window)
// for the position whose following lines best match context, returning
// the best position and its score if it clears minRatio.
func findBestContextMatch(lines []string, expectedPos int, context []string, window int, minRatio float64) (pos int, score float64, ok bool) {
	if len(context) == 0 {
		return expectedPos, 1.0, true
	}

	start := expectedPos - window
	if start < 0 {
		start = 0
	}
	end := expectedPos + window
	if end > len(lines) {
		end = len(lines)
	}

	bestScore := -1.0
	bestPos := -1
	for candidate := start; candidate < end; candidate++ {
		s := contextMatchScore(lines, candidate, context)
		if s >= minRatio && s > bestScore {
			bestScore = s
			bestPos = candidate
		}
	}
	if bestPos < 0 {
		return 0, 0, false
	}
	return bestPos, bestScore, true
}

func contextMatchScore(lines []string, pos int, context []string) float64 {
	if len(context) == 0 {
		return 1.0
	}
	matches := 0
	for i, ctxLine := range context {
		filePos := pos + i
		if filePos >= len(lines) {
			break
		}
		if linesMatch(lines[filePos], ctxLine) {
			matches++
		}
	}
	return float64(matches) / float64(len(context))
}

// linesMatch compares two lines exactly, then falls back to a
// whitespace-normalized comparison (collapse runs of whitespace, trim).
func linesMatch(fileLine, contextLine string) bool {
	if fileLine == contextLine {
		return true
	}
	return normalizeWhitespace(fileLine) == normalizeWhitespace(contextLine)
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
