package indexer

import (
	"regexp"
	"strings"
)

var (
	hyphenBreakRe   = regexp.MustCompile(`([\p{L}\p{N}_])-\n([\p{L}\p{N}_])`)
	colonBreakRe    = regexp.MustCompile(`:\s*\n\s+`)
	currencyBreakRe = regexp.MustCompile(`\b(EGP|LE)\s*\n\s*(\p{Nd})`)
	poundBreakRe    = regexp.MustCompile(`(جنيه)\s*\n\s*(\p{Nd})`)
	currencySpaceRe = regexp.MustCompile(`\b(EGP|LE)\s*(\p{Nd})`)
	poundSpaceRe    = regexp.MustCompile(`\s+جنيه\s*`)
	blankRunRe      = regexp.MustCompile(`\n{3,}`)
)

// maxNormalizePasses bounds the fixed-point loop. Every pass only removes line breaks or
// inserts a single space once per currency marker, so real inputs settle in two or three.
const maxNormalizePasses = 8

// Normalize cleans extracted text so numeric facts stay next to their labels across line
// breaks. Only whitespace and line structure change. Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	for i := 0; i < maxNormalizePasses; i++ {
		next := normalizePass(text)
		if next == text {
			break
		}
		text = next
	}
	return text
}

func normalizePass(text string) string {
	text = hyphenBreakRe.ReplaceAllString(text, "$1$2")
	text = colonBreakRe.ReplaceAllString(text, ": ")
	text = currencyBreakRe.ReplaceAllString(text, " $1 $2")
	text = poundBreakRe.ReplaceAllString(text, " $1 $2")
	text = mergeBulletContinuations(text)
	text = currencySpaceRe.ReplaceAllString(text, "$1 $2")
	text = poundSpaceRe.ReplaceAllString(text, " جنيه ")
	return blankRunRe.ReplaceAllString(text, "\n\n")
}

// mergeBulletContinuations appends a non-bullet line to the preceding bullet line.
func mergeBulletContinuations(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if n := len(out); n > 0 && isBullet(out[n-1]) && strings.TrimSpace(line) != "" && !isBullet(line) {
			out[n-1] = strings.TrimRight(out[n-1], " \t") + " " + strings.TrimSpace(line)
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func isBullet(line string) bool {
	line = strings.TrimLeft(line, " \t")
	return strings.HasPrefix(line, "-") || strings.HasPrefix(line, "•") || strings.HasPrefix(line, "·")
}

// StripNUL removes NUL characters left by some extractors.
func StripNUL(text string) string {
	return strings.ReplaceAll(text, "\x00", "")
}
