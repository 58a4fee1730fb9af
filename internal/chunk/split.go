package chunk

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// Strategy selects how oversize text is divided into units
type Strategy string

const (
	StrategySentence  Strategy = "sentence"
	StrategyBullet    Strategy = "bullet"
	StrategyParagraph Strategy = "paragraph"
)

// DefaultMaxChars is the default chunk size limit in characters
const DefaultMaxChars = 512

// ParseStrategy validates a strategy name
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(name))); s {
	case StrategySentence, StrategyBullet, StrategyParagraph:
		return s, nil
	case "":
		return StrategySentence, nil
	default:
		return "", eris.Errorf("chunk: unknown split strategy %q", name)
	}
}

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	paragraphRe   = regexp.MustCompile(`\n[ \t\r]*\n`)
	bulletMarkers = "•-*–"
)

func collapse(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// Split divides text into chunks of at most maxChars characters.
// Whitespace is collapsed; text that already fits is returned whole.
func Split(text string, strategy Strategy, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	content := collapse(text)
	if content == "" {
		return nil
	}
	if runeLen(content) <= maxChars {
		return []string{content}
	}

	units := splitUnits(text, strategy)
	if len(units) == 0 {
		units = []string{content}
	}
	return pack(units, maxChars)
}

// splitUnits breaks raw text into collapsed, non-empty units
func splitUnits(text string, strategy Strategy) []string {
	var raw []string
	switch strategy {
	case StrategyBullet:
		for _, line := range strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '•' }) {
			raw = append(raw, strings.TrimLeft(strings.TrimSpace(line), bulletMarkers+" \t"))
		}
	case StrategyParagraph:
		raw = paragraphRe.Split(text, -1)
	default:
		raw = sentences(collapse(text))
	}

	units := make([]string, 0, len(raw))
	for _, u := range raw {
		if u = collapse(u); u != "" {
			units = append(units, u)
		}
	}
	return units
}

// sentences splits after ., ! or ? when followed by whitespace
func sentences(text string) []string {
	var out []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes)-1; i++ {
		switch runes[i] {
		case '.', '!', '?':
			if unicode.IsSpace(runes[i+1]) {
				out = append(out, string(runes[start:i+1]))
				start = i + 1
			}
		}
	}
	out = append(out, string(runes[start:]))
	return out
}

// pack greedily joins units into chunks no longer than maxChars
func pack(units []string, maxChars int) []string {
	var out []string
	buf := ""
	for _, unit := range units {
		if buf != "" {
			if candidate := buf + " " + unit; runeLen(candidate) <= maxChars {
				buf = candidate
				continue
			}
			out = append(out, buf)
			buf = ""
		}
		if runeLen(unit) <= maxChars {
			buf = unit
			continue
		}
		out = append(out, hardSplit(unit, maxChars)...)
	}
	if buf != "" {
		out = append(out, buf)
	}
	return out
}

func hardSplit(unit string, maxChars int) []string {
	var out []string
	runes := []rune(unit)
	for i := 0; i < len(runes); i += maxChars {
		end := i + maxChars
		if end > len(runes) {
			end = len(runes)
		}
		if piece := strings.TrimSpace(string(runes[i:end])); piece != "" {
			out = append(out, piece)
		}
	}
	return out
}
