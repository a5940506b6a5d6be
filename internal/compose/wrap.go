package compose

import (
	"strings"

	"golang.org/x/image/font"
)

func measure(face font.Face, s string) float64 {
	return float64(font.MeasureString(face, s)) / 64
}

// Wrap packs words greedily into lines whose measured width stays within
// budget. A single word wider than the budget is hard-split into hyphenated
// chunks.
func Wrap(text string, face font.Face, budget float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	var line string

	for _, word := range words {
		if measure(face, word) > budget {
			// Flush the running line, then split the oversized word.
			if line != "" {
				lines = append(lines, line)
				line = ""
			}
			chunks := splitWord(word, face, budget)
			for i := 0; i < len(chunks)-1; i++ {
				lines = append(lines, chunks[i]+"-")
			}
			line = chunks[len(chunks)-1]
			continue
		}

		if line == "" {
			line = word
			continue
		}

		candidate := line + " " + word
		if measure(face, candidate) <= budget {
			line = candidate
		} else {
			lines = append(lines, line)
			line = word
		}
	}

	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

// splitWord cuts word into chunks so each chunk plus a trailing hyphen fits
// the budget. Concatenating the chunks reproduces the original word.
func splitWord(word string, face font.Face, budget float64) []string {
	runes := []rune(word)
	var chunks []string
	var chunk []rune

	for _, r := range runes {
		candidate := append(chunk, r)
		if len(chunk) > 0 && measure(face, string(candidate)+"-") > budget {
			chunks = append(chunks, string(chunk))
			chunk = []rune{r}
			continue
		}
		chunk = candidate
	}
	if len(chunk) > 0 {
		chunks = append(chunks, string(chunk))
	}
	return chunks
}
