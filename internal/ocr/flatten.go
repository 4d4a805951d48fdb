package ocr

import "strings"

// Flatten turns pages into one string per line: word texts joined by a single
// space, pages then lines in the order given. Lines without words are skipped.
func Flatten(pages []PageResult) []string {
	var out []string
	for _, page := range pages {
		for _, line := range page.Lines {
			if len(line.Words) == 0 {
				continue
			}
			words := make([]string, len(line.Words))
			for i, w := range line.Words {
				words[i] = w.Text
			}
			out = append(out, strings.Join(words, " "))
		}
	}
	return out
}
