package config

import (
	"fmt"
	"os"
	"strings"
	"unicode"
)

// URLPlaceholder marks where a media URL goes in display.player_cmd. When no
// argument carries it, the URL is appended.
const URLPlaceholder = "{url}"

// ExpandURL returns argv with every URLPlaceholder replaced by url.
func ExpandURL(argv []string, url string) []string {
	out := make([]string, 0, len(argv)+1)
	substituted := false
	for _, arg := range argv {
		if strings.Contains(arg, URLPlaceholder) {
			arg = strings.ReplaceAll(arg, URLPlaceholder, url)
			substituted = true
		}
		out = append(out, arg)
	}
	if !substituted && len(out) > 0 {
		out = append(out, url)
	}
	return out
}

// commandLexer splits player_cmd into argv. Double quotes and bare words
// expand $VAR and ${VAR}; single quotes are literal. No shell is involved.
type commandLexer struct {
	input  string
	argv   []string
	word   strings.Builder
	inWord bool
}

func parseArgv(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.HasPrefix(input, "#") {
		return nil, nil
	}

	lx := &commandLexer{input: input}
	runes := []rune(input)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			lx.endWord()
		case r == '\\':
			if i+1 == len(runes) {
				return nil, fmt.Errorf("unterminated escape sequence in command: %q", input)
			}
			i++
			lx.add(string(runes[i]))
		case r == '\'':
			end := indexRune(runes, i+1, '\'')
			if end < 0 {
				return nil, fmt.Errorf("unterminated quote in command: %q", input)
			}
			lx.add(string(runes[i+1 : end]))
			i = end
		case r == '"':
			end := indexRune(runes, i+1, '"')
			if end < 0 {
				return nil, fmt.Errorf("unterminated quote in command: %q", input)
			}
			lx.add(os.ExpandEnv(string(runes[i+1 : end])))
			i = end
		case r == '$':
			end := i + 1
			for end < len(runes) && !unicode.IsSpace(runes[end]) && !strings.ContainsRune(`'"\`, runes[end]) {
				end++
			}
			lx.add(os.ExpandEnv(string(runes[i:end])))
			i = end - 1
		default:
			lx.add(string(r))
		}
	}
	lx.endWord()
	return lx.argv, nil
}

func (lx *commandLexer) add(s string) {
	lx.word.WriteString(s)
	lx.inWord = true
}

// endWord flushes the current word. A quoted empty string is kept as an
// argument.
func (lx *commandLexer) endWord() {
	if !lx.inWord {
		return
	}
	lx.argv = append(lx.argv, lx.word.String())
	lx.word.Reset()
	lx.inWord = false
}

func indexRune(runes []rune, from int, target rune) int {
	for i := from; i < len(runes); i++ {
		if runes[i] == target {
			return i
		}
	}
	return -1
}
