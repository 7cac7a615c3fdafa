package config

import (
	"fmt"
	"strings"
)

// stripJSONC blanks comments and trailing commas so encoding/json accepts the
// text. Every other byte keeps its offset, so decoder positions still point
// into the user's file.
func stripJSONC(src string) (string, error) {
	out := []byte(src)
	comma := -1 // a comma not yet followed by a value

	for i := 0; i < len(out); i++ {
		switch c := out[i]; {
		case c == '"':
			i = stringEnd(out, i)
			comma = -1
		case c == '/' && i+1 < len(out) && out[i+1] == '/':
			for ; i < len(out) && out[i] != '\n' && out[i] != '\r'; i++ {
				out[i] = ' '
			}
		case c == '/' && i+1 < len(out) && out[i+1] == '*':
			n := strings.Index(src[i+2:], "*/")
			if n < 0 {
				line, _ := position(src, int64(i+1))
				return "", fmt.Errorf("line %d: unterminated block comment", line)
			}
			end := i + 2 + n + 2
			blank(out[i:end])
			i = end - 1
		case c == ',':
			comma = i
		case c == '}' || c == ']':
			if comma >= 0 {
				out[comma] = ' '
			}
			comma = -1
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
		default:
			comma = -1
		}
	}
	return string(out), nil
}

// stringEnd returns the index of the quote closing the string opened at i.
func stringEnd(b []byte, i int) int {
	for i++; i < len(b); i++ {
		switch b[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return len(b) - 1
}

// blank spaces out b but keeps line breaks.
func blank(b []byte) {
	for i, c := range b {
		if c != '\n' && c != '\r' {
			b[i] = ' '
		}
	}
}

// position converts a decoder offset (bytes consumed) to a 1-based line and
// column of the last consumed byte.
func position(src string, offset int64) (line, col int) {
	n := min(max(int(offset), 1), len(src))
	if n == 0 {
		return 1, 1
	}
	before := src[:n-1]
	line = strings.Count(before, "\n") + 1
	col = n - strings.LastIndexByte(before, '\n') - 1
	return line, col
}

func lineOf(src string, offset int64) int {
	line, _ := position(src, offset)
	return line
}
