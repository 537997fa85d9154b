package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// normalizeJSONC blanks comments and trailing commas so the result is plain
// JSON of the same length. Byte offsets in decoder errors therefore still
// point into the file as written.
func normalizeJSONC(content string) (string, error) {
	buf := []byte(content)

	const (
		code = iota
		str
		strEscape
		lineComment
		blockComment
	)
	state := code
	pendingComma := -1

	for i := 0; i < len(buf); i++ {
		ch := buf[i]
		switch state {
		case str:
			if ch == '\\' {
				state = strEscape
			} else if ch == '"' {
				state = code
			}
		case strEscape:
			state = str
		case lineComment:
			if ch == '\n' || ch == '\r' {
				state = code
			} else {
				buf[i] = ' '
			}
		case blockComment:
			if ch == '*' && i+1 < len(buf) && buf[i+1] == '/' {
				buf[i], buf[i+1] = ' ', ' '
				i++
				state = code
			} else if ch != '\n' && ch != '\r' && ch != '\t' {
				buf[i] = ' '
			}
		default:
			switch {
			case ch == '/' && i+1 < len(buf) && buf[i+1] == '/':
				buf[i], buf[i+1] = ' ', ' '
				i++
				state = lineComment
			case ch == '/' && i+1 < len(buf) && buf[i+1] == '*':
				buf[i], buf[i+1] = ' ', ' '
				i++
				state = blockComment
			case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			case ch == '}' || ch == ']':
				if pendingComma >= 0 {
					buf[pendingComma] = ' '
				}
				pendingComma = -1
			case ch == ',':
				pendingComma = i
			default:
				pendingComma = -1
				if ch == '"' {
					state = str
				}
			}
		}
	}

	if state == blockComment {
		return "", errors.New("unterminated block comment in JSONC")
	}
	return string(buf), nil
}

// decodeStrict decodes exactly one JSON object into dst, rejecting unknown
// fields. Errors carry the line and column they refer to.
func decodeStrict(content string, dst any) error {
	decoder := json.NewDecoder(strings.NewReader(content))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return locate(content, err)
	}
	if decoder.More() {
		return locate(content, fmt.Errorf("offset %d: multiple JSON values are not allowed", decoder.InputOffset()))
	}
	if _, err := decoder.Token(); err != nil && !errors.Is(err, io.EOF) {
		return locate(content, err)
	}
	return nil
}

func locate(content string, err error) error {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return err
	}
	line, col := lineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

// lineCol converts a decoder offset (one past the offending byte) to a
// 1-based position.
func lineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}
	end := min(int(offset), len(content)) - 1
	prefix := content[:end]
	lastNL := strings.LastIndexByte(prefix, '\n')
	return strings.Count(prefix, "\n") + 1, len(prefix) - lastNL
}
