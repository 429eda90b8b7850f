package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// unquote decodes the raw text of a string or bytes literal token, prefix
// and quotes included, into its byte content.
func unquote(lit string) (string, error) {
	raw, isBytes := false, false
	i := 0
	for i < len(lit) && lit[i] != '"' && lit[i] != '\'' {
		switch lit[i] {
		case 'r', 'R':
			raw = true
		case 'b', 'B':
			isBytes = true
		}
		i++
	}
	body := lit[i:]
	switch {
	case len(body) >= 6 && (strings.HasPrefix(body, `"""`) || strings.HasPrefix(body, `'''`)):
		body = body[3 : len(body)-3]
	case len(body) >= 2:
		body = body[1 : len(body)-1]
	default:
		return "", fmt.Errorf("malformed literal %s", lit)
	}
	if raw || !strings.ContainsRune(body, '\\') {
		return body, nil
	}
	return unescape(body, isBytes)
}

// unescape processes the backslash escapes of a quoted literal body.
//
// Supported escapes: \a \b \f \n \r \t \v \\ \? \" \' \` \xHH, octal \OOO,
// \uHHHH and \UHHHHHHHH. In bytes literals \x and octal escapes produce raw
// bytes and the Unicode escapes are rejected; in strings all numeric escapes
// denote code points.
func unescape(s string, isBytes bool) (string, error) {
	var sb strings.Builder
	sb.Grow(len(s))

	for i := 0; i < len(s); {
		c := s[i]
		if c != '\\' {
			sb.WriteByte(c)
			i++
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("unterminated escape sequence")
		}
		e := s[i]
		i++
		switch e {
		case 'a':
			sb.WriteByte('\a')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'v':
			sb.WriteByte('\v')
		case '\\', '?', '"', '\'', '`':
			sb.WriteByte(e)
		case 'x', 'X':
			v, err := parseHexDigits(s, i, 2)
			if err != nil {
				return "", err
			}
			i += 2
			writeCode(&sb, rune(v), isBytes)
		case '0', '1', '2', '3':
			if i+2 > len(s) || !isOctal(s[i]) || !isOctal(s[i+1]) {
				return "", fmt.Errorf("invalid octal escape sequence")
			}
			v := rune(e-'0')<<6 | rune(s[i]-'0')<<3 | rune(s[i+1]-'0')
			i += 2
			writeCode(&sb, v, isBytes)
		case 'u', 'U':
			if isBytes {
				return "", fmt.Errorf("unicode escape \\%c not allowed in bytes literal", e)
			}
			n := 4
			if e == 'U' {
				n = 8
			}
			v, err := parseHexDigits(s, i, n)
			if err != nil {
				return "", err
			}
			i += n
			r := rune(v)
			if v > utf8.MaxRune || (r >= 0xD800 && r <= 0xDFFF) {
				return "", fmt.Errorf("invalid unicode code point \\%c%s", e, s[i-n:i])
			}
			sb.WriteRune(r)
		default:
			return "", fmt.Errorf("unsupported escape sequence \\%c", e)
		}
	}
	return sb.String(), nil
}

func parseHexDigits(s string, at, n int) (uint64, error) {
	if at+n > len(s) {
		return 0, fmt.Errorf("truncated hexadecimal escape sequence")
	}
	v, err := strconv.ParseUint(s[at:at+n], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid hexadecimal escape sequence %q", s[at:at+n])
	}
	return v, nil
}

func writeCode(sb *strings.Builder, v rune, isBytes bool) {
	if isBytes {
		sb.WriteByte(byte(v))
		return
	}
	sb.WriteRune(v)
}

func isOctal(c byte) bool {
	return c >= '0' && c <= '7'
}

// parseIntLiteral converts the text of an int token, with an optional
// leading minus sign, into an int64.
func parseIntLiteral(text string, negative bool) (int64, error) {
	base := 10
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		base = 16
		text = text[2:]
	}
	if negative {
		text = "-" + text
	}
	return strconv.ParseInt(text, base, 64)
}

// parseUintLiteral converts the text of a uint token (with its u suffix).
func parseUintLiteral(text string) (uint64, error) {
	text = strings.TrimRight(text, "uU")
	base := 10
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		base = 16
		text = text[2:]
	}
	return strconv.ParseUint(text, base, 64)
}
