// Package extstring provides extended string functions beyond the CEL
// standard library. Register them via evaluator.WithFunctions or via the
// top-level ext.WithString() helper.
//
// Indices and lengths count code points, matching size() and string
// indexing. Locale-aware case mapping and Unicode normalization use
// golang.org/x/text.
package extstring

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/sandrolain/gocel/pkg/ext/extutil"
	"github.com/sandrolain/gocel/pkg/functions"
	"github.com/sandrolain/gocel/pkg/types"
)

// maxRepeatBytes bounds the output of repeat().
const maxRepeatBytes = 1 << 20

const (
	s    = types.KindString
	i    = types.KindInt
	list = types.KindList
)

// All returns all extended string overloads.
func All() []functions.Overload {
	return extutil.Concat(
		IndexOf(),
		LastIndexOf(),
		Substring(),
		CharAt(),
		Replace(),
		Split(),
		Join(),
		Trim(),
		Reverse(),
		ASCIICase(),
		LocaleCase(),
		Normalize(),
		Capitalize(),
		CamelCase(),
		SnakeCase(),
		KebabCase(),
		Repeat(),
		Words(),
	)
}

// IndexOf returns the overloads for str.indexOf(search [, start]).
// Returns -1 when not found.
func IndexOf() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		runes := []rune(extutil.Str(args[0]))
		search := extutil.Str(args[1])
		start := 0
		if len(args) == 3 {
			n := extutil.Int(args[2])
			if n < 0 || n > int64(len(runes)) {
				return nil, types.Errorf(types.ErrIndexOutOfRange, "indexOf: start %d out of range", n)
			}
			start = int(n)
		}
		rest := string(runes[start:])
		idx := strings.Index(rest, search)
		if idx < 0 {
			return types.Int(-1), nil
		}
		return types.Int(start + utf8.RuneCountInString(rest[:idx])), nil
	}
	return []functions.Overload{
		extutil.Method("indexOf", "string_index_of", fn, s, s),
		extutil.Method("indexOf", "string_index_of_start", fn, s, s, i),
	}
}

// LastIndexOf returns the overload for str.lastIndexOf(search).
func LastIndexOf() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		str := extutil.Str(args[0])
		idx := strings.LastIndex(str, extutil.Str(args[1]))
		if idx < 0 {
			return types.Int(-1), nil
		}
		return types.Int(utf8.RuneCountInString(str[:idx])), nil
	}
	return []functions.Overload{extutil.Method("lastIndexOf", "string_last_index_of", fn, s, s)}
}

// Substring returns the overloads for str.substring(start [, end]).
func Substring() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		runes := []rune(extutil.Str(args[0]))
		start, end := extutil.Int(args[1]), int64(len(runes))
		if len(args) == 3 {
			end = extutil.Int(args[2])
		}
		if start < 0 || end > int64(len(runes)) || start > end {
			return nil, types.Errorf(types.ErrIndexOutOfRange,
				"substring: range [%d, %d) out of bounds for length %d", start, end, len(runes))
		}
		return types.String(runes[start:end]), nil
	}
	return []functions.Overload{
		extutil.Method("substring", "string_substring", fn, s, i),
		extutil.Method("substring", "string_substring_range", fn, s, i, i),
	}
}

// CharAt returns the overload for str.charAt(index). The index equal to the
// length yields an empty string.
func CharAt() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		runes := []rune(extutil.Str(args[0]))
		idx := extutil.Int(args[1])
		switch {
		case idx == int64(len(runes)):
			return types.String(""), nil
		case idx < 0 || idx > int64(len(runes)):
			return nil, types.Errorf(types.ErrIndexOutOfRange, "charAt: index %d out of range", idx)
		}
		return types.String(runes[idx]), nil
	}
	return []functions.Overload{extutil.Method("charAt", "string_char_at", fn, s, i)}
}

// Replace returns the overloads for str.replace(old, new [, n]). A negative
// n replaces every occurrence.
func Replace() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		n := -1
		if len(args) == 4 {
			n = int(extutil.Int(args[3]))
		}
		return types.String(strings.Replace(extutil.Str(args[0]), extutil.Str(args[1]), extutil.Str(args[2]), n)), nil
	}
	return []functions.Overload{
		extutil.Method("replace", "string_replace", fn, s, s, s),
		extutil.Method("replace", "string_replace_n", fn, s, s, s, i),
	}
}

// Split returns the overloads for str.split(sep [, n]).
func Split() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		n := -1
		if len(args) == 3 {
			n = int(extutil.Int(args[2]))
		}
		parts := strings.SplitN(extutil.Str(args[0]), extutil.Str(args[1]), n)
		out := make(types.List, len(parts))
		for k, p := range parts {
			out[k] = types.String(p)
		}
		return out, nil
	}
	return []functions.Overload{
		extutil.Method("split", "string_split", fn, s, s),
		extutil.Method("split", "string_split_n", fn, s, s, i),
	}
}

// Join returns the overloads for list.join([sep]).
func Join() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		parts, err := extutil.Strings("join", args[0])
		if err != nil {
			return nil, err
		}
		sep := ""
		if len(args) == 2 {
			sep = extutil.Str(args[1])
		}
		return types.String(strings.Join(parts, sep)), nil
	}
	return []functions.Overload{
		extutil.Method("join", "list_join", fn, list),
		extutil.Method("join", "list_join_string", fn, list, s),
	}
}

// Trim returns the overload for str.trim(), removing leading and trailing
// white space.
func Trim() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		return types.String(strings.TrimSpace(extutil.Str(args[0]))), nil
	}
	return []functions.Overload{extutil.Method("trim", "string_trim", fn, s)}
}

// Reverse returns the overload for str.reverse().
func Reverse() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		runes := []rune(extutil.Str(args[0]))
		for a, b := 0, len(runes)-1; a < b; a, b = a+1, b-1 {
			runes[a], runes[b] = runes[b], runes[a]
		}
		return types.String(runes), nil
	}
	return []functions.Overload{extutil.Method("reverse", "string_reverse", fn, s)}
}

// ASCIICase returns the overloads for str.lowerAscii() and str.upperAscii(),
// which only touch ASCII letters.
func ASCIICase() []functions.Overload {
	mapASCII := func(f func(byte) byte) functions.Func {
		return func(_ context.Context, args ...types.Value) (types.Value, error) {
			b := []byte(extutil.Str(args[0]))
			for k, c := range b {
				if c < utf8.RuneSelf {
					b[k] = f(c)
				}
			}
			return types.String(b), nil
		}
	}
	lower := mapASCII(func(c byte) byte {
		if 'A' <= c && c <= 'Z' {
			return c + 'a' - 'A'
		}
		return c
	})
	upper := mapASCII(func(c byte) byte {
		if 'a' <= c && c <= 'z' {
			return c - ('a' - 'A')
		}
		return c
	})
	return []functions.Overload{
		extutil.Method("lowerAscii", "string_lower_ascii", lower, s),
		extutil.Method("upperAscii", "string_upper_ascii", upper, s),
	}
}

// LocaleCase returns the overloads for str.upper([locale]), str.lower([locale])
// and str.title([locale]). The locale is a BCP 47 tag such as "tr" or "nl";
// without one the language-neutral mapping applies.
func LocaleCase() []functions.Overload {
	caser := func(name string, mk func(language.Tag, ...cases.Option) cases.Caser) functions.Func {
		return func(_ context.Context, args ...types.Value) (types.Value, error) {
			tag := language.Und
			if len(args) == 2 {
				var err error
				tag, err = language.Parse(extutil.Str(args[1]))
				if err != nil {
					return nil, extutil.Errorf(name, "invalid locale %q", extutil.Str(args[1]))
				}
			}
			return types.String(mk(tag).String(extutil.Str(args[0]))), nil
		}
	}

	var ovs []functions.Overload
	for _, c := range []struct {
		name string
		mk   func(language.Tag, ...cases.Option) cases.Caser
	}{
		{"upper", cases.Upper},
		{"lower", cases.Lower},
		{"title", cases.Title},
	} {
		fn := caser(c.name, c.mk)
		ovs = append(ovs,
			extutil.Method(c.name, "string_"+c.name, fn, s),
			extutil.Method(c.name, "string_"+c.name+"_locale", fn, s, s),
		)
	}
	return ovs
}

var normForms = map[string]norm.Form{
	"NFC":  norm.NFC,
	"NFD":  norm.NFD,
	"NFKC": norm.NFKC,
	"NFKD": norm.NFKD,
}

// Normalize returns the overloads for str.normalize([form]). The form is one
// of NFC (default), NFD, NFKC or NFKD.
func Normalize() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		form := norm.NFC
		if len(args) == 2 {
			f, ok := normForms[strings.ToUpper(extutil.Str(args[1]))]
			if !ok {
				return nil, extutil.Errorf("normalize", "unknown form %q", extutil.Str(args[1]))
			}
			form = f
		}
		return types.String(form.String(extutil.Str(args[0]))), nil
	}
	return []functions.Overload{
		extutil.Method("normalize", "string_normalize", fn, s),
		extutil.Method("normalize", "string_normalize_form", fn, s, s),
	}
}

// Capitalize returns the overload for str.capitalize(): the first character
// upper case, the rest lower case.
func Capitalize() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		runes := []rune(extutil.Str(args[0]))
		for k, r := range runes {
			if k == 0 {
				runes[k] = unicode.ToUpper(r)
			} else {
				runes[k] = unicode.ToLower(r)
			}
		}
		return types.String(runes), nil
	}
	return []functions.Overload{extutil.Method("capitalize", "string_capitalize", fn, s)}
}

// splitWordsRe splits camelCase, snake_case, kebab-case and spaced words.
var splitWordsRe = regexp.MustCompile(`[_\-\s]+|([a-z])([A-Z])`)

func splitIntoWords(str string) []string {
	expanded := splitWordsRe.ReplaceAllStringFunc(str, func(m string) string {
		if len(m) == 2 && m[0] >= 'a' && m[0] <= 'z' {
			return string(m[0]) + " " + string(m[1])
		}
		return " "
	})
	return strings.Fields(expanded)
}

// CamelCase returns the overload for str.camelCase().
func CamelCase() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		words := splitIntoWords(extutil.Str(args[0]))
		if len(words) == 0 {
			return types.String(""), nil
		}
		var b strings.Builder
		b.WriteString(strings.ToLower(words[0]))
		for _, w := range words[1:] {
			runes := []rune(strings.ToLower(w))
			runes[0] = unicode.ToUpper(runes[0])
			b.WriteString(string(runes))
		}
		return types.String(b.String()), nil
	}
	return []functions.Overload{extutil.Method("camelCase", "string_camel_case", fn, s)}
}

func joinWords(sep string) functions.Func {
	return func(_ context.Context, args ...types.Value) (types.Value, error) {
		words := splitIntoWords(extutil.Str(args[0]))
		for k, w := range words {
			words[k] = strings.ToLower(w)
		}
		return types.String(strings.Join(words, sep)), nil
	}
}

// SnakeCase returns the overload for str.snakeCase().
func SnakeCase() []functions.Overload {
	return []functions.Overload{extutil.Method("snakeCase", "string_snake_case", joinWords("_"), s)}
}

// KebabCase returns the overload for str.kebabCase().
func KebabCase() []functions.Overload {
	return []functions.Overload{extutil.Method("kebabCase", "string_kebab_case", joinWords("-"), s)}
}

// Repeat returns the overload for str.repeat(n).
func Repeat() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		str, n := extutil.Str(args[0]), extutil.Int(args[1])
		if n < 0 {
			return nil, extutil.Errorf("repeat", "count must be non-negative, got %d", n)
		}
		if n > 0 && int64(len(str)) > maxRepeatBytes/n {
			return nil, extutil.Errorf("repeat", "result exceeds %d bytes", maxRepeatBytes)
		}
		return types.String(strings.Repeat(str, int(n))), nil
	}
	return []functions.Overload{extutil.Method("repeat", "string_repeat", fn, s, i)}
}

// Words returns the overload for str.words(), splitting on white space.
func Words() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		parts := strings.Fields(extutil.Str(args[0]))
		out := make(types.List, len(parts))
		for k, p := range parts {
			out[k] = types.String(p)
		}
		return out, nil
	}
	return []functions.Overload{extutil.Method("words", "string_words", fn, s)}
}
