package evaluator

import (
	"regexp"

	"github.com/sandrolain/gocel/pkg/cache"
	"github.com/sandrolain/gocel/pkg/types"
)

// regexCacheSize bounds the patterns kept compiled. Patterns often come from
// activation data, so the least recently used ones are evicted.
const regexCacheSize = 512

// regexCache holds compiled patterns keyed by source. Compiled expressions
// are immutable and safe for concurrent use.
var regexCache = cache.NewLRU[*regexp.Regexp](regexCacheSize)

// compileRegex returns the cached RE2 program for pattern, compiling it on
// first use. Invalid patterns are not cached.
func compileRegex(pattern string) (*regexp.Regexp, error) {
	return regexCache.GetOrCompile(pattern, func() (*regexp.Regexp, error) {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, types.Errorf(types.ErrInvalidRegex, "invalid regular expression %q: %v", pattern, err).WithCause(err)
		}
		return re, nil
	})
}
