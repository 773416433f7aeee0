package sqlite

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"sync"

	"modernc.org/sqlite"
)

var (
	registerOnce sync.Once
	registerErr  error

	patternCache sync.Map
)

// registerRegexp installs REGEXP on every connection the modernc driver
// opens from now on.
func registerRegexp() error {
	registerOnce.Do(func() {
		registerErr = sqlite.RegisterDeterministicScalarFunction("regexp", 2,
			func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
				ok, err := regexpMatch(args[0], args[1])
				if err != nil || !ok {
					return int64(0), err
				}
				return int64(1), nil
			})
	})
	return registerErr
}

// regexpMatch implements "text REGEXP pattern". SQLite passes the pattern
// first. Only text values can match.
func regexpMatch(pattern, text any) (bool, error) {
	var s string
	switch t := text.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return false, nil
	}
	if pattern == nil {
		return false, nil
	}
	re, err := compileCached(fmt.Sprint(pattern))
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}

func compileCached(expr string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(expr); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	patternCache.Store(expr, re)
	return re, nil
}
