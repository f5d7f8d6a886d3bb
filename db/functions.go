package db

// functions.go registers a REGEXP function as set out in the package docs for
// modernc.org/sqlite.RegisterFunction and modernc.org/sqlite.FunctionImpl. sqlite
// rewrites "X REGEXP Y" as regexp(Y, X), so the pattern is the first argument.

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"modernc.org/sqlite"
)

var registerOnce sync.Once

// RegisterFunctions registers the custom Go functions with the sqlite driver.
func RegisterFunctions() {
	registerOnce.Do(func() {
		sqlite.MustRegisterDeterministicScalarFunction(
			// Register the function "REGEXP" globally for all connections.
			"REGEXP",
			2,
			func(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
				pattern, ok := args[0].(string)
				if !ok {
					return nil, errors.New("expected argv[0] to be text")
				}
				var s string
				switch arg1 := args[1].(type) {
				case string:
					s = arg1
				case nil:
					return false, nil
				default:
					s = fmt.Sprint(arg1)
				}

				matched, err := regexp.MatchString(pattern, s)
				if err != nil {
					return nil, fmt.Errorf("bad regular expression: %q", err)
				}
				return matched, nil
			},
		)
	})
}
