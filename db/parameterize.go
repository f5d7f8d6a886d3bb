package db

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
)

// ParameterizedSQLTemplate is a struct holding a parsed template with
// parameters extracted and arguments replaced by the '?' symbol.
type ParameterizedSQLTemplate struct {
	Body       []byte
	Parameters []string
}

// String provides a printable representation.
func (p ParameterizedSQLTemplate) String() string {
	tpl := `
Params: %s
Body:   %s
`
	return fmt.Sprintf(tpl, strings.Join(p.Parameters, ", "), string(p.Body))
}

// regexpParam matches lines such as
//
//	,'42' AS SyncKey    /* @param */
//
// for extracting the `SyncKey` parameter and replacing the example value
// with a named parameter, for example:
//
//	,:SyncKey AS SyncKey
//
// Note that the spacing before the marker needs to be precise.
var (
	paramAtoms = []string{
		`(?:date\('[^']+'\))`,        // date('2026-10-01')
		`(?:[a-zA-Z_]\w*\([^\)]*\))`, // any_func(...)
		`(?:'[^']*')`,                // 'a string' or ''
		`(?:-?\d*\.?\d+)`,            // 123 or 1.23 or -5
		`(?:null)`,                   // null
	}

	// regexpParam is made of 4 named components. The 'value' element is
	// built up out of the non-capturing paramAtoms items.
	regexpParam = regexp.MustCompile(fmt.Sprintf(
		`(?P<value>%s)(?P<as>\s+AS\s+)(?P<param>[A-Za-z0-9_]+)(?P<end>\s+/\* @param \*/)`,
		strings.Join(paramAtoms, "|"),
	))
)

// parameterize takes an sql template with inline example values, which
// keep the file runnable on the sqlite command line, and turns them into
// named parameters for a prepared statement.
//
// The inline values are marked with `/* @param */`:
//
//	,20 AS HereLimit    /* @param */
//
// which becomes
//
//	*ParameterizedSQLTemplate{
//	    Parameters: []string{"HereLimit"},
//	    Body      : []byte(",:HereLimit AS HereLimit"),
//	}
//
// A template with no parameters is an error.
func parameterize(tpl []byte) (*ParameterizedSQLTemplate, error) {

	matches := regexpParam.FindAllSubmatch(tpl, -1)
	if len(matches) == 0 {
		return nil, errors.New("parameterize: no parameters found")
	}

	pst := &ParameterizedSQLTemplate{
		Parameters: make([]string, len(matches)),
	}

	paramIdx := regexpParam.SubexpIndex("param")
	for i := range matches {
		pst.Parameters[i] = string(matches[i][paramIdx])
	}

	// Use sqlx named parameters such as `:HereLimit`.
	pst.Body = regexpParam.ReplaceAll(tpl, []byte(`:${param}${as}${param}`))
	return pst, nil
}

// ParameterizeFile takes an sql file and returns a
// ParameterizedSQLTemplate or error.
func ParameterizeFile(fileFS fs.FS, filePath string) (*ParameterizedSQLTemplate, error) {

	fileBytes, err := fs.ReadFile(fileFS, filePath)
	if err != nil {
		return nil, fmt.Errorf("file read error: %w", err)
	}
	query, err := parameterize(fileBytes)
	if err != nil {
		return nil, fmt.Errorf("query template error: %w", err)
	}
	return query, nil

}
