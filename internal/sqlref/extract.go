// Package sqlref finds the tables a SQL statement reads from and checks them
// against a cell's allow-list.
//
// Extraction is a text heuristic, not a parser. Comments are blanked first,
// then it looks for identifiers after FROM and JOIN, so it over-approximates:
// tables named inside subqueries count, and string literals that contain
// "FROM x" are reported as references too. Table names that are reserved
// words are only recognized when quoted. Callers that need exact answers
// should supply their own types.ReferenceExtractor.
package sqlref

import (
	"regexp"
	"strings"

	"github.com/mesh-intelligence/quackbook/pkg/types"
)

// ident matches one optionally quoted identifier. Exactly one of the five
// groups is set: double quoted, single quoted, back-ticked, bracketed, bare.
const ident = `(?:"([^"]+)"|'([^']+)'|` + "`([^`]+)`" + `|\[([^\]]+)\]|([A-Za-z_][A-Za-z0-9_$]*))`

// identGroups is the number of capture groups in ident.
const identGroups = 5

var (
	// refPattern anchors on FROM or any JOIN form, allowing the table to
	// sit in parentheses. The second identifier is present when the first
	// one is a schema qualifier.
	refPattern = regexp.MustCompile(`(?i)\b(FROM|JOIN)\b\s*(?:\(\s*)*` + ident + `(?:\s*\.\s*` + ident + `)?`)

	// listPattern continues a FROM list: optional alias, a comma, then
	// the next table.
	listPattern = regexp.MustCompile(`(?i)^\s*(?:AS\s+)?([A-Za-z_][A-Za-z0-9_$]*)?\s*,\s*(?:\(\s*)*` + ident + `(?:\s*\.\s*` + ident + `)?`)

	ctePattern = regexp.MustCompile(`(?i)(?:\bWITH(?:\s+RECURSIVE)?|,)\s+["` + "`" + `\[]?([A-Za-z_][A-Za-z0-9_$]*)["` + "`" + `\]]?\s*(?:\([^)]*\)\s*)?AS\s*(?:NOT\s+)?(?:MATERIALIZED\s*)?\(`)

	wordBefore = regexp.MustCompile(`([A-Za-z_]+)\s*$`)
)

// keywords never count as table names when they appear unquoted after
// FROM or JOIN.
var keywords = map[string]bool{
	"SELECT": true, "WHERE": true, "ON": true, "USING": true, "GROUP": true,
	"ORDER": true, "HAVING": true, "LIMIT": true, "OFFSET": true,
	"UNION": true, "EXCEPT": true, "INTERSECT": true, "JOIN": true,
	"INNER": true, "LEFT": true, "RIGHT": true, "FULL": true, "CROSS": true,
	"OUTER": true, "NATURAL": true, "LATERAL": true, "AS": true,
	"WINDOW": true, "VALUES": true, "SET": true, "RETURNING": true,
}

// fromFunctions use FROM inside their argument list, as in
// EXTRACT(YEAR FROM d).
var fromFunctions = map[string]bool{
	"EXTRACT": true, "SUBSTRING": true, "SUBSTR": true, "TRIM": true,
	"POSITION": true, "OVERLAY": true,
}

// Extractor is the heuristic types.ReferenceExtractor.
type Extractor struct{}

var _ types.ReferenceExtractor = Extractor{}

// Extract implements types.ReferenceExtractor.
func (Extractor) Extract(sql string) []string { return Extract(sql) }

// Extract returns the distinct table names sql reads from, in order of
// first appearance. Names keep the spelling of their first occurrence;
// later spellings that differ only in case are folded into it. CTE names
// defined by the statement are excluded. Returns nil when nothing is
// referenced, as for SELECT 1.
func Extract(sql string) []string {
	sql = blankComments(sql)
	ctes := cteNames(sql)
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		key := strings.ToLower(name)
		if name == "" || seen[key] || ctes[key] {
			return
		}
		seen[key] = true
		out = append(out, name)
	}

	for _, m := range refPattern.FindAllStringSubmatchIndex(sql, -1) {
		keyword := strings.ToUpper(sql[m[2]:m[3]])
		if keyword == "FROM" && insideFromFunction(sql, m[0]) {
			continue
		}
		opened := strings.Count(sql[m[0]:identStart(m[4:])], "(")
		name, ok := pickName(sql, m[4:])
		if !ok {
			// A derived table such as FROM (SELECT ...) AS d may still be
			// followed by a comma list.
			if keyword == "FROM" && opened > 0 {
				open := strings.LastIndexByte(sql[:identStart(m[4:])], '(')
				if end := matchParen(sql, open); end >= 0 {
					for _, next := range fromList(sql[end+1:], 0) {
						add(next)
					}
				}
			}
			continue
		}
		add(name)
		if keyword == "FROM" {
			for _, next := range fromList(sql[m[1]:], opened) {
				add(next)
			}
		}
	}
	return out
}

// identStart returns the offset where the first ident of a match begins.
func identStart(idx []int) int {
	for g := 0; g < identGroups; g++ {
		if idx[2*g] >= 0 {
			start := idx[2*g]
			if g < identGroups-1 {
				start-- // opening quote
			}
			return start
		}
	}
	return -1
}

// matchParen returns the offset of the parenthesis closing the one at open,
// or -1.
func matchParen(sql string, open int) int {
	depth := 0
	for i := open; i < len(sql); i++ {
		switch sql[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// pickName resolves the identifier groups of one match. idx holds the index
// pairs for both identifier slots. The qualified name wins when a schema
// qualifier is present.
func pickName(sql string, idx []int) (string, bool) {
	const width = 2 * identGroups
	if name, quoted := groupValue(sql, idx[width:2*width]); name != "" {
		return name, quoted || !keywords[strings.ToUpper(name)]
	}
	name, quoted := groupValue(sql, idx[0:width])
	if name == "" {
		return "", false
	}
	return name, quoted || !keywords[strings.ToUpper(name)]
}

// groupValue returns the first set group among the index pairs of one
// ident and whether it was a quoted form. The bare form is last.
func groupValue(sql string, idx []int) (string, bool) {
	for g := 0; g < identGroups; g++ {
		start, end := idx[2*g], idx[2*g+1]
		if start >= 0 {
			return sql[start:end], g < identGroups-1
		}
	}
	return "", false
}

// blankComments replaces -- line comments and /* */ block comments with
// spaces, keeping byte offsets and newlines. Comment markers inside quoted
// strings and identifiers are left alone. An unterminated block comment runs
// to the end of sql.
func blankComments(sql string) string {
	if !strings.Contains(sql, "--") && !strings.Contains(sql, "/*") {
		return sql
	}
	out := []byte(sql)
	var quote byte
	for i := 0; i < len(out); i++ {
		c := out[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '[':
			quote = ']'
		case c == '-' && i+1 < len(out) && out[i+1] == '-':
			for ; i < len(out) && out[i] != '\n'; i++ {
				out[i] = ' '
			}
		case c == '/' && i+1 < len(out) && out[i+1] == '*':
			out[i], out[i+1] = ' ', ' '
			for i += 2; i < len(out); i++ {
				if out[i] == '*' && i+1 < len(out) && out[i+1] == '/' {
					out[i], out[i+1] = ' ', ' '
					i++
					break
				}
				if out[i] != '\n' {
					out[i] = ' '
				}
			}
		}
	}
	return string(out)
}

// fromList follows comma-separated tables after the first table of a FROM
// clause. Up to closers parentheses that wrapped that table are skipped
// first. It stops at the first thing that is not "alias, table".
func fromList(rest string, closers int) []string {
	for ; closers > 0; closers-- {
		trimmed := strings.TrimLeft(rest, " \t\r\n")
		if !strings.HasPrefix(trimmed, ")") {
			break
		}
		rest = trimmed[1:]
	}

	var out []string
	for {
		m := listPattern.FindStringSubmatchIndex(rest)
		if m == nil {
			return out
		}
		if m[2] >= 0 && keywords[strings.ToUpper(rest[m[2]:m[3]])] {
			return out
		}
		name, ok := pickName(rest, m[4:])
		if !ok {
			return out
		}
		out = append(out, name)
		rest = rest[m[1]:]
	}
}

// insideFromFunction reports whether the FROM at pos sits directly inside
// the argument list of a function such as EXTRACT.
func insideFromFunction(sql string, pos int) bool {
	depth := 0
	for i := pos - 1; i >= 0; i-- {
		switch sql[i] {
		case ')':
			depth++
		case '(':
			if depth > 0 {
				depth--
				continue
			}
			m := wordBefore.FindStringSubmatch(sql[:i])
			return m != nil && fromFunctions[strings.ToUpper(m[1])]
		}
	}
	return false
}

// cteNames returns the lower-cased names of common table expressions
// defined in sql.
func cteNames(sql string) map[string]bool {
	names := make(map[string]bool)
	for _, m := range ctePattern.FindAllStringSubmatch(sql, -1) {
		names[strings.ToLower(m[1])] = true
	}
	return names
}
