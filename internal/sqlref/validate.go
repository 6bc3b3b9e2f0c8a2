package sqlref

import (
	"strings"

	"github.com/mesh-intelligence/quackbook/pkg/types"
)

// ValidateAccess checks sql against the tables a cell has selected, using
// the heuristic Extractor. See ValidateAccessWith.
func ValidateAccess(sql string, allowed []string) error {
	return ValidateAccessWith(Extractor{}, sql, allowed)
}

// ValidateAccessWith checks sql against allowed using x to find references.
//
// An empty allow-list always fails with types.ErrNoTablesSelected, even for
// statements that read no table: a cell must declare its scope before it
// runs. A statement with no references passes any non-empty list. Otherwise
// every referenced table must appear in allowed, compared
// case-insensitively; the returned *types.AccessError names all that do not.
func ValidateAccessWith(x types.ReferenceExtractor, sql string, allowed []string) error {
	if len(allowed) == 0 {
		return types.ErrNoTablesSelected
	}

	referenced := x.Extract(sql)
	if len(referenced) == 0 {
		return nil
	}

	allowedSet := make(map[string]bool, len(allowed))
	for _, t := range allowed {
		allowedSet[strings.ToLower(t)] = true
	}

	var unauthorized []string
	for _, t := range referenced {
		if !allowedSet[strings.ToLower(t)] {
			unauthorized = append(unauthorized, t)
		}
	}
	if len(unauthorized) > 0 {
		return &types.AccessError{Tables: unauthorized}
	}
	return nil
}
