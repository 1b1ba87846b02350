// Package repositories implements data access for the user-scoped record
// store. All mutation methods are owner-scoped: the WHERE clause carries
// both the row id and the owner id, so a mismatch reads as not-found and
// nothing leaks about rows the caller does not own.
package repositories

import (
	"fmt"
	"strings"

	"github.com/foresee-health/outbreaklens-engine/pkg/models"
)

// whereBuilder accumulates conjunctive WHERE predicates with positional args.
type whereBuilder struct {
	conds []string
	args  []any
}

// add appends a predicate whose single placeholder is written as $%d.
func (b *whereBuilder) add(cond string, val any) {
	b.args = append(b.args, val)
	b.conds = append(b.conds, fmt.Sprintf(cond, len(b.args)))
}

// addBare appends a predicate with no argument (e.g. NOW() comparisons).
func (b *whereBuilder) addBare(cond string) {
	b.conds = append(b.conds, cond)
}

// clause renders the WHERE clause, or an empty string when unconstrained.
func (b *whereBuilder) clause() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

// setBuilder accumulates UPDATE SET assignments with positional args.
type setBuilder struct {
	sets []string
	args []any
}

// addValue appends an assignment with the given value.
func (b *setBuilder) addValue(col string, val any) {
	b.args = append(b.args, val)
	b.sets = append(b.sets, fmt.Sprintf("%s = $%d", col, len(b.args)))
}

// addArg appends a bare argument (for WHERE placeholders after the SET
// list) and returns its position.
func (b *setBuilder) addArg(val any) int {
	b.args = append(b.args, val)
	return len(b.args)
}

// addOptional applies the tri-state patch semantics: unset fields are
// skipped, null fields clear the column, set fields assign the value.
func addOptional[T any](b *setBuilder, col string, o models.Optional[T]) {
	if !o.Set {
		return
	}
	if !o.Valid {
		b.sets = append(b.sets, col+" = NULL")
		return
	}
	b.addValue(col, o.Value)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// substring wraps a filter value for ILIKE substring matching. LIKE
// metacharacters in the value are escaped so they match literally.
func substring(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// orderClause renders ORDER BY against a per-entity column whitelist.
// Unknown or empty keys fall back to creation time descending.
func orderClause(allowed map[string]string, page models.Page) string {
	col, ok := allowed[page.OrderBy]
	if !ok {
		return " ORDER BY created_at DESC"
	}
	dir := " ASC"
	if page.Desc {
		dir = " DESC"
	}
	return " ORDER BY " + col + dir
}
