package model

import (
	"fmt"
	"sort"
	"strings"
)

// ClassroomNorm is the UDISE+ category -> students-per-classroom mapping
// (§4.2). It is a configuration structure, not an inline CASE expression, so
// the policy contract lives in exactly one place (§9 "Norm tables as inline
// CASE expressions").
var ClassroomNorm = map[int]int{
	1: 30, 2: 30, 3: 30,
	4: 35, 5: 35,
	6: 40, 7: 40, 8: 40, 9: 40, 10: 40, 11: 40,
}

// PTRNorm is the UDISE+ category -> pupil-teacher-ratio mapping (§4.3).
var PTRNorm = map[int]int{
	1: 30, 2: 30, 3: 30, 5: 30, 6: 30,
	4: 35, 7: 35, 8: 35, 9: 35, 10: 35, 11: 35,
}

// DefaultClassroomNorm is used when a school's category is missing or
// outside {1..11}: the most permissive norm, per §4.2's error-handling rule,
// with the caller expected to log a warning.
const DefaultClassroomNorm = 40

// DefaultPTRNorm mirrors DefaultClassroomNorm for the teacher-adequacy
// engine.
const DefaultPTRNorm = 35

// ValidCategory reports whether code is a recognised UDISE+ category.
func ValidCategory(code int) bool {
	_, ok := ClassroomNorm[code]
	return ok
}

// ClassroomNormFor resolves the classroom norm for a category, falling back
// to DefaultClassroomNorm (and reporting that a fallback occurred) for an
// unrecognised code.
func ClassroomNormFor(category int) (norm int, usedFallback bool) {
	if n, ok := ClassroomNorm[category]; ok {
		return n, false
	}
	return DefaultClassroomNorm, true
}

// PTRNormFor resolves the PTR norm for a category, falling back to
// DefaultPTRNorm for an unrecognised code.
func PTRNormFor(category int) (norm int, usedFallback bool) {
	if n, ok := PTRNorm[category]; ok {
		return n, false
	}
	return DefaultPTRNorm, true
}

// normCaseSQL renders a single SQL CASE expression from a category->norm
// map, so the set-oriented UPDATE statements of §4.2/§4.3 derive their norm
// from the one Go mapping above instead of duplicating the policy table at
// every call site (§9 "Norm tables as inline CASE expressions").
func normCaseSQL(column string, norms map[int]int, fallback int) string {
	categories := make([]int, 0, len(norms))
	for c := range norms {
		categories = append(categories, c)
	}
	sort.Ints(categories)

	var b strings.Builder
	b.WriteString("CASE ")
	b.WriteString(column)
	for _, c := range categories {
		fmt.Fprintf(&b, " WHEN %d THEN %d", c, norms[c])
	}
	fmt.Fprintf(&b, " ELSE %d END", fallback)
	return b.String()
}

// ClassroomNormCaseSQL renders the classroom-norm lookup for column (the
// school_category expression) as a SQL CASE, sourced from ClassroomNorm.
func ClassroomNormCaseSQL(column string) string {
	return normCaseSQL(column, ClassroomNorm, DefaultClassroomNorm)
}

// PTRNormCaseSQL renders the PTR-norm lookup for column as a SQL CASE,
// sourced from PTRNorm.
func PTRNormCaseSQL(column string) string {
	return normCaseSQL(column, PTRNorm, DefaultPTRNorm)
}

// UnknownCategoryError is a configuration error (§7a): a stage encountered a
// category code outside the policy contract.
type UnknownCategoryError struct {
	SchoolID string
	Category int
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown UDISE+ category %d for school %s", e.Category, e.SchoolID)
}
