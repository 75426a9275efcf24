package pager

// Package pager provides keyset ("cursor") pagination primitives for GORM.
//
// Overview
//
// Pagination is driven by an opaque Cursor token carrying a traversal
// direction (after/before) and the ordering-field values of a page boundary
// row. The Pager turns a cursor plus a multi-column ordering into a strict
// lexicographic boundary filter, an ORDER BY clause and a limit with one
// sentinel row of lookahead, so a single query answers both "give me the
// page" and "is there another page".
//
// Key concepts
//   - Cursor: encoded (direction, boundary values) token. Opaque to callers.
//   - Orderings: multi-column ordering with explicit directions. The trailing
//     column must be unique per row, or boundary placement is ambiguous.
//   - Pager: applies ordering, boundary filter and limit to a GORM query.
//   - DerivePage: trims the sentinel row and attributes previous/next cursors.
//
// See README for examples and usage details.
