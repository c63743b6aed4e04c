// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/ResourceHub/services/resourcehub/datatypes"
)

// timeLayout is fixed width in UTC, so string order is time order.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return formatTime(*t)
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullDate(d *datatypes.Date) any {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.String()
}

func parseNullDate(ns sql.NullString) (*datatypes.Date, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := datatypes.ParseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// nullString stores "" as NULL, for nullable foreign keys.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type rowScanner interface {
	Scan(dest ...any) error
}

// where accumulates AND-ed conditions and their bound arguments. Conditions
// are package literals; user values only ever travel in args.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// in adds "col IN (?, ?, ...)" for a non-empty value list.
func (w *where) in(col string, values ...any) {
	if len(values) == 0 {
		return
	}
	w.add(col+" IN ("+placeholders(len(values))+")", values...)
}

// like adds a case-insensitive substring match over any of cols.
func (w *where) like(q string, cols ...string) {
	if q == "" {
		return
	}
	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
	parts := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		parts[i] = "LOWER(" + c + ") LIKE ? ESCAPE '!'"
		args[i] = pattern
	}
	w.add("("+strings.Join(parts, " OR ")+")", args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// escapeLike escapes LIKE wildcards with '!', which needs no quoting in
// either dialect's string literals.
func escapeLike(s string) string {
	r := strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)
	return r.Replace(s)
}

// orderBy renders ORDER BY for opts using the sortable column whitelist.
// Unknown sort keys fall back to created_at. id breaks ties so paging is
// stable.
func orderBy(opts datatypes.ListOptions, sortable map[string]string) string {
	col, ok := sortable[opts.Sort]
	if !ok {
		col = "created_at"
	}
	dir := "DESC"
	if opts.Order == datatypes.OrderAsc {
		dir = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, id %s", col, dir, dir)
}

// list runs the count and page queries for a filtered listing and calls
// scan for every row.
func (s *Store) list(ctx context.Context, table, columns string, w *where, sortable map[string]string,
	opts datatypes.ListOptions, scan func(rowScanner) error) (int, error) {
	opts = opts.Normalize()

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+w.String(), w.args...).Scan(&total); err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}

	query := "SELECT " + columns + " FROM " + table + w.String() + orderBy(opts, sortable) + " LIMIT ? OFFSET ?"
	args := append(append([]any{}, w.args...), opts.Limit, opts.Offset)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return 0, err
		}
	}
	return total, rows.Err()
}

// countBy returns row counts grouped by col.
func (s *Store) countBy(ctx context.Context, table, col string, w *where) (map[string]int, error) {
	if w == nil {
		w = &where{}
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+col+", COUNT(*) FROM "+table+w.String()+" GROUP BY "+col, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		out[key] = n
	}
	return out, rows.Err()
}
