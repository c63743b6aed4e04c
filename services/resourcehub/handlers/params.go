// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/ResourceHub/services/resourcehub/datatypes"
)

// parseListOptions reads limit, offset, sort and order from the query.
// Out-of-range limits are clamped; malformed numbers are rejected.
func parseListOptions(c *gin.Context) (datatypes.ListOptions, error) {
	var opts datatypes.ListOptions
	var err error
	if opts.Limit, err = queryInt(c, "limit"); err != nil {
		return opts, err
	}
	if opts.Offset, err = queryInt(c, "offset"); err != nil {
		return opts, err
	}
	if opts.Offset < 0 {
		return opts, fieldError("offset", "must not be negative")
	}
	opts.Sort = c.Query("sort")
	if order := strings.ToLower(c.Query("order")); order != "" {
		if order != datatypes.OrderAsc && order != datatypes.OrderDesc {
			return opts, fieldError("order", "must be asc or desc")
		}
		opts.Order = order
	}
	return opts.Normalize(), nil
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fieldError(name, "must be an integer")
	}
	return n, nil
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(c *gin.Context, name string) (*datatypes.Date, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	d, err := datatypes.ParseDate(raw)
	if err != nil {
		return nil, fieldError(name, "must be a date (YYYY-MM-DD)")
	}
	return &d, nil
}

// queryTime parses an optional RFC 3339 timestamp or a bare date. A bare
// date is midnight UTC of that day, or of the following day when endOfDay
// is set, so an exclusive upper bound still covers the whole date.
func queryTime(c *gin.Context, name string, endOfDay bool) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if d, err := datatypes.ParseDate(raw); err == nil {
		if endOfDay {
			return d.Time().AddDate(0, 0, 1), nil
		}
		return d.Time(), nil
	}
	return time.Time{}, fieldError(name, "must be an RFC 3339 timestamp or a date")
}

// queryBool parses an optional boolean parameter.
func queryBool(c *gin.Context, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fieldError(name, "must be true or false")
	}
	return &b, nil
}

// queryEnum reads an optional parameter restricted to allowed values.
func queryEnum[T ~string](c *gin.Context, name string, allowed []T) (T, error) {
	raw := T(c.Query(name))
	if raw == "" || slices.Contains(allowed, raw) {
		return raw, nil
	}
	vals := make([]string, len(allowed))
	for i, a := range allowed {
		vals[i] = string(a)
	}
	return "", fieldError(name, "must be one of "+strings.Join(vals, ", "))
}

// queryUUID reads an optional id parameter.
func queryUUID(c *gin.Context, name string) (string, error) {
	raw := c.Query(name)
	if raw == "" {
		return "", nil
	}
	if _, err := uuid.Parse(raw); err != nil {
		return "", fieldError(name, "must be a UUID")
	}
	return raw, nil
}
