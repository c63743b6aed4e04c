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

import "context"

// CountProjectsByStatus implements store.DashboardStore.
func (s *Store) CountProjectsByStatus(ctx context.Context) (map[string]int, error) {
	out, err := s.countBy(ctx, "projects", "status", nil)
	if err != nil {
		return nil, s.wrap("count projects", err)
	}
	return out, nil
}

// CountRequestsByStatus implements store.DashboardStore.
func (s *Store) CountRequestsByStatus(ctx context.Context) (map[string]int, error) {
	out, err := s.countBy(ctx, "resource_requests", "status", nil)
	if err != nil {
		return nil, s.wrap("count resource requests", err)
	}
	return out, nil
}

// CountOpenRAID implements store.DashboardStore.
func (s *Store) CountOpenRAID(ctx context.Context) (map[string]int, map[string]int, error) {
	open := func() *where {
		w := &where{}
		w.add("status NOT IN ("+placeholders(len(closedRAIDStatuses))+")", closedRAIDStatuses...)
		return w
	}
	byKind, err := s.countBy(ctx, "raid_items", "kind", open())
	if err != nil {
		return nil, nil, s.wrap("count open raid by kind", err)
	}
	bySeverity, err := s.countBy(ctx, "raid_items", "severity", open())
	if err != nil {
		return nil, nil, s.wrap("count open raid by severity", err)
	}
	return byKind, bySeverity, nil
}
