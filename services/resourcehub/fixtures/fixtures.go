// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fixtures loads YAML fixture sets into the store.
//
// Child records reference their project by code and resources by email,
// so a fixture file never contains generated ids. Seeding is additive:
// projects and resources that already exist are left untouched, and the
// children of an existing project are skipped.
package fixtures

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/ResourceHub/pkg/extensions"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/datatypes"
	"github.com/AleutianAI/ResourceHub/services/resourcehub/store"
)

// SeedUser is the user id recorded on audit events written by Seed.
const SeedUser = "seed"

//go:embed demo.yaml
var demoYAML []byte

// File is the document layout of a fixture file.
type File struct {
	Projects   []Project   `yaml:"projects"`
	Resources  []Resource  `yaml:"resources"`
	Milestones []Milestone `yaml:"milestones"`
	RAID       []RAIDItem  `yaml:"raid"`
	Requests   []Request   `yaml:"requests"`
}

type Project struct {
	Code        string          `yaml:"code"`
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Status      string          `yaml:"status"`
	Owner       string          `yaml:"owner"`
	StartDate   *datatypes.Date `yaml:"start_date"`
	EndDate     *datatypes.Date `yaml:"end_date"`
	Budget      float64         `yaml:"budget"`
}

type Resource struct {
	Name        string `yaml:"name"`
	Email       string `yaml:"email"`
	RoleTitle   string `yaml:"role_title"`
	Department  string `yaml:"department"`
	CapacityPct int    `yaml:"capacity_pct"`
	Active      *bool  `yaml:"active"`
}

type Milestone struct {
	Project     string          `yaml:"project"`
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	DueDate     *datatypes.Date `yaml:"due_date"`
	Status      string          `yaml:"status"`
}

type RAIDItem struct {
	Project     string          `yaml:"project"`
	Kind        string          `yaml:"kind"`
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
	Owner       string          `yaml:"owner"`
	Severity    string          `yaml:"severity"`
	Likelihood  string          `yaml:"likelihood"`
	Status      string          `yaml:"status"`
	DueDate     *datatypes.Date `yaml:"due_date"`
}

// Request is a resource request. Status other than draft is reached by
// replaying the workflow, so the audit trail and decision fields look the
// same as for requests made through the API.
type Request struct {
	Project       string          `yaml:"project"`
	RoleTitle     string          `yaml:"role_title"`
	Skills        string          `yaml:"skills"`
	AllocationPct int             `yaml:"allocation_pct"`
	StartDate     *datatypes.Date `yaml:"start_date"`
	EndDate       *datatypes.Date `yaml:"end_date"`
	RequestedBy   string          `yaml:"requested_by"`
	Status        string          `yaml:"status"`
	DecidedBy     string          `yaml:"decided_by"`
	Note          string          `yaml:"note"`
	// Resource is the email of the assigned resource, required when
	// Status is fulfilled.
	Resource string `yaml:"resource"`
}

// Load decodes a fixture document. Unknown keys are rejected.
func Load(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("fixture file is empty")
		}
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	return &f, nil
}

// LoadFile reads fixtures from path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	f, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Demo returns the built-in demo fixture set.
func Demo() *File {
	f, err := Load(bytes.NewReader(demoYAML))
	if err != nil {
		panic(fmt.Sprintf("embedded demo fixtures are invalid: %v", err))
	}
	return f
}

// Counts reports what Seed wrote.
type Counts struct {
	Projects   int `json:"projects"`
	Resources  int `json:"resources"`
	Milestones int `json:"milestones"`
	RAIDItems  int `json:"raid_items"`
	Requests   int `json:"requests"`
	// Skipped counts records that already existed or belong to a project
	// that already existed.
	Skipped int `json:"skipped"`
}

// Seed writes f into s. Every created record is audited as SeedUser when
// audit is non-nil. The first invalid record aborts seeding; records
// written before it are kept.
func Seed(ctx context.Context, s store.Store, audit extensions.AuditLogger, f *File) (Counts, error) {
	sd := &seeder{
		store:     s,
		audit:     audit,
		projects:  map[string]string{},
		fresh:     map[string]bool{},
		resources: map[string]string{},
		now:       func() time.Time { return time.Now().UTC() },
	}
	if err := sd.run(ctx, f); err != nil {
		return sd.counts, err
	}
	slog.Info("fixtures seeded",
		"projects", sd.counts.Projects,
		"resources", sd.counts.Resources,
		"milestones", sd.counts.Milestones,
		"raid_items", sd.counts.RAIDItems,
		"requests", sd.counts.Requests,
		"skipped", sd.counts.Skipped,
	)
	return sd.counts, nil
}

type seeder struct {
	store  store.Store
	audit  extensions.AuditLogger
	counts Counts

	// projects maps code to id; fresh marks codes created by this run.
	projects  map[string]string
	fresh     map[string]bool
	resources map[string]string
	now       func() time.Time
}

func (sd *seeder) run(ctx context.Context, f *File) error {
	for i, p := range f.Projects {
		if err := sd.project(ctx, p); err != nil {
			return fmt.Errorf("projects[%d] %s: %w", i, p.Code, err)
		}
	}
	for i, r := range f.Resources {
		if err := sd.resource(ctx, r); err != nil {
			return fmt.Errorf("resources[%d] %s: %w", i, r.Email, err)
		}
	}
	for i, m := range f.Milestones {
		if err := sd.milestone(ctx, m); err != nil {
			return fmt.Errorf("milestones[%d] %s: %w", i, m.Name, err)
		}
	}
	for i, item := range f.RAID {
		if err := sd.raid(ctx, item); err != nil {
			return fmt.Errorf("raid[%d] %s: %w", i, item.Title, err)
		}
	}
	for i, r := range f.Requests {
		if err := sd.request(ctx, r); err != nil {
			return fmt.Errorf("requests[%d] %s: %w", i, r.RoleTitle, err)
		}
	}
	return nil
}

func (sd *seeder) project(ctx context.Context, fp Project) error {
	body := datatypes.CreateProjectRequest{
		Code:        fp.Code,
		Name:        fp.Name,
		Description: fp.Description,
		Status:      datatypes.ProjectStatus(fp.Status),
		Owner:       fp.Owner,
		StartDate:   fp.StartDate,
		EndDate:     fp.EndDate,
		Budget:      fp.Budget,
	}
	if err := body.Validate(); err != nil {
		return err
	}
	p := body.ToProject()
	err := sd.store.CreateProject(ctx, p)
	if errors.Is(err, store.ErrConflict) {
		id, lookupErr := sd.findProject(ctx, fp.Code)
		if lookupErr != nil {
			return lookupErr
		}
		sd.projects[fp.Code] = id
		sd.counts.Skipped++
		return nil
	}
	if err != nil {
		return err
	}
	sd.projects[p.Code] = p.ID
	sd.fresh[p.Code] = true
	sd.counts.Projects++
	sd.created(ctx, extensions.ResourceProject, p.ID)
	return nil
}

func (sd *seeder) findProject(ctx context.Context, code string) (string, error) {
	items, _, err := sd.store.ListProjects(ctx, datatypes.ProjectFilter{Query: code},
		datatypes.ListOptions{Limit: datatypes.MaxListLimit}.Normalize())
	if err != nil {
		return "", err
	}
	for _, p := range items {
		if p.Code == code {
			return p.ID, nil
		}
	}
	return "", fmt.Errorf("project %s conflicts but cannot be found: %w", code, store.ErrNotFound)
}

func (sd *seeder) resource(ctx context.Context, fr Resource) error {
	body := datatypes.CreateResourceBody{
		Name:        fr.Name,
		Email:       fr.Email,
		RoleTitle:   fr.RoleTitle,
		Department:  fr.Department,
		CapacityPct: fr.CapacityPct,
		Active:      fr.Active,
	}
	if err := body.Validate(); err != nil {
		return err
	}
	r := body.ToResource()
	err := sd.store.CreateResource(ctx, r)
	if errors.Is(err, store.ErrConflict) {
		items, _, listErr := sd.store.ListResources(ctx, datatypes.ResourceFilter{Query: fr.Email},
			datatypes.ListOptions{Limit: datatypes.MaxListLimit}.Normalize())
		if listErr != nil {
			return listErr
		}
		for _, existing := range items {
			if strings.EqualFold(existing.Email, fr.Email) {
				sd.resources[strings.ToLower(fr.Email)] = existing.ID
			}
		}
		sd.counts.Skipped++
		return nil
	}
	if err != nil {
		return err
	}
	sd.resources[strings.ToLower(r.Email)] = r.ID
	sd.counts.Resources++
	sd.created(ctx, extensions.ResourceResource, r.ID)
	return nil
}

// projectFor resolves a project code. ok is false when the children of
// that project must be skipped.
func (sd *seeder) projectFor(code string) (id string, ok bool, err error) {
	id, known := sd.projects[code]
	if !known {
		return "", false, fmt.Errorf("unknown project %q", code)
	}
	return id, sd.fresh[code], nil
}

func (sd *seeder) milestone(ctx context.Context, fm Milestone) error {
	projectID, ok, err := sd.projectFor(fm.Project)
	if err != nil {
		return err
	}
	if !ok {
		sd.counts.Skipped++
		return nil
	}
	body := datatypes.CreateMilestoneRequest{
		ProjectID:   projectID,
		Name:        fm.Name,
		Description: fm.Description,
		DueDate:     fm.DueDate,
		Status:      datatypes.MilestoneStatus(fm.Status),
	}
	if err := body.Validate(); err != nil {
		return err
	}
	m := body.ToMilestone(sd.now())
	if err := sd.store.CreateMilestone(ctx, m); err != nil {
		return err
	}
	sd.counts.Milestones++
	sd.created(ctx, extensions.ResourceMilestone, m.ID)
	return nil
}

func (sd *seeder) raid(ctx context.Context, fi RAIDItem) error {
	projectID, ok, err := sd.projectFor(fi.Project)
	if err != nil {
		return err
	}
	if !ok {
		sd.counts.Skipped++
		return nil
	}
	body := datatypes.CreateRAIDItemRequest{
		ProjectID:   projectID,
		Kind:        datatypes.RAIDKind(fi.Kind),
		Title:       fi.Title,
		Description: fi.Description,
		Owner:       fi.Owner,
		Severity:    datatypes.Severity(fi.Severity),
		Likelihood:  datatypes.Likelihood(fi.Likelihood),
		Status:      datatypes.RAIDStatus(fi.Status),
		DueDate:     fi.DueDate,
	}
	if err := body.Validate(); err != nil {
		return err
	}
	item := body.ToRAIDItem()
	if err := sd.store.CreateRAIDItem(ctx, item); err != nil {
		return err
	}
	sd.counts.RAIDItems++
	sd.created(ctx, extensions.ResourceRAIDItem, item.ID)
	return nil
}

// workflowPaths lists the actions that lead from draft to each status.
var workflowPaths = map[datatypes.RequestStatus][]string{
	datatypes.RequestDraft:     nil,
	datatypes.RequestSubmitted: {datatypes.TransitionSubmit},
	datatypes.RequestApproved:  {datatypes.TransitionSubmit, datatypes.TransitionApprove},
	datatypes.RequestRejected:  {datatypes.TransitionSubmit, datatypes.TransitionReject},
	datatypes.RequestFulfilled: {datatypes.TransitionSubmit, datatypes.TransitionApprove, datatypes.TransitionFulfill},
	datatypes.RequestCancelled: {datatypes.TransitionCancel},
}

func (sd *seeder) request(ctx context.Context, fr Request) error {
	projectID, ok, err := sd.projectFor(fr.Project)
	if err != nil {
		return err
	}
	if !ok {
		sd.counts.Skipped++
		return nil
	}
	status := datatypes.RequestStatus(fr.Status)
	if status == "" {
		status = datatypes.RequestDraft
	}
	path, known := workflowPaths[status]
	if !known {
		return fmt.Errorf("unknown status %q", fr.Status)
	}
	var resourceID string
	if status == datatypes.RequestFulfilled {
		resourceID, known = sd.resources[strings.ToLower(fr.Resource)]
		if !known {
			return fmt.Errorf("fulfilled request needs a known resource, got %q", fr.Resource)
		}
	}

	body := datatypes.CreateResourceRequestBody{
		ProjectID:     projectID,
		RoleTitle:     fr.RoleTitle,
		Skills:        fr.Skills,
		AllocationPct: fr.AllocationPct,
		StartDate:     fr.StartDate,
		EndDate:       fr.EndDate,
	}
	if err := body.Validate(); err != nil {
		return err
	}
	requestedBy := fr.RequestedBy
	if requestedBy == "" {
		requestedBy = SeedUser
	}
	decidedBy := fr.DecidedBy
	if decidedBy == "" {
		decidedBy = SeedUser
	}
	rr := body.ToResourceRequest(requestedBy)
	if err := sd.store.CreateResourceRequest(ctx, rr); err != nil {
		return err
	}
	sd.created(ctx, extensions.ResourceResourceRequest, rr.ID)

	for _, action := range path {
		to, err := datatypes.NextStatus(rr.Status, action)
		if err != nil {
			return err
		}
		t := datatypes.Transition{Action: action, From: rr.Status, To: to, Actor: requestedBy}
		switch action {
		case datatypes.TransitionApprove, datatypes.TransitionReject, datatypes.TransitionFulfill:
			t.Actor = decidedBy
			t.Note = fr.Note
		}
		if action == datatypes.TransitionFulfill {
			t.ResourceID = resourceID
		}
		if rr, err = sd.store.TransitionResourceRequest(ctx, rr.ID, t); err != nil {
			return fmt.Errorf("%s: %w", action, err)
		}
		sd.log(ctx, extensions.AuditEvent{
			EventType:    extensions.WorkflowEventType(action),
			Action:       action,
			ResourceType: extensions.ResourceResourceRequest,
			ResourceID:   rr.ID,
			Metadata:     map[string]any{"from": string(t.From), "to": string(t.To)},
		})
	}
	sd.counts.Requests++
	return nil
}

func (sd *seeder) created(ctx context.Context, resourceType, id string) {
	sd.log(ctx, extensions.AuditEvent{
		EventType:    extensions.EventDataCreate,
		Action:       extensions.ActionCreate,
		ResourceType: resourceType,
		ResourceID:   id,
	})
}

func (sd *seeder) log(ctx context.Context, e extensions.AuditEvent) {
	if sd.audit == nil {
		return
	}
	e.UserID = SeedUser
	e.Outcome = extensions.OutcomeSuccess
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	e.Metadata["source"] = "fixtures"
	if err := sd.audit.Log(ctx, e); err != nil {
		slog.Warn("failed to record seed audit event", "error", err, "resource_id", e.ResourceID)
	}
}
