package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"learnhub/internal/database"
	"learnhub/internal/logger"
	"learnhub/internal/models"
	"learnhub/internal/repository"
	"learnhub/internal/validation"
)

const defaultFeedLimit = 20

var (
	markdownOnce     sync.Once
	markdownRenderer goldmark.Markdown
)

// renderMarkdown converts an entry body to HTML. Raw HTML in the source is
// omitted.
func renderMarkdown(src string) (string, error) {
	markdownOnce.Do(func() {
		markdownRenderer = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	var buf bytes.Buffer
	if err := markdownRenderer.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// HostSampler reports host health for the status page
type HostSampler func(ctx context.Context) (*models.HostHealth, error)

// NewHostSampler reads CPU, memory, disk usage of diskPath and uptime
func NewHostSampler(diskPath string) HostSampler {
	return func(ctx context.Context) (*models.HostHealth, error) {
		h := &models.HostHealth{}

		percents, err := cpu.PercentWithContext(ctx, 0, false)
		if err != nil {
			return nil, fmt.Errorf("failed to read cpu: %w", err)
		}
		if len(percents) > 0 {
			h.CPUPercent = percents[0]
		}

		vm, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read memory: %w", err)
		}
		h.MemoryPercent = vm.UsedPercent

		if du, err := disk.UsageWithContext(ctx, diskPath); err == nil {
			h.DiskPercent = du.UsedPercent
		}
		if up, err := host.UptimeWithContext(ctx); err == nil {
			h.UptimeSeconds = up
		}
		return h, nil
	}
}

// ChangelogInput is an admin's draft of an entry
type ChangelogInput struct {
	Title    string               `json:"title"`
	Body     string               `json:"body"`
	Type     models.ChangelogType `json:"type"`
	Severity models.Severity      `json:"severity"`
	Version  string               `json:"version"`
}

// ChangelogService manages release notes and incidents
type ChangelogService struct {
	db     *database.DB
	store  *repository.Store
	log    *logger.Logger
	sample HostSampler
	now    func() time.Time
}

// NewChangelogService creates a new changelog service. A nil sampler leaves
// host health out of the status.
func NewChangelogService(db *database.DB, sample HostSampler, log *logger.Logger) *ChangelogService {
	return &ChangelogService{
		db:     db,
		store:  repository.NewStore(db),
		log:    log,
		sample: sample,
		now:    time.Now,
	}
}

func normalizeChangelog(in ChangelogInput) (ChangelogInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Body = strings.TrimSpace(in.Body)
	in.Version = strings.TrimSpace(in.Version)
	if err := validation.ValidateRequired("title", in.Title, 200); err != nil {
		return in, err
	}
	if err := validation.ValidateRequired("body", in.Body, 20000); err != nil {
		return in, err
	}
	if !in.Type.Valid() {
		return in, validation.ValidationError{Field: "type", Message: fmt.Sprintf("unknown type %q", in.Type)}
	}
	if !in.Severity.Valid() {
		return in, validation.ValidationError{Field: "severity", Message: fmt.Sprintf("unknown severity %q", in.Severity)}
	}
	if in.Type != models.ChangelogIssue && in.Type != models.ChangelogMaintenance {
		in.Severity = models.SeverityNone
	} else if in.Severity == models.SeverityNone {
		in.Severity = models.SeverityLow
	}
	if len(in.Version) > 50 {
		return in, validation.ValidationError{Field: "version", Message: "version must be at most 50 characters"}
	}
	return in, nil
}

func withHTML(e *models.ChangelogEntry) *models.ChangelogEntry {
	if e == nil {
		return nil
	}
	html, err := renderMarkdown(e.Body)
	if err == nil {
		e.BodyHTML = html
	}
	return e
}

func withHTMLAll(entries []*models.ChangelogEntry) []*models.ChangelogEntry {
	if entries == nil {
		return []*models.ChangelogEntry{}
	}
	for _, e := range entries {
		withHTML(e)
	}
	return entries
}

// CreateEntry stores a new draft entry
func (s *ChangelogService) CreateEntry(actor *models.User, in ChangelogInput) (*models.ChangelogEntry, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	in, err := normalizeChangelog(in)
	if err != nil {
		return nil, err
	}
	now := s.now()
	e, err := s.store.Changelog.CreateEntry(&models.ChangelogEntry{
		Title:     in.Title,
		Body:      in.Body,
		Type:      in.Type,
		Status:    models.ChangelogDraft,
		Severity:  in.Severity,
		Version:   in.Version,
		AuthorID:  &actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Changelog entry created", "entry_id", e.ID, "type", e.Type)
	return withHTML(e), nil
}

// UpdateEntry replaces an entry's content, keeping its status
func (s *ChangelogService) UpdateEntry(actor *models.User, id int64, in ChangelogInput) (*models.ChangelogEntry, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	in, err := normalizeChangelog(in)
	if err != nil {
		return nil, err
	}
	e, err := s.getEntry(id)
	if err != nil {
		return nil, err
	}
	e.Title = in.Title
	e.Body = in.Body
	e.Type = in.Type
	e.Severity = in.Severity
	e.Version = in.Version
	e.UpdatedAt = s.now()
	if err := s.store.Changelog.UpdateEntry(e); err != nil {
		return nil, fmt.Errorf("failed to update changelog entry: %w", err)
	}
	return withHTML(e), nil
}

func (s *ChangelogService) getEntry(id int64) (*models.ChangelogEntry, error) {
	e, err := s.store.Changelog.GetEntry(id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("%w: changelog entry %d", ErrNotFound, id)
	}
	return e, nil
}

// transition applies a status change and returns the refreshed entry
func (s *ChangelogService) transition(actor *models.User, id int64, apply func(int64, time.Time) error) (*models.ChangelogEntry, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.getEntry(id); err != nil {
		return nil, err
	}
	if err := apply(id, s.now()); err != nil {
		return nil, err
	}
	e, err := s.getEntry(id)
	if err != nil {
		return nil, err
	}
	return withHTML(e), nil
}

// Publish makes an entry public
func (s *ChangelogService) Publish(actor *models.User, id int64) (*models.ChangelogEntry, error) {
	return s.transition(actor, id, s.store.Changelog.Publish)
}

// Archive hides an entry
func (s *ChangelogService) Archive(actor *models.User, id int64) (*models.ChangelogEntry, error) {
	return s.transition(actor, id, s.store.Changelog.Archive)
}

// ResolveIssue closes an incident. Only issue and maintenance entries resolve.
func (s *ChangelogService) ResolveIssue(actor *models.User, id int64) (*models.ChangelogEntry, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	e, err := s.getEntry(id)
	if err != nil {
		return nil, err
	}
	if e.Type != models.ChangelogIssue && e.Type != models.ChangelogMaintenance {
		return nil, fmt.Errorf("%w: only issues and maintenance can be resolved", ErrInvalidInput)
	}
	return s.transition(actor, id, s.store.Changelog.Resolve)
}

// GetEntry returns a published entry, or any entry for admins
func (s *ChangelogService) GetEntry(viewer *models.User, id int64) (*models.ChangelogEntry, error) {
	e, err := s.getEntry(id)
	if err != nil {
		return nil, err
	}
	if !e.IsPublished() && (viewer == nil || !viewer.IsAdmin()) {
		return nil, fmt.Errorf("%w: changelog entry %d", ErrNotFound, id)
	}
	return withHTML(e), nil
}

// ListPublished returns the public feed, newest first
func (s *ChangelogService) ListPublished(limit int) ([]*models.ChangelogEntry, error) {
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	entries, err := s.store.Changelog.ListPublished(min(limit, 100))
	if err != nil {
		return nil, err
	}
	return withHTMLAll(entries), nil
}

// ListEntries returns every entry for the admin console
func (s *ChangelogService) ListEntries(actor *models.User) ([]*models.ChangelogEntry, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	entries, err := s.store.Changelog.ListEntries()
	if err != nil {
		return nil, err
	}
	return withHTMLAll(entries), nil
}

// statusFor derives the overall status from unresolved published incidents
func statusFor(incidents []*models.ChangelogEntry) models.StatusLevel {
	status := models.StatusOperational
	for _, e := range incidents {
		switch {
		case e.Type == models.ChangelogIssue && e.Severity == models.SeverityCritical:
			return models.StatusMajorOutage
		case e.Type == models.ChangelogIssue:
			status = models.StatusDegraded
		case e.Type == models.ChangelogMaintenance && status == models.StatusOperational:
			status = models.StatusMaintenance
		}
	}
	return status
}

// SystemStatus reports the public status signal
func (s *ChangelogService) SystemStatus(ctx context.Context) (*models.SystemStatus, error) {
	incidents, err := s.store.Changelog.ListActiveIncidents()
	if err != nil {
		return nil, err
	}
	status := &models.SystemStatus{
		Status:    statusFor(incidents),
		Incidents: withHTMLAll(incidents),
		CheckedAt: s.now().UTC(),
	}
	if s.sample != nil {
		h, err := s.sample(ctx)
		if err != nil {
			s.log.Warn("Failed to sample host health", "error", err)
		} else {
			status.Host = h
		}
	}
	return status, nil
}
