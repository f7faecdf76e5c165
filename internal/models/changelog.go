package models

import "time"

// ChangelogType categorises a changelog entry
type ChangelogType string

const (
	ChangelogFeature     ChangelogType = "feature"
	ChangelogImprovement ChangelogType = "improvement"
	ChangelogBugfix      ChangelogType = "bugfix"
	ChangelogIssue       ChangelogType = "issue"
	ChangelogMaintenance ChangelogType = "maintenance"
	ChangelogSecurity    ChangelogType = "security"
)

// Valid reports whether t is a known entry type
func (t ChangelogType) Valid() bool {
	switch t {
	case ChangelogFeature, ChangelogImprovement, ChangelogBugfix,
		ChangelogIssue, ChangelogMaintenance, ChangelogSecurity:
		return true
	}
	return false
}

// ChangelogStatus is the publication state of an entry
type ChangelogStatus string

const (
	ChangelogDraft     ChangelogStatus = "draft"
	ChangelogPublished ChangelogStatus = "published"
	ChangelogArchived  ChangelogStatus = "archived"
)

// Severity applies to issue and maintenance entries
type Severity string

const (
	SeverityNone     Severity = ""
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity
func (s Severity) Valid() bool {
	switch s {
	case SeverityNone, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// ChangelogEntry is an admin-authored release note or incident
type ChangelogEntry struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Body        string          `json:"body"`
	BodyHTML    string          `json:"bodyHtml,omitempty"`
	Type        ChangelogType   `json:"type"`
	Status      ChangelogStatus `json:"status"`
	Severity    Severity        `json:"severity,omitempty"`
	IsResolved  bool            `json:"isResolved"`
	Version     string          `json:"version,omitempty"`
	AuthorID    *int64          `json:"authorId,omitempty"`
	PublishedAt *time.Time      `json:"publishedAt,omitempty"`
	ResolvedAt  *time.Time      `json:"resolvedAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// IsPublished reports whether the entry is publicly visible
func (e *ChangelogEntry) IsPublished() bool {
	return e.Status == ChangelogPublished
}

// StatusLevel is the overall system status derived from the changelog
type StatusLevel string

const (
	StatusOperational StatusLevel = "operational"
	StatusMaintenance StatusLevel = "maintenance"
	StatusDegraded    StatusLevel = "degraded"
	StatusMajorOutage StatusLevel = "major_outage"
)

// HostHealth is a point-in-time sample of the serving host
type HostHealth struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryPercent float64 `json:"memoryPercent"`
	DiskPercent   float64 `json:"diskPercent"`
	UptimeSeconds uint64  `json:"uptimeSeconds"`
}

// SystemStatus is the public status signal
type SystemStatus struct {
	Status    StatusLevel       `json:"status"`
	Incidents []*ChangelogEntry `json:"incidents"`
	Host      *HostHealth       `json:"host,omitempty"`
	CheckedAt time.Time         `json:"checkedAt"`
}
