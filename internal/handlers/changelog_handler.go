package handlers

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"learnhub/internal/logger"
	"learnhub/internal/models"
	"learnhub/internal/service"
)

// ChangelogHandler serves the public changelog, its RSS feed and the system
// status signal
type ChangelogHandler struct {
	changelog  *service.ChangelogService
	appBaseURL string
	log        *logger.Logger
}

// NewChangelogHandler creates a new changelog handler
func NewChangelogHandler(changelog *service.ChangelogService, appBaseURL string, log *logger.Logger) *ChangelogHandler {
	return &ChangelogHandler{
		changelog:  changelog,
		appBaseURL: strings.TrimRight(appBaseURL, "/"),
		log:        log,
	}
}

// ListChangelog returns published entries newest first; ?limit= caps them
func (h *ChangelogHandler) ListChangelog(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondWithError(w, h.log, "Invalid changelog query", err)
		return
	}
	entries, err := h.changelog.ListPublished(limit)
	if err != nil {
		respondWithError(w, h.log, "Failed to list changelog", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *ChangelogHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, h.log, "Invalid changelog id", err)
		return
	}
	entry, err := h.changelog.GetEntry(GetUserFromContext(r.Context()), id)
	if err != nil {
		respondWithError(w, h.log, "Failed to get changelog entry", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// Status reports the overall system status with active incidents
func (h *ChangelogHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.changelog.SystemStatus(r.Context())
	if err != nil {
		respondWithError(w, h.log, "Failed to compute status", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string  `xml:"title"`
	Link        string  `xml:"link"`
	Description string  `xml:"description"`
	Category    string  `xml:"category"`
	GUID        rssGUID `xml:"guid"`
	PubDate     string  `xml:"pubDate"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// buildFeed renders published entries as an RSS 2.0 channel. Item bodies are
// the rendered markdown.
func (h *ChangelogHandler) buildFeed(entries []*models.ChangelogEntry) rssFeed {
	feed := rssFeed{
		Version: "2.0",
		Channel: rssChannel{
			Title:       "LearnHub changelog",
			Link:        h.appBaseURL + "/changelog",
			Description: "Product updates, incidents and maintenance",
			Language:    "en",
		},
	}
	for _, e := range entries {
		published := e.CreatedAt
		if e.PublishedAt != nil {
			published = *e.PublishedAt
		}
		title := e.Title
		if e.Version != "" {
			title = fmt.Sprintf("%s (%s)", e.Title, e.Version)
		}
		feed.Channel.Items = append(feed.Channel.Items, rssItem{
			Title:       title,
			Link:        fmt.Sprintf("%s/changelog/%d", h.appBaseURL, e.ID),
			Description: e.BodyHTML,
			Category:    string(e.Type),
			GUID:        rssGUID{Value: fmt.Sprintf("learnhub-changelog-%d", e.ID)},
			PubDate:     published.UTC().Format(time.RFC1123Z),
		})
		if feed.Channel.LastBuildDate == "" {
			feed.Channel.LastBuildDate = published.UTC().Format(time.RFC1123Z)
		}
	}
	return feed
}

// RSS serves the published changelog as RSS 2.0
func (h *ChangelogHandler) RSS(w http.ResponseWriter, r *http.Request) {
	entries, err := h.changelog.ListPublished(50)
	if err != nil {
		respondWithError(w, h.log, "Failed to build changelog feed", err)
		return
	}
	out, err := xml.MarshalIndent(h.buildFeed(entries), "", "  ")
	if err != nil {
		respondWithError(w, h.log, "Failed to encode changelog feed", err)
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Write([]byte(xml.Header))
	w.Write(out)
}
