package storage

import (
	"errors"
	"fmt"
	"time"
)

// Site statuses. Only active sites are picked up by the batch push run.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Processing log outcomes.
const (
	LogStatusSuccess = "success"
	LogStatusError   = "error"
	LogStatusSkipped = "skipped"
)

// Sentinel errors surfaced to the API layer.
var (
	ErrSiteNotFound  = errors.New("site not found")
	ErrSquadExists   = errors.New("squad already exists")
	ErrSquadNotFound = errors.New("squad not found")
)

// SquadInUseError is returned when deleting a squad that still has sites
// attached.
type SquadInUseError struct {
	Name  string
	Sites int
}

func (e *SquadInUseError) Error() string {
	return fmt.Sprintf("squad %q still has %d site(s) attached", e.Name, e.Sites)
}

// MetricColumns holds the zero-based spreadsheet column index of each tracked
// metric.
type MetricColumns struct {
	Investment int `json:"investment_idx"`
	Revenue    int `json:"revenue_idx"`
	ROAS       int `json:"roas_idx"`
	Margin     int `json:"margin_idx"`
}

// Squad is a team channel a site reports into.
type Squad struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	WebhookURL string    `json:"webhook_url"`
	SiteCount  int       `json:"site_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Site is a monitored marketing site with its sheet and squad binding.
type Site struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name"`
	SheetURL  string        `json:"sheet_url"`
	Squad     string        `json:"squad,omitempty"`
	Status    string        `json:"status"`
	Columns   MetricColumns `json:"columns"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

/// SiteConfig is the push-ready view of a site: the site row joined with its
// metric columns and the squad webhook, resolved in one query.
type SiteConfig struct {
	Site       Site   `json:"site"`
	WebhookURL string `json:"-"`
}

// SiteInput is the payload for creating or replacing a site.
type SiteInput struct {
	Name     string
	SheetURL string
	Squad    string
	Status   string
	Columns  MetricColumns
}

// SitePatch carries the optional fields of a partial site update. Nil fields
// are left untouched.
type SitePatch struct {
	SheetURL *string
	Squad    *string
	Status   *string
	Columns  *MetricColumns
}

// SiteFilter narrows a site listing. Zero values match everything.
type SiteFilter struct {
	Name  string
	Squad string
}

// UpdateResult distinguishes the outcomes of a partial update.
type UpdateResult int

const (
	UpdateNotFound UpdateResult = iota
	UpdateUnchanged
	UpdateApplied
)

// ProcessingLog records one push attempt for a site.
type ProcessingLog struct {
	ID        int64     `json:"id"`
	SiteName  string    `json:"site_name"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats is the dashboard summary.
type Stats struct {
	TotalSites    int        `json:"total_sites"`
	ActiveSites   int        `json:"active_sites"`
	TotalSquads   int        `json:"total_squads"`
	TotalUsers    int        `json:"total_users"`
	SitesWithData int        `json:"sites_with_data"`
	LastUpdate    *time.Time `json:"last_update"`
}
