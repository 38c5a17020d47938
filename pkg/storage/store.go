package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Store implements the site, squad and processing-log persistence over a
// PostgreSQL pool.
type Store struct {
	db *sql.DB
}

// NewStore creates a store on an existing connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const siteSelect = `
	SELECT s.id, s.name, s.sheet_url, s.status,
	       COALESCE(sc.name, ''), COALESCE(sc.webhook_url, ''),
	       COALESCE(ci.investment_idx, 0), COALESCE(ci.revenue_idx, 0),
	       COALESCE(ci.roas_idx, 0), COALESCE(ci.margin_idx, 0),
	       s.created_at, s.updated_at
	FROM sites s
	LEFT JOIN slack_channels sc ON sc.id = s.slack_channel_id
	LEFT JOIN column_indices ci ON ci.site_id = s.id
`

// UpsertSite creates a site or replaces its configuration by name. A squad
// referenced for the first time gets a channel row created with an empty
// webhook so an operator can fill it in later.
func (s *Store) UpsertSite(ctx context.Context, in SiteInput) (*Site, error) {
	if in.Status == "" {
		in.Status = StatusActive
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var squadID sql.NullInt64
	if in.Squad != "" {
		id, err := ensureSquad(ctx, tx, in.Squad)
		if err != nil {
			return nil, err
		}
		squadID = sql.NullInt64{Int64: id, Valid: true}
	}

	site := &Site{
		Name:     in.Name,
		SheetURL: in.SheetURL,
		Squad:    in.Squad,
		Status:   in.Status,
		Columns:  in.Columns,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO sites (name, sheet_url, slack_channel_id, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			sheet_url = EXCLUDED.sheet_url,
			slack_channel_id = EXCLUDED.slack_channel_id,
			status = EXCLUDED.status,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, in.Name, in.SheetURL, squadID, in.Status).Scan(&site.ID, &site.CreatedAt, &site.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert site %q: %w", in.Name, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO column_indices (site_id, investment_idx, revenue_idx, roas_idx, margin_idx)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (site_id) DO UPDATE SET
			investment_idx = EXCLUDED.investment_idx,
			revenue_idx = EXCLUDED.revenue_idx,
			roas_idx = EXCLUDED.roas_idx,
			margin_idx = EXCLUDED.margin_idx
	`, site.ID, in.Columns.Investment, in.Columns.Revenue, in.Columns.ROAS, in.Columns.Margin)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert column indices for %q: %w", in.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit site upsert: %w", err)
	}
	return site, nil
}

// UpdateSite applies a partial update by id. An empty patch is reported as
// UpdateUnchanged without touching the database.
func (s *Store) UpdateSite(ctx context.Context, id int64, patch SitePatch) (UpdateResult, error) {
	if patch.SheetURL == nil && patch.Squad == nil && patch.Status == nil && patch.Columns == nil {
		return UpdateUnchanged, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return UpdateNotFound, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}
	arg := 1
	add := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, arg))
		args = append(args, value)
		arg++
	}
	if patch.SheetURL != nil {
		add("sheet_url", *patch.SheetURL)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.Squad != nil {
		var squadID sql.NullInt64
		if *patch.Squad != "" {
			sid, err := ensureSquad(ctx, tx, *patch.Squad)
			if err != nil {
				return UpdateNotFound, err
			}
			squadID = sql.NullInt64{Int64: sid, Valid: true}
		}
		add("slack_channel_id", squadID)
	}

	query := fmt.Sprintf("UPDATE sites SET %s WHERE id = $%d", strings.Join(sets, ", "), arg)
	args = append(args, id)

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return UpdateNotFound, fmt.Errorf("failed to update site %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return UpdateNotFound, err
	}
	if n == 0 {
		return UpdateNotFound, nil
	}

	if patch.Columns != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO column_indices (site_id, investment_idx, revenue_idx, roas_idx, margin_idx)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (site_id) DO UPDATE SET
				investment_idx = EXCLUDED.investment_idx,
				revenue_idx = EXCLUDED.revenue_idx,
				roas_idx = EXCLUDED.roas_idx,
				margin_idx = EXCLUDED.margin_idx
		`, id, patch.Columns.Investment, patch.Columns.Revenue, patch.Columns.ROAS, patch.Columns.Margin)
		if err != nil {
			return UpdateNotFound, fmt.Errorf("failed to update column indices for site %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return UpdateNotFound, fmt.Errorf("failed to commit site update: %w", err)
	}
	return UpdateApplied, nil
}

// SiteConfigByName resolves a site with its metric columns and squad webhook
// in one query. Returns (nil, nil) when the site does not exist.
func (s *Store) SiteConfigByName(ctx context.Context, name string) (*SiteConfig, error) {
	row := s.db.QueryRowContext(ctx, siteSelect+` WHERE s.name = $1`, name)
	site, webhook, err := scanSite(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load site %q: %w", name, err)
	}
	return &SiteConfig{Site: *site, WebhookURL: webhook}, nil
}

// SiteByID returns a site by id, or (nil, nil) when absent.
func (s *Store) SiteByID(ctx context.Context, id int64) (*Site, error) {
	row := s.db.QueryRowContext(ctx, siteSelect+` WHERE s.id = $1`, id)
	site, _, err := scanSite(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load site %d: %w", id, err)
	}
	return site, nil
}

// ListSites returns sites ordered by name. The filter's name matches as a
// case-insensitive substring; the squad filter matches exactly.
func (s *Store) ListSites(ctx context.Context, filter SiteFilter) ([]*Site, error) {
	query := siteSelect
	conds := []string{}
	args := []interface{}{}
	if filter.Name != "" {
		args = append(args, "%"+filter.Name+"%")
		conds = append(conds, fmt.Sprintf("s.name ILIKE $%d", len(args)))
	}
	if filter.Squad != "" {
		args = append(args, filter.Squad)
		conds = append(conds, fmt.Sprintf("sc.name = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY s.name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var sites []*Site
	for rows.Next() {
		site, _, err := scanSite(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan site row: %w", err)
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// ActiveSiteNames returns the names of all active sites, ordered by name.
// The batch push run iterates this list.
func (s *Store) ActiveSiteNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sites WHERE status = $1 ORDER BY name`, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sites: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeleteSiteByID removes a site; its column indices cascade.
func (s *Store) DeleteSiteByID(ctx context.Context, id int64) error {
	return s.deleteSite(ctx, `DELETE FROM sites WHERE id = $1`, id)
}

// DeleteSiteByName removes a site by name; its column indices cascade.
func (s *Store) DeleteSiteByName(ctx context.Context, name string) error {
	return s.deleteSite(ctx, `DELETE FROM sites WHERE name = $1`, name)
}

func (s *Store) deleteSite(ctx context.Context, query string, arg interface{}) error {
	res, err := s.db.ExecContext(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("failed to delete site: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSiteNotFound
	}
	return nil
}

// Squads lists all squads with the number of sites attached to each.
func (s *Store) Squads(ctx context.Context) ([]*Squad, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sc.id, sc.name, sc.webhook_url, sc.created_at, COUNT(s.id)
		FROM slack_channels sc
		LEFT JOIN sites s ON s.slack_channel_id = sc.id
		GROUP BY sc.id, sc.name, sc.webhook_url, sc.created_at
		ORDER BY sc.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list squads: %w", err)
	}
	defer rows.Close()

	var squads []*Squad
	for rows.Next() {
		var sq Squad
		if err := rows.Scan(&sq.ID, &sq.Name, &sq.WebhookURL, &sq.CreatedAt, &sq.SiteCount); err != nil {
			return nil, fmt.Errorf("failed to scan squad row: %w", err)
		}
		squads = append(squads, &sq)
	}
	return squads, rows.Err()
}

// CreateSquad registers a squad with its webhook. A duplicate name returns
// ErrSquadExists.
func (s *Store) CreateSquad(ctx context.Context, name, webhookURL string) (*Squad, error) {
	sq := &Squad{Name: name, WebhookURL: webhookURL}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO slack_channels (name, webhook_url)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, name, webhookURL).Scan(&sq.ID, &sq.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, ErrSquadExists
		}
		return nil, fmt.Errorf("failed to create squad %q: %w", name, err)
	}
	return sq, nil
}

// UpdateSquad renames a squad and/or replaces its webhook. Nil fields are
// left untouched.
func (s *Store) UpdateSquad(ctx context.Context, name string, newName, webhookURL *string) error {
	sets := []string{}
	args := []interface{}{}
	arg := 1
	if newName != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", arg))
		args = append(args, *newName)
		arg++
	}
	if webhookURL != nil {
		sets = append(sets, fmt.Sprintf("webhook_url = $%d", arg))
		args = append(args, *webhookURL)
		arg++
	}
	if len(sets) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE slack_channels SET %s WHERE name = $%d", strings.Join(sets, ", "), arg)
	args = append(args, name)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrSquadExists
		}
		return fmt.Errorf("failed to update squad %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSquadNotFound
	}
	return nil
}

// DeleteSquad removes a squad. Deletion is refused while sites still
// reference it so a site never silently loses its webhook.
func (s *Store) DeleteSquad(ctx context.Context, name string) error {
	var attached int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM sites s
		JOIN slack_channels sc ON sc.id = s.slack_channel_id
		WHERE sc.name = $1
	`, name).Scan(&attached)
	if err != nil {
		return fmt.Errorf("failed to count squad sites: %w", err)
	}
	if attached > 0 {
		return &SquadInUseError{Name: name, Sites: attached}
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM slack_channels WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to delete squad %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSquadNotFound
	}
	return nil
}

// LogActivity appends a processing log entry.
func (s *Store) LogActivity(ctx context.Context, siteName, status, message string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO processing_logs (site_name, status, message) VALUES ($1, $2, $3)`,
		siteName, status, message)
	if err != nil {
		return fmt.Errorf("failed to record processing log: %w", err)
	}
	return nil
}

// RecentLogs returns the newest processing log entries. A non-positive limit
// defaults to 50.
func (s *Store) RecentLogs(ctx context.Context, limit int) ([]*ProcessingLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, site_name, status, COALESCE(message, ''), created_at
		FROM processing_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list processing logs: %w", err)
	}
	defer rows.Close()

	var logs []*ProcessingLog
	for rows.Next() {
		var l ProcessingLog
		if err := rows.Scan(&l.ID, &l.SiteName, &l.Status, &l.Message, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan processing log: %w", err)
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

// GetStats computes the dashboard summary. LastUpdate is the newest
// processing log timestamp, nil when nothing ran yet.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	var lastUpdate sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM sites),
			(SELECT COUNT(*) FROM sites WHERE status = 'active'),
			(SELECT COUNT(*) FROM slack_channels),
			(SELECT COUNT(*) FROM users),
			(SELECT MAX(created_at) FROM processing_logs)
	`).Scan(&stats.TotalSites, &stats.ActiveSites, &stats.TotalSquads, &stats.TotalUsers, &lastUpdate)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	if lastUpdate.Valid {
		t := lastUpdate.Time
		stats.LastUpdate = &t
	}
	stats.SitesWithData = stats.TotalSites
	return stats, nil
}

func ensureSquad(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	var id int64
	// The no-op DO UPDATE makes RETURNING yield the id on conflict too.
	err := tx.QueryRowContext(ctx, `
		INSERT INTO slack_channels (name, webhook_url)
		VALUES ($1, '')
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to ensure squad %q: %w", name, err)
	}
	return id, nil
}

func scanSite(scan func(...interface{}) error) (*Site, string, error) {
	var (
		site    Site
		webhook string
	)
	err := scan(&site.ID, &site.Name, &site.SheetURL, &site.Status,
		&site.Squad, &webhook,
		&site.Columns.Investment, &site.Columns.Revenue,
		&site.Columns.ROAS, &site.Columns.Margin,
		&site.CreatedAt, &site.UpdatedAt)
	if err != nil {
		return nil, "", err
	}
	return &site, webhook, nil
}
