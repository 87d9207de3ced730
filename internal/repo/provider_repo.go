package repo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/model"
)

const providerColumns = `id, name, service_type, pricing, countries, api_endpoint, notes, active, created_at, updated_at`

// ParseCountries turns a comma-delimited list into an upper-case, de-duplicated, sorted set
func ParseCountries(raw string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		c := strings.ToUpper(strings.TrimSpace(part))
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// JoinCountries is the stored form of a country set
func JoinCountries(countries []string) string {
	return strings.Join(ParseCountries(strings.Join(countries, ",")), ",")
}

func scanProvider(row rowScanner) (model.Provider, error) {
	var (
		p         model.Provider
		countries string
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.ServiceType, &p.Pricing, &countries, &p.APIEndpoint, &p.Notes, &p.Active,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return model.Provider{}, err
	}
	p.Countries = ParseCountries(countries)
	return p, nil
}

// ListProviders returns every provider ordered by name
func (q *queries) ListProviders(ctx context.Context) ([]model.Provider, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+providerColumns+` FROM providers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	defer rows.Close()

	out := make([]model.Provider, 0)
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provider: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProvider retrieves a provider by ID
func (q *queries) GetProvider(ctx context.Context, id uuid.UUID) (model.Provider, error) {
	p, err := scanProvider(q.db.QueryRowContext(ctx, `SELECT `+providerColumns+` FROM providers WHERE id = $1`, id))
	if err != nil {
		return model.Provider{}, notFound(err, "provider")
	}
	return p, nil
}

// InsertProvider creates a provider
func (q *queries) InsertProvider(ctx context.Context, p *model.Provider) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Countries = ParseCountries(strings.Join(p.Countries, ","))
	query := `
		INSERT INTO providers (id, name, service_type, pricing, countries, api_endpoint, notes, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	err := q.db.QueryRowContext(ctx, query,
		p.ID, p.Name, p.ServiceType, p.Pricing, JoinCountries(p.Countries), p.APIEndpoint, p.Notes, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if pqCode(err) == codeUniqueViolation {
			return fmt.Errorf("provider %s: %w", p.Name, ErrConflict)
		}
		return fmt.Errorf("failed to insert provider: %w", err)
	}
	return nil
}

// UpdateProvider rewrites every editable field of a provider
func (q *queries) UpdateProvider(ctx context.Context, p *model.Provider) error {
	p.Countries = ParseCountries(strings.Join(p.Countries, ","))
	query := `
		UPDATE providers
		SET name = $2, service_type = $3, pricing = $4, countries = $5, api_endpoint = $6, notes = $7,
		    active = $8, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`
	err := q.db.QueryRowContext(ctx, query,
		p.ID, p.Name, p.ServiceType, p.Pricing, JoinCountries(p.Countries), p.APIEndpoint, p.Notes, p.Active,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if pqCode(err) == codeUniqueViolation {
			return fmt.Errorf("provider %s: %w", p.Name, ErrConflict)
		}
		return notFound(err, "provider")
	}
	return nil
}

// DeleteProvider removes a provider. Providers are not referenced by other records.
func (q *queries) DeleteProvider(ctx context.Context, id uuid.UUID) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM providers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete provider: %w", err)
	}
	return requireRow(res, "provider")
}
