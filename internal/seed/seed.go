// Package seed loads users, providers and numbers from a YAML file into the
// record store. Records that already exist are skipped so a seed file can be
// applied repeatedly.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/model"
	"github.com/prnadmin/server/internal/repo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type User struct {
	Email         string            `yaml:"email"`
	Name          string            `yaml:"name"`
	Password      string            `yaml:"password"`
	Role          model.Role        `yaml:"role"`
	PayoutMethod  string            `yaml:"payout_method"`
	PayoutDetails map[string]string `yaml:"payout_details"`
}

type Provider struct {
	Name        string   `yaml:"name"`
	ServiceType string   `yaml:"service_type"`
	Pricing     string   `yaml:"pricing"`
	Countries   []string `yaml:"countries"`
	APIEndpoint string   `yaml:"api_endpoint"`
	Notes       string   `yaml:"notes"`
	Active      *bool    `yaml:"active"`
}

type Number struct {
	Value           string `yaml:"value"`
	CountryCode     string `yaml:"country_code"`
	ChannelType     string `yaml:"channel_type"`
	ServiceCategory string `yaml:"service_category"`
	Rate            string `yaml:"rate"`
	// Owner is the email of the owning user
	Owner  string `yaml:"owner"`
	Active *bool  `yaml:"active"`
}

// File is the top-level seed document
type File struct {
	Users     []User     `yaml:"users"`
	Providers []Provider `yaml:"providers"`
	Numbers   []Number   `yaml:"numbers"`
}

// LoadFile reads and validates a seed file
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a seed document. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, err
	}

	for i, u := range f.Users {
		if u.Email == "" {
			return nil, fmt.Errorf("user at index %d missing email", i)
		}
		if u.Password == "" {
			return nil, fmt.Errorf("user %s missing password", u.Email)
		}
		if !u.Role.Valid() {
			return nil, fmt.Errorf("user %s has unknown role %q", u.Email, u.Role)
		}
		if u.PayoutMethod != "" && !model.PayoutMethod(u.PayoutMethod).Valid() {
			return nil, fmt.Errorf("user %s has unknown payout method %q", u.Email, u.PayoutMethod)
		}
	}
	for i, p := range f.Providers {
		if p.Name == "" {
			return nil, fmt.Errorf("provider at index %d missing name", i)
		}
	}
	for i, n := range f.Numbers {
		if n.Value == "" {
			return nil, fmt.Errorf("number at index %d missing value", i)
		}
		if !model.ChannelType(n.ChannelType).Valid() {
			return nil, fmt.Errorf("number %s has unknown channel type %q", n.Value, n.ChannelType)
		}
		if _, err := decimal.NewFromString(n.Rate); err != nil {
			return nil, fmt.Errorf("number %s has invalid rate %q", n.Value, n.Rate)
		}
	}
	return &f, nil
}

// Accounts creates users and sets their payout method
type Accounts interface {
	CreateUser(ctx context.Context, email, name, password string, role model.Role) (*model.User, error)
	SetPayoutMethod(ctx context.Context, userID uuid.UUID, method model.PayoutMethod, details map[string]string) (*model.User, error)
}

// Inventory adds numbers
type Inventory interface {
	Create(ctx context.Context, n model.Number) (*model.Number, error)
}

// Store is the direct storage access the loader needs
type Store interface {
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	ListProviders(ctx context.Context) ([]model.Provider, error)
	InsertProvider(ctx context.Context, p *model.Provider) error
}

// Result counts what Apply created and skipped
type Result struct {
	UsersCreated     int
	UsersSkipped     int
	ProvidersCreated int
	ProvidersSkipped int
	NumbersCreated   int
	NumbersSkipped   int
}

// Apply writes f through the given services
func Apply(ctx context.Context, f *File, accounts Accounts, inventory Inventory, store Store) (Result, error) {
	var res Result

	for _, u := range f.Users {
		created, err := accounts.CreateUser(ctx, u.Email, u.Name, u.Password, u.Role)
		switch {
		case errors.Is(err, repo.ErrConflict):
			zap.L().Info("Seed user exists", zap.String("email", u.Email))
			res.UsersSkipped++
			continue
		case err != nil:
			return res, fmt.Errorf("user %s: %w", u.Email, err)
		}
		res.UsersCreated++
		if u.PayoutMethod != "" {
			if _, err := accounts.SetPayoutMethod(ctx, created.ID, model.PayoutMethod(u.PayoutMethod), u.PayoutDetails); err != nil {
				return res, fmt.Errorf("user %s payout method: %w", u.Email, err)
			}
		}
	}

	existing, err := store.ListProviders(ctx)
	if err != nil {
		return res, fmt.Errorf("list providers: %w", err)
	}
	names := make(map[string]bool, len(existing))
	for _, p := range existing {
		names[strings.ToLower(p.Name)] = true
	}
	for _, p := range f.Providers {
		if names[strings.ToLower(p.Name)] {
			res.ProvidersSkipped++
			continue
		}
		provider := model.Provider{
			Name:        p.Name,
			ServiceType: p.ServiceType,
			Pricing:     p.Pricing,
			Countries:   p.Countries,
			APIEndpoint: p.APIEndpoint,
			Notes:       p.Notes,
			Active:      p.Active == nil || *p.Active,
		}
		if err := store.InsertProvider(ctx, &provider); err != nil {
			return res, fmt.Errorf("provider %s: %w", p.Name, err)
		}
		names[strings.ToLower(p.Name)] = true
		res.ProvidersCreated++
	}

	for _, n := range f.Numbers {
		number := model.Number{
			Value:           n.Value,
			CountryCode:     n.CountryCode,
			ChannelType:     model.ChannelType(n.ChannelType),
			ServiceCategory: n.ServiceCategory,
			Rate:            decimal.RequireFromString(n.Rate),
			Active:          n.Active == nil || *n.Active,
		}
		if n.Owner != "" {
			owner, err := store.GetUserByEmail(ctx, n.Owner)
			if err != nil {
				return res, fmt.Errorf("number %s owner %s: %w", n.Value, n.Owner, err)
			}
			number.OwnerID = &owner.ID
		}
		_, err := inventory.Create(ctx, number)
		switch {
		case errors.Is(err, repo.ErrConflict):
			res.NumbersSkipped++
			continue
		case err != nil:
			return res, fmt.Errorf("number %s: %w", n.Value, err)
		}
		res.NumbersCreated++
	}

	return res, nil
}
