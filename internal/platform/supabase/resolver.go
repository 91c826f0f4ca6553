// Package supabase reads the Supabase-managed profile and doctor tables
// through PostgREST to resolve who a token belongs to.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/auth"
)

// Tables is satisfied by *supabase.Client and *postgrest.Client.
type Tables interface {
	From(table string) *postgrest.QueryBuilder
}

// NewClient connects with the service-role key, which bypasses row level
// security for the lookups below.
func NewClient(url, serviceKey string) (*supa.Client, error) {
	client, err := supa.NewClient(url, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return client, nil
}

type profileRow struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

type doctorRow struct {
	ID string `json:"id"`
}

// ProfileResolver implements auth.PrincipalResolver.
type ProfileResolver struct {
	db Tables
}

func NewProfileResolver(db Tables) *ProfileResolver {
	return &ProfileResolver{db: db}
}

func (r *ProfileResolver) Resolve(ctx context.Context, userID string) (*auth.Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, _, err := r.db.From("profiles").
		Select("id, role", "", false).
		Eq("id", userID).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("query profile %s: %w", userID, err)
	}
	var profiles []profileRow
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", userID, err)
	}
	if len(profiles) == 0 {
		return nil, apperr.NotFound("profile", userID)
	}

	p := &auth.Principal{UserID: userID, Role: profiles[0].Role}
	if p.Role != auth.RoleDoctor {
		return p, nil
	}

	// oldest doctor row linked to the user
	data, _, err = r.db.From("doctors").
		Select("id", "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("query doctor for %s: %w", userID, err)
	}
	var doctors []doctorRow
	if err := json.Unmarshal(data, &doctors); err != nil {
		return nil, fmt.Errorf("decode doctor for %s: %w", userID, err)
	}
	if len(doctors) > 0 {
		p.DoctorID = doctors[0].ID
	}
	return p, nil
}
