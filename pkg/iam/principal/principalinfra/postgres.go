package principalinfra

import (
	"context"
	"database/sql"

	"github.com/egoauth/ego/pkg/errx"
	"github.com/egoauth/ego/pkg/iam"
	"github.com/egoauth/ego/pkg/iam/principal"
	"github.com/egoauth/ego/pkg/iam/scope"
	"github.com/egoauth/ego/pkg/kernel"
	"github.com/jmoiron/sqlx"
)

// PostgresUserRepository implements principal.UserRepository over sqlx.
type PostgresUserRepository struct {
	db *sqlx.DB
}

// NewPostgresUserRepository creates a new user repository.
func NewPostgresUserRepository(db *sqlx.DB) principal.UserRepository {
	return &PostgresUserRepository{db: db}
}

type userRow struct {
	ID         kernel.UserID  `db:"id"`
	Name       string         `db:"name"`
	Email      string         `db:"email"`
	GivenName  sql.NullString `db:"given_name"`
	FamilyName sql.NullString `db:"family_name"`
	Status     iam.StatusType `db:"status"`
	Type       iam.UserType   `db:"type"`
}

type permissionRow struct {
	ID          string            `db:"id"`
	PolicyID    kernel.PolicyID   `db:"policy_id"`
	PolicyName  string            `db:"policy_name"`
	AccessLevel scope.AccessLevel `db:"access_level"`
}

type groupRow struct {
	ID     kernel.GroupID `db:"id"`
	Name   string         `db:"name"`
	Status iam.StatusType `db:"status"`
}

// FindByID loads a user with direct permissions and group permissions.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id kernel.UserID) (*principal.User, error) {
	return r.findBy(ctx, `SELECT id, name, email, given_name, family_name, status, type FROM users WHERE id = $1`, id.String())
}

// FindByName loads a user by its unique name.
func (r *PostgresUserRepository) FindByName(ctx context.Context, name string) (*principal.User, error) {
	return r.findBy(ctx, `SELECT id, name, email, given_name, family_name, status, type FROM users WHERE name = $1`, name)
}

// FindByEmail loads a user by verified email, as resolved by the SSO flow.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (*principal.User, error) {
	return r.findBy(ctx, `SELECT id, name, email, given_name, family_name, status, type FROM users WHERE lower(email) = lower($1)`, email)
}

func (r *PostgresUserRepository) findBy(ctx context.Context, query string, arg any) (*principal.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row, query, arg)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, principal.ErrUserNotFound()
		}
		return nil, errx.Wrap(err, "failed to find user", errx.TypeInternal)
	}

	user := &principal.User{
		ID:         row.ID,
		Name:       row.Name,
		Email:      row.Email,
		GivenName:  row.GivenName.String,
		FamilyName: row.FamilyName.String,
		Status:     row.Status,
		Type:       row.Type,
	}

	if err := r.loadPermissions(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *PostgresUserRepository) loadPermissions(ctx context.Context, user *principal.User) error {
	var direct []permissionRow
	err := r.db.SelectContext(ctx, &direct, `
		SELECT up.id, p.id AS policy_id, p.name AS policy_name, up.access_level
		FROM user_permissions up
		JOIN policies p ON p.id = up.policy_id
		WHERE up.user_id = $1`, user.ID.String())
	if err != nil {
		return errx.Wrap(err, "failed to load user permissions", errx.TypeInternal)
	}
	user.Permissions = toPermissions(direct)

	var groups []groupRow
	err = r.db.SelectContext(ctx, &groups, `
		SELECT g.id, g.name, g.status
		FROM groups g
		JOIN user_groups ug ON ug.group_id = g.id
		WHERE ug.user_id = $1`, user.ID.String())
	if err != nil {
		return errx.Wrap(err, "failed to load user groups", errx.TypeInternal)
	}

	for _, g := range groups {
		var rows []permissionRow
		err = r.db.SelectContext(ctx, &rows, `
			SELECT gp.id, p.id AS policy_id, p.name AS policy_name, gp.access_level
			FROM group_permissions gp
			JOIN policies p ON p.id = gp.policy_id
			WHERE gp.group_id = $1`, g.ID.String())
		if err != nil {
			return errx.Wrap(err, "failed to load group permissions", errx.TypeInternal)
		}
		user.Groups = append(user.Groups, principal.Group{
			ID:          g.ID,
			Name:        g.Name,
			Status:      g.Status,
			Permissions: toPermissions(rows),
		})
	}
	return nil
}

func toPermissions(rows []permissionRow) []principal.Permission {
	out := make([]principal.Permission, 0, len(rows))
	for _, row := range rows {
		out = append(out, principal.Permission{
			ID:     row.ID,
			Policy: principal.Policy{ID: row.PolicyID, Name: row.PolicyName},
			Level:  row.AccessLevel,
		})
	}
	return out
}

// PostgresApplicationRepository implements principal.ApplicationRepository.
type PostgresApplicationRepository struct {
	db *sqlx.DB
}

// NewPostgresApplicationRepository creates a new application repository.
func NewPostgresApplicationRepository(db *sqlx.DB) principal.ApplicationRepository {
	return &PostgresApplicationRepository{db: db}
}

// FindByID loads an application by id.
func (r *PostgresApplicationRepository) FindByID(ctx context.Context, id kernel.ApplicationID) (*principal.Application, error) {
	return r.findBy(ctx, `SELECT * FROM applications WHERE id = $1`, id.String())
}

// FindByClientID loads an application by its OAuth client id.
func (r *PostgresApplicationRepository) FindByClientID(ctx context.Context, clientID string) (*principal.Application, error) {
	return r.findBy(ctx, `SELECT * FROM applications WHERE client_id = $1`, clientID)
}

func (r *PostgresApplicationRepository) findBy(ctx context.Context, query string, arg any) (*principal.Application, error) {
	var app principal.Application
	err := r.db.GetContext(ctx, &app, query, arg)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, principal.ErrApplicationNotFound()
		}
		return nil, errx.Wrap(err, "failed to find application", errx.TypeInternal)
	}
	return &app, nil
}

// PostgresPolicyRepository implements principal.PolicyRepository.
type PostgresPolicyRepository struct {
	db *sqlx.DB
}

// NewPostgresPolicyRepository creates a new policy repository.
func NewPostgresPolicyRepository(db *sqlx.DB) principal.PolicyRepository {
	return &PostgresPolicyRepository{db: db}
}

// FindByName loads a policy by its globally unique name.
func (r *PostgresPolicyRepository) FindByName(ctx context.Context, name string) (*principal.Policy, error) {
	var policy principal.Policy
	err := r.db.GetContext(ctx, &policy, `SELECT id, name FROM policies WHERE name = $1`, name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, principal.ErrPolicyNotFound().WithDetail("policy", name)
		}
		return nil, errx.Wrap(err, "failed to find policy", errx.TypeInternal)
	}
	return &policy, nil
}
