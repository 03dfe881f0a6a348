package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/payledger/internal/models"
	"github.com/wolfeidau/payledger/internal/store"
)

var _ store.EntryStore = (*EntryStore)(nil)

const entryColumns = `
	entry_id, org_id, full_name, email, platform, external_id,
	company_name, phone, iban, bank_name,
	created_by, updated_by, import_session_id,
	created_at, updated_at, deleted_at`

// EntryStore implements store.EntryStore using PostgreSQL.
// Identity uniqueness is enforced by the partial unique indexes
// entries_external_identity_key and entries_name_email_identity_key.
type EntryStore struct {
	db *DB
}

// NewEntryStore creates a new PostgreSQL-backed entry store.
func NewEntryStore(db *DB) *EntryStore {
	return &EntryStore{db: db}
}

// FindByExternalID returns the live entry with the given platform issued id.
func (s *EntryStore) FindByExternalID(ctx context.Context, orgID uuid.UUID, platform, externalID string) (*models.Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM entries
		WHERE org_id = $1 AND platform = $2 AND external_id = $3 AND deleted_at IS NULL
	`

	return s.getOne(ctx, query, orgID, platform, externalID)
}

// FindByNameEmail returns the live entry matching name and email. Keyed
// entries sort after unkeyed ones and are excluded when unkeyedOnly is set.
func (s *EntryStore) FindByNameEmail(ctx context.Context, orgID uuid.UUID, platform, fullName, email string, unkeyedOnly bool) (*models.Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM entries
		WHERE org_id = $1 AND platform = $2 AND full_name = $3 AND email = $4
		  AND ($5 = FALSE OR external_id = '') AND deleted_at IS NULL
		ORDER BY (external_id <> ''), created_at, entry_id
		LIMIT 1
	`

	return s.getOne(ctx, query, orgID, platform, fullName, email, unkeyedOnly)
}

// Get retrieves a live entry by ID.
func (s *EntryStore) Get(ctx context.Context, orgID, entryID uuid.UUID) (*models.Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM entries
		WHERE org_id = $1 AND entry_id = $2 AND deleted_at IS NULL
	`

	return s.getOne(ctx, query, orgID, entryID)
}

// GetForUpdate retrieves a live entry and locks its row until the surrounding
// transaction ends.
func (s *EntryStore) GetForUpdate(ctx context.Context, orgID, entryID uuid.UUID) (*models.Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM entries
		WHERE org_id = $1 AND entry_id = $2 AND deleted_at IS NULL
		FOR UPDATE
	`

	return s.getOne(ctx, query, orgID, entryID)
}

// Create inserts a new entry.
func (s *EntryStore) Create(ctx context.Context, entry *models.Entry) error {
	query := `
		INSERT INTO entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := s.db.conn(ctx).Exec(ctx, query,
		entry.EntryID,
		entry.OrgID,
		entry.FullName,
		entry.Email,
		entry.Platform,
		entry.ExternalID,
		entry.CompanyName,
		entry.Phone,
		entry.IBAN,
		entry.BankName,
		entry.CreatedBy,
		entry.UpdatedBy,
		entry.ImportSessionID,
		entry.CreatedAt,
		entry.UpdatedAt,
		entry.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create entry: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("entry_id", entry.EntryID.String()).
		Str("org_id", entry.OrgID.String()).
		Str("platform", entry.Platform).
		Msg("Created entry")

	return nil
}

// Update overwrites the mutable fields of a live entry.
func (s *EntryStore) Update(ctx context.Context, entry *models.Entry) error {
	query := `
		UPDATE entries SET
			full_name = $3,
			email = $4,
			external_id = $5,
			company_name = $6,
			phone = $7,
			iban = $8,
			bank_name = $9,
			updated_by = $10,
			updated_at = $11
		WHERE org_id = $1 AND entry_id = $2 AND deleted_at IS NULL
	`

	result, err := s.db.conn(ctx).Exec(ctx, query,
		entry.OrgID,
		entry.EntryID,
		entry.FullName,
		entry.Email,
		entry.ExternalID,
		entry.CompanyName,
		entry.Phone,
		entry.IBAN,
		entry.BankName,
		entry.UpdatedBy,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrEntryNotFound
	}

	return nil
}

// SoftDelete marks a live entry deleted.
func (s *EntryStore) SoftDelete(ctx context.Context, orgID, entryID, deletedBy uuid.UUID) error {
	query := `
		UPDATE entries SET deleted_at = $3, updated_at = $3, updated_by = $4
		WHERE org_id = $1 AND entry_id = $2 AND deleted_at IS NULL
	`

	result, err := s.db.conn(ctx).Exec(ctx, query, orgID, entryID, time.Now(), deletedBy)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrEntryNotFound
	}

	log.Info().
		Str("entry_id", entryID.String()).
		Str("org_id", orgID.String()).
		Msg("Deleted entry")

	return nil
}

// List returns matching entries newest first.
func (s *EntryStore) List(ctx context.Context, orgID uuid.UUID, filter store.EntryFilter) ([]*models.Entry, error) {
	where, args := entryFilterClause(orgID, filter)

	query := `SELECT ` + entryColumns + ` FROM entries WHERE ` + where +
		` ORDER BY created_at DESC, entry_id DESC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var entries []*models.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}

	return entries, nil
}

// Count returns the number of entries matching the filter.
func (s *EntryStore) Count(ctx context.Context, orgID uuid.UUID, filter store.EntryFilter) (int, error) {
	where, args := entryFilterClause(orgID, filter)

	var count int
	err := s.db.conn(ctx).QueryRow(ctx, `SELECT count(*) FROM entries WHERE `+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", mapPostgresError(err))
	}

	return count, nil
}

func (s *EntryStore) getOne(ctx context.Context, query string, args ...any) (*models.Entry, error) {
	entry, err := scanEntry(s.db.conn(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get entry: %w", mapPostgresError(err))
	}

	return entry, nil
}

func entryFilterClause(orgID uuid.UUID, filter store.EntryFilter) (string, []any) {
	clauses := []string{"org_id = $1", "deleted_at IS NULL"}
	args := []any{orgID}

	if filter.Platform != "" {
		args = append(args, filter.Platform)
		clauses = append(clauses, fmt.Sprintf("platform = $%d", len(args)))
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(strings.ToLower(search))+"%")
		clauses = append(clauses, fmt.Sprintf("(lower(full_name) LIKE $%[1]d OR email LIKE $%[1]d)", len(args)))
	}

	return strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanEntry(row pgx.Row) (*models.Entry, error) {
	var e models.Entry
	err := row.Scan(
		&e.EntryID,
		&e.OrgID,
		&e.FullName,
		&e.Email,
		&e.Platform,
		&e.ExternalID,
		&e.CompanyName,
		&e.Phone,
		&e.IBAN,
		&e.BankName,
		&e.CreatedBy,
		&e.UpdatedBy,
		&e.ImportSessionID,
		&e.CreatedAt,
		&e.UpdatedAt,
		&e.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
