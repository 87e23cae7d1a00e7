package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jcodog/Cleo-Dashboard-sub001/domain"
	"github.com/rs/zerolog/log"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		discord_id VARCHAR(128) NOT NULL DEFAULT '',
		kick_id VARCHAR(128) NOT NULL DEFAULT '',
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS provider_credentials (
		id CHAR(36) NOT NULL PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		provider_id VARCHAR(32) NOT NULL,
		account_id VARCHAR(128) NOT NULL DEFAULT '',
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		access_token_expires_at DATETIME(6) NULL,
		scope TEXT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_user_provider (user_id, provider_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

const credentialColumns = `id, user_id, provider_id, account_id, access_token, refresh_token,
	access_token_expires_at, scope, created_at, updated_at`

// Store is a domain.Store on MySQL (InnoDB).
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore takes ownership of db and creates the tables when missing.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("apply mysql schema: %w", err)
		}
	}
	log.Info().Msg("MySQL schema ensured.")
	return &Store{db: db, now: time.Now}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*domain.ProviderCredential, error) {
	var (
		cred     domain.ProviderCredential
		provider string
		expires  sql.NullTime
	)
	err := row.Scan(&cred.ID, &cred.UserID, &provider, &cred.AccountID, &cred.AccessToken,
		&cred.RefreshToken, &expires, &cred.Scope, &cred.CreatedAt, &cred.UpdatedAt)
	if err != nil {
		return nil, err
	}
	cred.ProviderID = domain.ProviderID(provider)
	if expires.Valid {
		t := expires.Time
		cred.AccessTokenExpiresAt = &t
	}
	return &cred, nil
}

func (s *Store) Find(ctx context.Context, userID string, provider domain.ProviderID) (*domain.ProviderCredential, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM provider_credentials WHERE user_id = ? AND provider_id = ?`,
		userID, string(provider))
	cred, err := scanCredential(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCredentialNotFound
	}
	if err != nil {
		log.Error().Err(err).Str("userID", userID).Str("provider", string(provider)).Msg("Error finding provider credential")
		return nil, domain.NewStoreError("find credential", err)
	}
	return cred, nil
}

// Upsert relies on uq_user_provider; id and created_at survive an overwrite.
func (s *Store) Upsert(ctx context.Context, cred *domain.ProviderCredential) error {
	now := s.now().UTC()
	id := cred.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := cred.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := cred.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}
	var expires sql.NullTime
	if cred.AccessTokenExpiresAt != nil {
		expires = sql.NullTime{Time: cred.AccessTokenExpiresAt.UTC(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO provider_credentials (`+credentialColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			account_id = VALUES(account_id),
			access_token = VALUES(access_token),
			refresh_token = VALUES(refresh_token),
			access_token_expires_at = VALUES(access_token_expires_at),
			scope = VALUES(scope),
			updated_at = VALUES(updated_at)`,
		id, cred.UserID, string(cred.ProviderID), cred.AccountID, cred.AccessToken,
		cred.RefreshToken, expires, cred.Scope, createdAt, updatedAt)
	if err != nil {
		log.Error().Err(err).Str("userID", cred.UserID).Str("provider", string(cred.ProviderID)).Msg("Error upserting provider credential")
		return domain.NewStoreError("upsert credential", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, userID string, provider domain.ProviderID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM provider_credentials WHERE user_id = ? AND provider_id = ?`, userID, string(provider))
	if err != nil {
		return domain.NewStoreError("delete credential", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrCredentialNotFound
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listCredentials(ctx context.Context, q querier, userID string, forUpdate bool) ([]*domain.ProviderCredential, error) {
	query := `SELECT ` + credentialColumns + ` FROM provider_credentials WHERE user_id = ? ORDER BY provider_id`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []*domain.ProviderCredential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]*domain.ProviderCredential, error) {
	creds, err := listCredentials(ctx, s.db, userID, false)
	if err != nil {
		log.Error().Err(err).Str("userID", userID).Msg("Error listing provider credentials")
		return nil, domain.NewStoreError("list credentials", err)
	}
	return creds, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, discord_id, kick_id, created_at, updated_at FROM users WHERE id = ?`, id).
		Scan(&user.ID, &user.DiscordID, &user.KickID, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, domain.NewStoreError("get user", err)
	}
	return &user, nil
}

// PutUser creates or updates a user's provider account ids.
func (s *Store) PutUser(ctx context.Context, user *domain.User) error {
	now := s.now().UTC()
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (id, discord_id, kick_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE discord_id = VALUES(discord_id), kick_id = VALUES(kick_id), updated_at = VALUES(updated_at)`,
		user.ID, user.DiscordID, user.KickID, createdAt, now)
	if err != nil {
		return domain.NewStoreError("put user", err)
	}
	return nil
}

// UnlinkProvider locks the user row and the user's credential rows, so
// concurrent unlinks for one user run one after the other.
func (s *Store) UnlinkProvider(ctx context.Context, userID string, provider domain.ProviderID) (err error) {
	field, err := domain.ProviderAccountField(provider)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewStoreError("begin unlink", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked string
	lockErr := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = ? FOR UPDATE`, userID).Scan(&locked)
	if lockErr != nil && !errors.Is(lockErr, sql.ErrNoRows) {
		return domain.NewStoreError("lock user", lockErr)
	}

	linked, err := listCredentials(ctx, tx, userID, true)
	if err != nil {
		return domain.NewStoreError("lock credentials", err)
	}
	if err = domain.CheckUnlinkAllowed(linked, provider); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM provider_credentials WHERE user_id = ? AND provider_id = ?`, userID, string(provider)); err != nil {
		return domain.NewStoreError("delete credential", err)
	}
	// field comes from a fixed whitelist.
	if _, err = tx.ExecContext(ctx,
		`UPDATE users SET `+field+` = '', updated_at = ? WHERE id = ?`, s.now().UTC(), userID); err != nil {
		return domain.NewStoreError("clear account id", err)
	}

	if err = tx.Commit(); err != nil {
		return domain.NewStoreError("commit unlink", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close(context.Context) error {
	return s.db.Close()
}

var _ domain.Store = (*Store)(nil)
