package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/welldanyogia/mailpilot-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OwnerRepository defines the interface for owner data access
type OwnerRepository interface {
	Create(ctx context.Context, owner *models.Owner) error
	GetByID(ctx context.Context, id uint) (*models.Owner, error)
	GetByEmail(ctx context.Context, email string) (*models.Owner, error)
	ListActive(ctx context.Context) ([]models.Owner, error)
}

// ConnectionRepository defines the interface for mailbox connection data access.
// TokenJSON is plaintext in memory and sealed in the database.
type ConnectionRepository interface {
	GetByOwner(ctx context.Context, ownerID uint) (*models.MailboxConnection, error)
	Save(ctx context.Context, conn *models.MailboxConnection) error
	UpdateCursor(ctx context.Context, ownerID uint, cursor string, syncedAt time.Time) error
	UpdateToken(ctx context.Context, ownerID uint, tokenJSON string) error
	MarkRevoked(ctx context.Context, ownerID uint) error
	Delete(ctx context.Context, ownerID uint) error
}

// TokenSealer encrypts OAuth tokens before they are written
type TokenSealer interface {
	Seal(plaintext string) (string, error)
	Open(value string) (string, error)
}

// ownerRepository implements OwnerRepository using GORM
type ownerRepository struct {
	db *gorm.DB
}

// NewOwnerRepository creates a new OwnerRepository instance
func NewOwnerRepository(db *gorm.DB) OwnerRepository {
	return &ownerRepository{db: db}
}

// Create creates a new owner
func (r *ownerRepository) Create(ctx context.Context, owner *models.Owner) error {
	result := r.db.WithContext(ctx).Create(owner)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return fmt.Errorf("owner with email '%s' already exists: %w", owner.Email, ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create owner: %w", result.Error)
	}
	return nil
}

// GetByID retrieves an owner by its ID
func (r *ownerRepository) GetByID(ctx context.Context, id uint) (*models.Owner, error) {
	var owner models.Owner
	result := r.db.WithContext(ctx).First(&owner, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get owner by ID: %w", result.Error)
	}
	return &owner, nil
}

// GetByEmail retrieves an owner by email address
func (r *ownerRepository) GetByEmail(ctx context.Context, email string) (*models.Owner, error) {
	var owner models.Owner
	result := r.db.WithContext(ctx).Where("email = ?", email).First(&owner)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get owner by email: %w", result.Error)
	}
	return &owner, nil
}

// ListActive returns every active owner that has a non-revoked mailbox connection
func (r *ownerRepository) ListActive(ctx context.Context) ([]models.Owner, error) {
	var owners []models.Owner
	result := r.db.WithContext(ctx).
		Joins("JOIN mailbox_connections mc ON mc.owner_id = owners.id AND mc.revoked = ?", false).
		Where("owners.is_active = ?", true).
		Order("owners.id ASC").
		Find(&owners)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list active owners: %w", result.Error)
	}
	return owners, nil
}

// connectionRepository implements ConnectionRepository using GORM
type connectionRepository struct {
	db     *gorm.DB
	sealer TokenSealer
}

// NewConnectionRepository creates a new ConnectionRepository instance
func NewConnectionRepository(db *gorm.DB, sealer TokenSealer) ConnectionRepository {
	return &connectionRepository{db: db, sealer: sealer}
}

// GetByOwner retrieves the mailbox connection of an owner
func (r *connectionRepository) GetByOwner(ctx context.Context, ownerID uint) (*models.MailboxConnection, error) {
	var conn models.MailboxConnection
	result := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&conn)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get mailbox connection: %w", result.Error)
	}

	token, err := r.sealer.Open(conn.TokenJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to open token for owner %d: %w", ownerID, err)
	}
	conn.TokenJSON = token
	return &conn, nil
}

// Save inserts the connection or replaces the owner's existing one. A
// replaced connection starts over with no sync cursor.
func (r *connectionRepository) Save(ctx context.Context, conn *models.MailboxConnection) error {
	sealed, err := r.sealer.Seal(conn.TokenJSON)
	if err != nil {
		return fmt.Errorf("failed to seal token: %w", err)
	}

	row := *conn
	row.TokenJSON = sealed
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "owner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"provider", "account_email", "token_json", "history_cursor", "last_synced_at", "revoked", "updated_at",
		}),
	}).Create(&row)
	if result.Error != nil {
		return fmt.Errorf("failed to save mailbox connection: %w", result.Error)
	}
	conn.ID = row.ID
	conn.CreatedAt = row.CreatedAt
	conn.UpdatedAt = row.UpdatedAt
	return nil
}

// UpdateCursor records a new sync cursor. Called only after the fetched
// messages have been persisted.
func (r *connectionRepository) UpdateCursor(ctx context.Context, ownerID uint, cursor string, syncedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.MailboxConnection{}).
		Where("owner_id = ?", ownerID).
		Updates(map[string]any{"history_cursor": cursor, "last_synced_at": syncedAt})
	if result.Error != nil {
		return fmt.Errorf("failed to update sync cursor: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateToken persists a refreshed OAuth token
func (r *connectionRepository) UpdateToken(ctx context.Context, ownerID uint, tokenJSON string) error {
	sealed, err := r.sealer.Seal(tokenJSON)
	if err != nil {
		return fmt.Errorf("failed to seal token: %w", err)
	}

	result := r.db.WithContext(ctx).Model(&models.MailboxConnection{}).
		Where("owner_id = ?", ownerID).
		Update("token_json", sealed)
	if result.Error != nil {
		return fmt.Errorf("failed to update token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkRevoked flags the connection so polling stops until the owner reconnects
func (r *connectionRepository) MarkRevoked(ctx context.Context, ownerID uint) error {
	result := r.db.WithContext(ctx).Model(&models.MailboxConnection{}).
		Where("owner_id = ?", ownerID).
		Update("revoked", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark connection revoked: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the owner's connection
func (r *connectionRepository) Delete(ctx context.Context, ownerID uint) error {
	result := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Delete(&models.MailboxConnection{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete mailbox connection: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
