package repository

import (
	"errors"
	"fmt"

	"github.com/sandeepkv93/step-leaderboard-service/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound reports a missing credential row.
	ErrNotFound = errors.New("credential not found")
	// ErrStoreUnavailable wraps any store-level failure. Callers use
	// errors.Is to distinguish "user absent" from "store is down".
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// CredentialRepository is the store adapter for per-user OAuth material and
// step state. Rows are keyed by normalized email. It carries no business
// logic; the refresh-token non-overwrite invariant is enforced by callers
// omitting the column from Merge.
type CredentialRepository interface {
	FindByEmail(email string) (*domain.UserCredential, error)
	FindByPhone(phone string) (*domain.UserCredential, error)
	Create(cred *domain.UserCredential) error
	List() ([]domain.UserCredential, error)
	// Merge upserts only the supplied columns, leaving every other column
	// untouched. Atomic per row.
	Merge(email string, fields map[string]any) error
	LeaderboardTop(limit int) ([]domain.UserCredential, error)
}

type GormCredentialRepository struct{ db *gorm.DB }

func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &GormCredentialRepository{db: db}
}

func (r *GormCredentialRepository) FindByEmail(email string) (*domain.UserCredential, error) {
	var c domain.UserCredential
	err := r.db.Where("email = ?", domain.NormalizeEmail(email)).First(&c).Error
	if err != nil {
		return nil, storeErr(err)
	}
	return &c, nil
}

func (r *GormCredentialRepository) FindByPhone(phone string) (*domain.UserCredential, error) {
	var c domain.UserCredential
	err := r.db.Where("phone = ?", phone).First(&c).Error
	if err != nil {
		return nil, storeErr(err)
	}
	return &c, nil
}

func (r *GormCredentialRepository) Create(cred *domain.UserCredential) error {
	cred.Email = domain.NormalizeEmail(cred.Email)
	if err := r.db.Create(cred).Error; err != nil {
		return storeErr(err)
	}
	return nil
}

func (r *GormCredentialRepository) List() ([]domain.UserCredential, error) {
	var creds []domain.UserCredential
	if err := r.db.Find(&creds).Error; err != nil {
		return nil, storeErr(err)
	}
	return creds, nil
}

func (r *GormCredentialRepository) Merge(email string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	row := map[string]any{"email": domain.NormalizeEmail(email)}
	assignments := make(map[string]any, len(fields))
	for col, v := range fields {
		row[col] = v
		assignments[col] = v
	}
	err := r.db.Model(&domain.UserCredential{}).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoUpdates: clause.Assignments(assignments),
		}).
		Create(row).Error
	if err != nil {
		return storeErr(err)
	}
	return nil
}

func (r *GormCredentialRepository) LeaderboardTop(limit int) ([]domain.UserCredential, error) {
	var creds []domain.UserCredential
	err := r.db.Order("steps_today DESC").Limit(limit).Find(&creds).Error
	if err != nil {
		return nil, storeErr(err)
	}
	return creds, nil
}

func storeErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
