package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/enrollment-api/internal/models"
	"gorm.io/gorm"
)

// TokenLedger keeps one refresh_tokens row per live session, keyed by the
// sha256 of the token. It checks existence only, never signatures.
type TokenLedger struct {
	db *gorm.DB
}

func NewTokenLedger(db *gorm.DB) *TokenLedger {
	return &TokenLedger{db: db}
}

func (l *TokenLedger) Store(ctx context.Context, token string, userID uint) error {
	record := models.RefreshToken{
		UserID:    userID,
		TokenHash: hashToken(token),
	}
	if err := l.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func (l *TokenLedger) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	var record models.RefreshToken
	err := l.db.WithContext(ctx).Where("token_hash = ?", hashToken(token)).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &record, nil
}

// Delete removes the token and reports how many rows went. Deleting an absent
// token is not an error.
func (l *TokenLedger) Delete(ctx context.Context, token string) (int64, error) {
	res := l.db.WithContext(ctx).Where("token_hash = ?", hashToken(token)).Delete(&models.RefreshToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete refresh token: %w", res.Error)
	}
	return res.RowsAffected, nil
}
