package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nback-go/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrWrongPIN = errors.New("wrong PIN")

// UserRepository stores training profiles.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Select returns the named profile, creating it on first use, and checks
// pin against it.
func (r *UserRepository) Select(ctx context.Context, name, pin string) (*models.User, error) {
	user := models.User{Name: name}
	if err := r.db.WithContext(ctx).Where(models.User{Name: name}).FirstOrCreate(&user).Error; err != nil {
		return nil, fmt.Errorf("load user %q: %w", name, err)
	}
	if !user.CheckPIN(pin) {
		return nil, ErrWrongPIN
	}
	now := time.Now()
	if err := r.db.WithContext(ctx).Model(&user).Update("last_seen", now).Error; err != nil {
		return nil, err
	}
	user.LastSeen = now
	return &user, nil
}

func (r *UserRepository) GetByName(ctx context.Context, name string) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).First(&user, "name = ?", name)
	return &user, result.Error
}

// SetPIN replaces the profile PIN. An empty pin removes protection.
func (r *UserRepository) SetPIN(ctx context.Context, name, pin string) error {
	hash := ""
	if pin != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		hash = string(b)
	}
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("name = ?", name).Update("pin_hash", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Order("name").Find(&users).Error
	return users, err
}

func (r *UserRepository) Delete(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Where("name = ?", name).Delete(&models.User{}).Error
}
