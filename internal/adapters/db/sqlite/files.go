package sqlite

import (
	"context"

	"github.com/anihangout/hangout/internal/domain"
)

func toFile(m FileModel) domain.File {
	return domain.File{
		ID:          m.ID,
		OwnerID:     m.OwnerID,
		StorageKey:  m.StorageKey,
		Name:        m.Name,
		ContentType: m.ContentType,
		Size:        m.Size,
		CreatedAt:   m.CreatedAt,
	}
}

func (r *Repository) CreateFile(ctx context.Context, value domain.File) (domain.File, error) {
	m := FileModel{
		OwnerID:     value.OwnerID,
		StorageKey:  value.StorageKey,
		Name:        value.Name,
		ContentType: value.ContentType,
		Size:        value.Size,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.File{}, mapErr(err)
	}
	return toFile(m), nil
}

func (r *Repository) GetFileByID(ctx context.Context, id uint) (domain.File, error) {
	var m FileModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return domain.File{}, mapErr(err)
	}
	return toFile(m), nil
}

func (r *Repository) DeleteFile(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&FileModel{}, id).Error
}
