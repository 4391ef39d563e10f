package sqlite

import (
	"context"
	"time"

	"github.com/anihangout/hangout/internal/domain"
	"gorm.io/gorm"
)

func toModuleState(m ModuleStateModel) domain.ModuleState {
	return domain.ModuleState{
		ID:        m.ID,
		UserID:    m.UserID,
		ModuleKey: m.ModuleKey,
		X:         m.X,
		Y:         m.Y,
		Width:     m.Width,
		Height:    m.Height,
		Z:         m.Z,
		Minimized: m.Minimized,
		Maximized: m.Maximized,
		Open:      m.Open,
		UpdatedAt: m.UpdatedAt,
	}
}

func (r *Repository) ListModuleStates(ctx context.Context, userID uint) ([]domain.ModuleState, error) {
	rows := make([]ModuleStateModel, 0)
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("z ASC, module_key ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.ModuleState, 0, len(rows))
	for _, m := range rows {
		result = append(result, toModuleState(m))
	}
	return result, nil
}

func (r *Repository) UpsertModuleState(ctx context.Context, value domain.ModuleState) (domain.ModuleState, error) {
	m := ModuleStateModel{UserID: value.UserID, ModuleKey: value.ModuleKey}
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND module_key = ?", value.UserID, value.ModuleKey).
		Assign(map[string]any{
			"x":          value.X,
			"y":          value.Y,
			"width":      value.Width,
			"height":     value.Height,
			"z":          value.Z,
			"minimized":  value.Minimized,
			"maximized":  value.Maximized,
			"open":       value.Open,
			"updated_at": time.Now().UTC(),
		}).
		FirstOrCreate(&m).Error
	if err != nil {
		return domain.ModuleState{}, mapErr(err)
	}
	return toModuleState(m), nil
}

func (r *Repository) UpdateModuleZ(ctx context.Context, userID uint, zByKey map[string]int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, z := range zByKey {
			err := tx.Model(&ModuleStateModel{}).
				Where("user_id = ? AND module_key = ?", userID, key).
				Update("z", z).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) DeleteModuleStates(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&ModuleStateModel{}).Error
}

func toPreferenceDef(m PreferenceDefModel) domain.PreferenceDef {
	return domain.PreferenceDef{
		ID:           m.ID,
		Key:          m.Key,
		ValueKind:    m.ValueKind,
		DefaultValue: m.DefaultValue,
		Description:  m.Description,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func (r *Repository) UpsertPreferenceDef(ctx context.Context, value domain.PreferenceDef) (domain.PreferenceDef, error) {
	m := PreferenceDefModel{Key: value.Key}
	err := r.db.WithContext(ctx).
		Where("key = ?", value.Key).
		Assign(map[string]any{
			"value_kind":    value.ValueKind,
			"default_value": value.DefaultValue,
			"description":   value.Description,
		}).
		FirstOrCreate(&m).Error
	if err != nil {
		return domain.PreferenceDef{}, mapErr(err)
	}
	return toPreferenceDef(m), nil
}

func (r *Repository) ListPreferenceDefs(ctx context.Context) ([]domain.PreferenceDef, error) {
	rows := make([]PreferenceDefModel, 0)
	if err := r.db.WithContext(ctx).Order("key ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.PreferenceDef, 0, len(rows))
	for _, m := range rows {
		result = append(result, toPreferenceDef(m))
	}
	return result, nil
}

func (r *Repository) GetPreferenceDefByKey(ctx context.Context, key string) (domain.PreferenceDef, error) {
	var m PreferenceDefModel
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&m).Error; err != nil {
		return domain.PreferenceDef{}, mapErr(err)
	}
	return toPreferenceDef(m), nil
}

func (r *Repository) UpsertUserPreference(ctx context.Context, value domain.UserPreference) (domain.UserPreference, error) {
	m := UserPreferenceModel{UserID: value.UserID, DefID: value.DefID}
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND def_id = ?", value.UserID, value.DefID).
		Assign(map[string]any{"value": value.Value}).
		FirstOrCreate(&m).Error
	if err != nil {
		return domain.UserPreference{}, mapErr(err)
	}
	return domain.UserPreference{
		ID:        m.ID,
		UserID:    m.UserID,
		DefID:     m.DefID,
		Value:     m.Value,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}, nil
}

func (r *Repository) ListUserPreferences(ctx context.Context, userID uint) ([]domain.UserPreference, error) {
	rows := make([]UserPreferenceModel, 0)
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.UserPreference, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.UserPreference{
			ID:        m.ID,
			UserID:    m.UserID,
			DefID:     m.DefID,
			Value:     m.Value,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		})
	}
	return result, nil
}
