package application

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/anihangout/hangout/internal/domain"
)

const (
	KindString = "string"
	KindBool   = "bool"
	KindInt    = "int"
)

const (
	PrefTheme                = "theme"
	PrefWallpaper            = "wallpaper"
	PrefSoundEnabled         = "sound_enabled"
	PrefNotificationsEnabled = "notifications_enabled"
	PrefAccentColor          = "accent_color"
	PrefTypingIndicator      = "typing_indicator"
)

const maxPreferenceValueLength = 256

var DefaultPreferenceDefs = []domain.PreferenceDef{
	{Key: PrefTheme, ValueKind: KindString, DefaultValue: "dark", Description: "Desktop colour theme"},
	{Key: PrefWallpaper, ValueKind: KindString, DefaultValue: "sakura", Description: "Desktop wallpaper"},
	{Key: PrefSoundEnabled, ValueKind: KindBool, DefaultValue: "true", Description: "Play sounds for new messages"},
	{Key: PrefNotificationsEnabled, ValueKind: KindBool, DefaultValue: "true", Description: "Receive notifications"},
	{Key: PrefAccentColor, ValueKind: KindString, DefaultValue: "#ff7eb6", Description: "Accent colour"},
	{Key: PrefTypingIndicator, ValueKind: KindBool, DefaultValue: "true", Description: "Show others when you are typing"},
}

func (s *Service) seedPreferenceDefs(ctx context.Context) error {
	existing, err := s.repo.ListPreferenceDefs(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(existing))
	for _, def := range existing {
		known[def.Key] = struct{}{}
	}
	for _, def := range DefaultPreferenceDefs {
		if _, ok := known[def.Key]; ok {
			continue
		}
		if _, err := s.repo.UpsertPreferenceDef(ctx, def); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) ListPreferenceDefs(ctx context.Context) ([]domain.PreferenceDef, error) {
	return s.repo.ListPreferenceDefs(ctx)
}

func (s *Service) UpsertPreferenceDef(ctx context.Context, key, valueKind, defaultValue, description string) (domain.PreferenceDef, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.PreferenceDef{}, invalidf("key is required")
	}
	valueKind = defaultString(valueKind, KindString)
	normalized, err := normalizePreference(valueKind, defaultValue)
	if err != nil {
		return domain.PreferenceDef{}, err
	}
	return s.repo.UpsertPreferenceDef(ctx, domain.PreferenceDef{
		Key:          key,
		ValueKind:    valueKind,
		DefaultValue: normalized,
		Description:  description,
	})
}

// GetPreferences returns every defined preference for the user, falling back
// to the definition's default where the user has not set a value.
func (s *Service) GetPreferences(ctx context.Context, userID uint) (map[string]string, error) {
	defs, err := s.repo.ListPreferenceDefs(ctx)
	if err != nil {
		return nil, err
	}
	values, err := s.repo.ListUserPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	byDef := make(map[uint]string, len(values))
	for _, v := range values {
		byDef[v.DefID] = v.Value
	}
	result := make(map[string]string, len(defs))
	for _, def := range defs {
		if v, ok := byDef[def.ID]; ok {
			result[def.Key] = v
			continue
		}
		result[def.Key] = def.DefaultValue
	}
	return result, nil
}

func (s *Service) SetPreference(ctx context.Context, userID uint, key, value string) (map[string]string, error) {
	def, err := s.repo.GetPreferenceDefByKey(ctx, strings.TrimSpace(key))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, invalidf("unknown preference %q", key)
		}
		return nil, err
	}
	normalized, err := normalizePreference(def.ValueKind, value)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.UpsertUserPreference(ctx, domain.UserPreference{UserID: userID, DefID: def.ID, Value: normalized}); err != nil {
		return nil, err
	}
	return s.GetPreferences(ctx, userID)
}

// boolPreference reads a bool preference, returning fallback when it cannot be read.
func (s *Service) boolPreference(ctx context.Context, userID uint, key string, fallback bool) bool {
	prefs, err := s.GetPreferences(ctx, userID)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("read preferences")
		return fallback
	}
	raw, ok := prefs[key]
	if !ok {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func normalizePreference(kind, value string) (string, error) {
	value = strings.TrimSpace(value)
	switch kind {
	case KindBool:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return "", invalidf("expected a bool, got %q", value)
		}
		return strconv.FormatBool(v), nil
	case KindInt:
		v, err := strconv.Atoi(value)
		if err != nil {
			return "", invalidf("expected an int, got %q", value)
		}
		return strconv.Itoa(v), nil
	case KindString:
		if len(value) > maxPreferenceValueLength {
			return "", invalidf("value is longer than %d bytes", maxPreferenceValueLength)
		}
		return value, nil
	default:
		return "", invalidf("unknown value kind %q", kind)
	}
}
