package application

import (
	"context"
	"regexp"

	"github.com/anihangout/hangout/internal/domain"
	"github.com/anihangout/hangout/internal/layout"
)

const menuMargin = 8

var moduleKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)

// DefaultModuleSize is used for windows opened without an explicit size.
var DefaultModuleSize = layout.Size{W: 480, H: 360}

type ModuleFlags struct {
	Minimized bool `json:"minimized"`
	Maximized bool `json:"maximized"`
}

func (s *Service) ListModuleStates(ctx context.Context, userID uint) ([]domain.ModuleState, error) {
	return s.repo.ListModuleStates(ctx, userID)
}

// SaveModuleState clamps the window into the viewport and persists it. A
// window saved for the first time is put on top of the others.
func (s *Service) SaveModuleState(ctx context.Context, userID uint, key string, rect layout.Rect, vp layout.Viewport, flags ModuleFlags) (domain.ModuleState, error) {
	if !moduleKeyPattern.MatchString(key) {
		return domain.ModuleState{}, invalidf("invalid module key %q", key)
	}
	states, err := s.repo.ListModuleStates(ctx, userID)
	if err != nil {
		return domain.ModuleState{}, err
	}
	z := 0
	for _, st := range states {
		if st.ModuleKey == key {
			z = st.Z
		}
	}
	if z == 0 {
		zs, err := s.frontZ(ctx, userID, states, key)
		if err != nil {
			return domain.ModuleState{}, err
		}
		z = zs[key]
	}
	clamped := layout.ClampWindow(rect, vp, layout.Size{})
	saved, err := s.repo.UpsertModuleState(ctx, domain.ModuleState{
		UserID:    userID,
		ModuleKey: key,
		X:         clamped.X,
		Y:         clamped.Y,
		Width:     clamped.W,
		Height:    clamped.H,
		Z:         z,
		Minimized: flags.Minimized,
		Maximized: flags.Maximized,
		Open:      true,
	})
	if err != nil {
		return domain.ModuleState{}, err
	}
	s.publish(domain.UserTopic(userID), domain.EventModuleUpdated, saved)
	return saved, nil
}

// OpenModule reopens a known window on top, or cascades a new one from the
// last opened window.
func (s *Service) OpenModule(ctx context.Context, userID uint, key string, vp layout.Viewport) (domain.ModuleState, error) {
	if !moduleKeyPattern.MatchString(key) {
		return domain.ModuleState{}, invalidf("invalid module key %q", key)
	}
	states, err := s.repo.ListModuleStates(ctx, userID)
	if err != nil {
		return domain.ModuleState{}, err
	}
	openRects := make([]layout.Rect, 0, len(states))
	for _, st := range states {
		if st.ModuleKey == key {
			rect := layout.Rect{X: st.X, Y: st.Y, W: st.Width, H: st.Height}
			return s.SaveModuleStateOnTop(ctx, userID, key, rect, vp, ModuleFlags{Maximized: st.Maximized})
		}
		if st.Open {
			openRects = append(openRects, layout.Rect{X: st.X, Y: st.Y, W: st.Width, H: st.Height})
		}
	}
	rect := layout.Cascade(openRects, vp, DefaultModuleSize)
	return s.SaveModuleState(ctx, userID, key, rect, vp, ModuleFlags{})
}

// SaveModuleStateOnTop saves the window and raises it above the others.
func (s *Service) SaveModuleStateOnTop(ctx context.Context, userID uint, key string, rect layout.Rect, vp layout.Viewport, flags ModuleFlags) (domain.ModuleState, error) {
	if _, err := s.FocusModule(ctx, userID, key); err != nil {
		return domain.ModuleState{}, err
	}
	return s.SaveModuleState(ctx, userID, key, rect, vp, flags)
}

// FocusModule brings the window to the front and returns all window states.
func (s *Service) FocusModule(ctx context.Context, userID uint, key string) ([]domain.ModuleState, error) {
	states, err := s.repo.ListModuleStates(ctx, userID)
	if err != nil {
		return nil, err
	}
	found := false
	for _, st := range states {
		if st.ModuleKey == key {
			found = true
		}
	}
	if !found {
		return nil, domain.ErrNotFound
	}
	if _, err := s.frontZ(ctx, userID, states, key); err != nil {
		return nil, err
	}
	updated, err := s.repo.ListModuleStates(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.publish(domain.UserTopic(userID), domain.EventModuleUpdated, updated)
	return updated, nil
}

// frontZ computes the stacking order with key on top and persists every z that changed.
func (s *Service) frontZ(ctx context.Context, userID uint, states []domain.ModuleState, key string) (map[string]int, error) {
	current := make(map[string]int, len(states))
	for _, st := range states {
		current[st.ModuleKey] = st.Z
	}
	next := layout.BringToFront(current, key)
	changed := make(map[string]int)
	for k, z := range next {
		if k == key {
			continue
		}
		if old, ok := current[k]; !ok || old != z {
			changed[k] = z
		}
	}
	if _, known := current[key]; known {
		changed[key] = next[key]
	}
	if len(changed) > 0 {
		if err := s.repo.UpdateModuleZ(ctx, userID, changed); err != nil {
			return nil, err
		}
	}
	return next, nil
}

func (s *Service) CloseModule(ctx context.Context, userID uint, key string) (domain.ModuleState, error) {
	states, err := s.repo.ListModuleStates(ctx, userID)
	if err != nil {
		return domain.ModuleState{}, err
	}
	for _, st := range states {
		if st.ModuleKey != key {
			continue
		}
		st.Open = false
		st.Minimized = false
		saved, err := s.repo.UpsertModuleState(ctx, st)
		if err != nil {
			return domain.ModuleState{}, err
		}
		s.publish(domain.UserTopic(userID), domain.EventModuleUpdated, saved)
		return saved, nil
	}
	return domain.ModuleState{}, domain.ErrNotFound
}

func (s *Service) ResetModules(ctx context.Context, userID uint) error {
	if err := s.repo.DeleteModuleStates(ctx, userID); err != nil {
		return err
	}
	s.publish(domain.UserTopic(userID), domain.EventModuleUpdated, []domain.ModuleState{})
	return nil
}

// PlaceContextMenu positions a context menu opened at p.
func (s *Service) PlaceContextMenu(p layout.Point, menu layout.Size, vp layout.Viewport) layout.Point {
	return layout.PlaceMenu(p, menu, vp, menuMargin)
}
