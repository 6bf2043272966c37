package app

import (
	"context"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
	"unicode/utf8"

	"termfolio/internal/util"
	"termfolio/pkg/domain"
	"termfolio/pkg/store"
)

type ProfileStats struct {
	CommandExecutions int64 `json:"commandExecutions"`
	FileDownloads     int64 `json:"fileDownloads"`
}

// Profile is a visitor as shown to themselves.
type Profile struct {
	ID            string       `json:"id"`
	SessionID     string       `json:"sessionId"`
	Nickname      string       `json:"nickname"`
	FirstVisitAt  time.Time    `json:"firstVisitAt"`
	LastVisitAt   time.Time    `json:"lastVisitAt"`
	TotalCommands int64        `json:"totalCommands"`
	Timezone      string       `json:"timezone"`
	Country       string       `json:"country"`
	Stats         ProfileStats `json:"stats"`
}

// ProfileUpdateRequest carries optional profile fields; empty strings are
// ignored.
type ProfileUpdateRequest struct {
	Nickname string
	Timezone string
}

// Profile returns the visitor for sessionID with activity counts.
func (a *App) Profile(ctx context.Context, sessionID string) (Profile, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Profile{}, &ValidationError{Fields: map[string]string{"sessionId": "Session ID is required"}}
	}
	user, ok, err := a.store.GetUserBySession(ctx, sessionID)
	if err != nil {
		return Profile{}, fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		return Profile{}, ErrUserNotFound
	}
	executions, downloads, err := a.store.CountUserActivity(ctx, user.ID)
	if err != nil {
		return Profile{}, fmt.Errorf("count user activity: %w", err)
	}
	p := profileFrom(user)
	p.Stats = ProfileStats{CommandExecutions: executions, FileDownloads: downloads}
	return p, nil
}

// UpdateProfile applies the non-empty fields of req.
func (a *App) UpdateProfile(ctx context.Context, sessionID string, req ProfileUpdateRequest) (Profile, error) {
	v := validation{}
	if strings.TrimSpace(sessionID) == "" {
		v.add("sessionId", "Session ID is required")
	}
	nickname := strings.TrimSpace(req.Nickname)
	if utf8.RuneCountInString(nickname) > maxNicknameLen {
		v.add("nickname", "Nickname must be between 1 and 100 characters")
	}
	timezone := strings.TrimSpace(req.Timezone)
	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			v.add("timezone", "Unknown timezone")
		}
	}
	if err := v.err(); err != nil {
		return Profile{}, err
	}

	var update store.ProfileUpdate
	if nickname != "" {
		update.Nickname = &nickname
	}
	if timezone != "" {
		update.Timezone = &timezone
	}
	user, ok, err := a.store.UpdateUserProfile(ctx, sessionID, update)
	if err != nil {
		return Profile{}, fmt.Errorf("update profile: %w", err)
	}
	if !ok {
		return Profile{}, ErrUserNotFound
	}
	return profileFrom(user), nil
}

// DeleteUser erases the visitor for sessionID: downloads are removed,
// executions are kept without a user reference.
func (a *App) DeleteUser(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return &ValidationError{Fields: map[string]string{"sessionId": "Session ID is required"}}
	}
	user, ok, err := a.store.GetUserBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	if err := a.store.DeleteUserData(ctx, user.ID); err != nil {
		if isNotFound(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user data: %w", err)
	}
	util.LoggerFromContext(ctx).Info("user_data_deleted", "user_id", user.ID)
	a.recorder.UserDeleted(ctx, user.ID)
	return nil
}

func profileFrom(u domain.User) Profile {
	return Profile{
		ID:            u.ID,
		SessionID:     u.SessionID,
		Nickname:      u.Nickname,
		FirstVisitAt:  u.FirstVisitAt,
		LastVisitAt:   u.LastVisitAt,
		TotalCommands: u.TotalCommands,
		Timezone:      u.Timezone,
		Country:       u.Country,
	}
}
