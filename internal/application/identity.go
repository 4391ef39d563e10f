package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/anihangout/hangout/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,32}$`)

const minPasswordLength = 8

// Seed creates the built-in roles, permissions and preference definitions.
// It is safe to call on every start.
func (s *Service) Seed(ctx context.Context) error {
	adminRoleID, err := s.repo.CreateRoleIfMissing(ctx, "admin", "Administrator")
	if err != nil {
		return err
	}
	allID, err := s.repo.CreatePermissionIfMissing(ctx, "*")
	if err != nil {
		return err
	}
	if err := s.repo.GrantPermissionToRole(ctx, adminRoleID, allID); err != nil {
		return err
	}

	memberRoleID, err := s.repo.CreateRoleIfMissing(ctx, "member", "Member")
	if err != nil {
		return err
	}
	for _, key := range []string{PermRead, PermWrite} {
		permID, err := s.repo.CreatePermissionIfMissing(ctx, key)
		if err != nil {
			return err
		}
		if err := s.repo.GrantPermissionToRole(ctx, memberRoleID, permID); err != nil {
			return err
		}
	}
	if _, err := s.repo.CreatePermissionIfMissing(ctx, PermAdmin); err != nil {
		return err
	}

	return s.seedPreferenceDefs(ctx)
}

func (s *Service) BootstrapAdmin(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" {
		return invalidf("bootstrap admin email and password are required")
	}
	if err := s.Seed(ctx); err != nil {
		return err
	}

	count, err := s.repo.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	username, err := s.uniqueUsername(ctx, usernameFromEmail(email))
	if err != nil {
		return err
	}
	u, err := s.repo.CreateUser(ctx, domain.User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Username:     username,
		DisplayName:  username,
		PasswordHash: hash,
	})
	if err != nil {
		return err
	}

	adminRoleID, err := s.repo.CreateRoleIfMissing(ctx, "admin", "Administrator")
	if err != nil {
		return err
	}
	if err := s.repo.AssignRoleToUser(ctx, u.ID, adminRoleID); err != nil {
		return err
	}
	s.WriteActivity(ctx, &u.ID, "auth.bootstrap_admin", "user", &u.ID, "initial admin created")
	return nil
}

// Register creates a local account with the member role.
func (s *Service) Register(ctx context.Context, email, username, password string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.ToLower(strings.TrimSpace(username))
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, invalidf("a valid email is required")
	}
	if !usernamePattern.MatchString(username) {
		return domain.User{}, invalidf("username must be 3-32 characters of a-z, 0-9 or _")
	}
	if len(password) < minPasswordLength {
		return domain.User{}, invalidf("password must be at least %d characters", minPasswordLength)
	}
	hash, err := hashPassword(password)
	if err != nil {
		return domain.User{}, err
	}
	u, err := s.repo.CreateUser(ctx, domain.User{
		Email:        email,
		Username:     username,
		DisplayName:  username,
		PasswordHash: hash,
	})
	if err != nil {
		return domain.User{}, err
	}
	if err := s.assignMemberRole(ctx, u.ID); err != nil {
		return domain.User{}, err
	}
	s.WriteActivity(ctx, &u.ID, "auth.register", "user", &u.ID, "")
	return u, nil
}

func (s *Service) LoginWithSession(ctx context.Context, email, password string, ttl time.Duration) (domain.User, string, error) {
	u, err := s.authenticateEmailPassword(ctx, email, password)
	if err != nil {
		return domain.User{}, "", err
	}
	plain, err := s.issueSession(ctx, u.ID, ttl)
	if err != nil {
		return domain.User{}, "", err
	}
	s.WriteActivity(ctx, &u.ID, "auth.login.session", "user", &u.ID, "session login")
	return u, plain, nil
}

// LoginWithExternalToken exchanges a verified identity-provider token for a session.
func (s *Service) LoginWithExternalToken(ctx context.Context, token string, ttl time.Duration) (domain.User, string, error) {
	u, err := s.SyncExternalIdentity(ctx, token)
	if err != nil {
		return domain.User{}, "", err
	}
	plain, err := s.issueSession(ctx, u.ID, ttl)
	if err != nil {
		return domain.User{}, "", err
	}
	s.WriteActivity(ctx, &u.ID, "auth.login.external", "user", &u.ID, "identity provider login")
	return u, plain, nil
}

func (s *Service) LoginWithAPIToken(ctx context.Context, email, password, tokenName string, ttl *time.Duration) (domain.User, string, error) {
	u, err := s.authenticateEmailPassword(ctx, email, password)
	if err != nil {
		return domain.User{}, "", err
	}

	plain, hash, err := newTokenPair()
	if err != nil {
		return domain.User{}, "", err
	}

	var expiresAt *time.Time
	if ttl != nil {
		t := s.now().Add(*ttl)
		expiresAt = &t
	}

	_, err = s.repo.CreateAPIToken(ctx, domain.APIToken{
		UserID:    u.ID,
		Name:      defaultString(tokenName, "cli"),
		TokenHash: hash,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return domain.User{}, "", err
	}

	s.WriteActivity(ctx, &u.ID, "auth.login.api_token", "user", &u.ID, "api token issued")
	return u, plain, nil
}

func (s *Service) AuthenticateSession(ctx context.Context, token string) (domain.Identity, error) {
	hash := hashToken(token)
	session, err := s.repo.GetSessionByTokenHash(ctx, hash)
	if err != nil {
		return domain.Identity{}, domain.ErrUnauthorized
	}
	if session.ExpiresAt.Before(s.now()) {
		_ = s.repo.DeleteSessionByTokenHash(ctx, hash)
		return domain.Identity{}, fmt.Errorf("%w: session expired", domain.ErrUnauthorized)
	}

	return s.identityByUserID(ctx, session.UserID)
}

// AuthenticateBearerToken accepts an API token or, when a verifier is
// configured, an identity-provider JWT.
func (s *Service) AuthenticateBearerToken(ctx context.Context, token string) (domain.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return domain.Identity{}, domain.ErrUnauthorized
	}
	apit, err := s.repo.GetAPITokenByTokenHash(ctx, hashToken(token))
	if err == nil {
		if apit.ExpiresAt != nil && apit.ExpiresAt.Before(s.now()) {
			return domain.Identity{}, fmt.Errorf("%w: token expired", domain.ErrUnauthorized)
		}
		return s.identityByUserID(ctx, apit.UserID)
	}
	if s.verifier == nil || strings.Count(token, ".") != 2 {
		return domain.Identity{}, domain.ErrUnauthorized
	}
	u, err := s.SyncExternalIdentity(ctx, token)
	if err != nil {
		return domain.Identity{}, err
	}
	return s.identityByUserID(ctx, u.ID)
}

func (s *Service) LogoutSession(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return s.repo.DeleteSessionByTokenHash(ctx, hashToken(token))
}

func (s *Service) Can(identity domain.Identity, permission string) bool {
	if _, ok := identity.Permissions["*"]; ok {
		return true
	}
	_, ok := identity.Permissions[permission]
	return ok
}

// SyncExternalIdentity verifies a provider token and upserts the matching
// user keyed by the token subject. A local account with the same email is
// linked only when the provider vouches for the email and the account has no
// external identity yet; any other email match is a conflict.
func (s *Service) SyncExternalIdentity(ctx context.Context, token string) (domain.User, error) {
	if s.verifier == nil {
		return domain.User{}, fmt.Errorf("%w: identity provider is not configured", domain.ErrUnauthorized)
	}
	claims, err := s.verifier.Verify(token)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return domain.User{}, fmt.Errorf("%w: token has no subject", domain.ErrUnauthorized)
	}
	subject := claims.Subject

	u, err := s.repo.GetUserByExternalID(ctx, subject)
	if err == nil {
		return s.refreshExternalProfile(ctx, u, claims)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, err
	}

	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email != "" {
		existing, err := s.repo.GetUserByEmail(ctx, email)
		switch {
		case err == nil:
			if existing.ExternalID != nil {
				return domain.User{}, fmt.Errorf("%w: email is bound to another external identity", domain.ErrConflict)
			}
			if !claims.EmailVerified {
				return domain.User{}, fmt.Errorf("%w: unverified email matches an existing account", domain.ErrConflict)
			}
			s.WriteActivity(ctx, &existing.ID, "auth.external.link", "user", &existing.ID, subject)
			return s.refreshExternalProfile(ctx, existing, claims)
		case !errors.Is(err, domain.ErrNotFound):
			return domain.User{}, err
		}
	} else {
		email = placeholderEmail(subject)
	}

	base := sanitizeUsername(claims.Username)
	if base == "" {
		base = usernameFromEmail(email)
	}
	username, err := s.uniqueUsername(ctx, base)
	if err != nil {
		return domain.User{}, err
	}
	u, err = s.repo.CreateUser(ctx, domain.User{
		ExternalID:  &subject,
		Email:       email,
		Username:    username,
		DisplayName: defaultString(claims.DisplayName, username),
		AvatarURL:   claims.AvatarURL,
	})
	if err != nil {
		return domain.User{}, err
	}
	if err := s.assignMemberRole(ctx, u.ID); err != nil {
		return domain.User{}, err
	}
	s.WriteActivity(ctx, &u.ID, "auth.external.create", "user", &u.ID, subject)
	return u, nil
}

func (s *Service) refreshExternalProfile(ctx context.Context, u domain.User, claims domain.ExternalClaims) (domain.User, error) {
	changed := false
	if claims.DisplayName != "" && claims.DisplayName != u.DisplayName {
		u.DisplayName = claims.DisplayName
		changed = true
	}
	if claims.AvatarURL != "" && claims.AvatarURL != u.AvatarURL {
		u.AvatarURL = claims.AvatarURL
		changed = true
	}
	if u.ExternalID == nil {
		subject := claims.Subject
		u.ExternalID = &subject
		changed = true
	}
	if !changed {
		return u, nil
	}
	u.Email = ""
	return s.repo.UpdateUserProfile(ctx, u)
}

// placeholderEmail is the address of an external user whose provider sent no
// email. It is unique per subject.
func placeholderEmail(subject string) string {
	sum := sha256.Sum256([]byte(subject))
	return "ext-" + hex.EncodeToString(sum[:8]) + "@external.invalid"
}

func (s *Service) WriteActivity(ctx context.Context, actorUserID *uint, action, targetType string, targetID *uint, metadata string) {
	err := s.repo.CreateActivityLog(ctx, domain.ActivityLog{
		ActorUserID: actorUserID,
		Action:      action,
		TargetType:  targetType,
		TargetID:    targetID,
		Metadata:    metadata,
	})
	if err != nil {
		s.log.WithError(err).WithField("action", action).Warn("write activity log")
	}
}

func (s *Service) issueSession(ctx context.Context, userID uint, ttl time.Duration) (string, error) {
	plain, hash, err := newTokenPair()
	if err != nil {
		return "", err
	}
	_, err = s.repo.CreateSession(ctx, domain.AuthSession{
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: s.now().Add(ttl),
	})
	if err != nil {
		return "", err
	}
	return plain, nil
}

func (s *Service) assignMemberRole(ctx context.Context, userID uint) error {
	roleID, err := s.repo.CreateRoleIfMissing(ctx, "member", "Member")
	if err != nil {
		return err
	}
	return s.repo.AssignRoleToUser(ctx, userID, roleID)
}

func (s *Service) authenticateEmailPassword(ctx context.Context, email, password string) (domain.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}
	if u.PasswordHash == "" {
		return domain.User{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}
	return u, nil
}

func (s *Service) identityByUserID(ctx context.Context, userID uint) (domain.Identity, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return domain.Identity{}, domain.ErrUnauthorized
	}
	permList, err := s.repo.GetPermissionsByUserID(ctx, userID)
	if err != nil {
		return domain.Identity{}, err
	}
	permMap := make(map[string]struct{}, len(permList))
	for _, p := range permList {
		permMap[p] = struct{}{}
	}
	return domain.Identity{User: u, Permissions: permMap}, nil
}

// uniqueUsername returns base, or base with the lowest numeric suffix that is free.
func (s *Service) uniqueUsername(ctx context.Context, base string) (string, error) {
	base = sanitizeUsername(base)
	if len(base) < 3 {
		base = "user" + base
	}
	if len(base) > 28 {
		base = base[:28]
	}
	candidate := base
	for i := 2; i < 10000; i++ {
		_, err := s.repo.GetUserByUsername(ctx, candidate)
		if errors.Is(err, domain.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = base + strconv.Itoa(i)
	}
	return "", fmt.Errorf("%w: no free username for %q", domain.ErrConflict, base)
}

func sanitizeUsername(input string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(input)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '.', r == '-', r == ' ':
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(email)), "@")
	return sanitizeUsername(local)
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func newTokenPair() (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	plain := base64.RawURLEncoding.EncodeToString(raw)
	return plain, hashToken(plain), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", sum[:])
}

func defaultString(input, fallback string) string {
	if strings.TrimSpace(input) == "" {
		return fallback
	}
	return input
}
