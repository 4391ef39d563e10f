package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/anihangout/hangout/internal/application"
	"github.com/anihangout/hangout/internal/domain"
	"github.com/anihangout/hangout/internal/metrics"
	"github.com/anihangout/hangout/internal/middleware"
	"github.com/anihangout/hangout/internal/realtime"
	"github.com/anihangout/hangout/internal/ui"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

const sessionCookieName = "hangout_session"

type contextKey string

const identityKey contextKey = "identity"

const defaultSessionTTL = 7 * 24 * time.Hour

type Options struct {
	SessionTTL   time.Duration
	CookieSecure bool
	Limiter      *middleware.RateLimiter
	Logger       logrus.FieldLogger
}

type Handler struct {
	service      *application.Service
	hub          *realtime.Hub
	log          logrus.FieldLogger
	sessionTTL   time.Duration
	cookieSecure bool

	presenceMu sync.Mutex
	online     map[uint]int
}

func NewRouter(service *application.Service, hub *realtime.Hub, opts Options) http.Handler {
	h := &Handler{
		service:      service,
		hub:          hub,
		log:          opts.Logger,
		sessionTTL:   opts.SessionTTL,
		cookieSecure: opts.CookieSecure,
		online:       make(map[uint]int),
	}
	if h.log == nil {
		h.log = logrus.StandardLogger()
	}
	if h.sessionTTL <= 0 {
		h.sessionTTL = defaultSessionTTL
	}

	r := chi.NewRouter()
	r.Use(middleware.Tracing(h.log))
	r.Use(metrics.InstrumentHandler)
	r.Use(middleware.SecureHeaders)
	if opts.Limiter != nil {
		r.Use(opts.Limiter.Handler)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/static/desktop.js", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		_, _ = w.Write([]byte(ui.DesktopScript))
	})

	r.Get("/login", h.handleLoginPage)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)

	r.Route("/api", func(api chi.Router) {
		read := api.With(h.requireAuthAPI(application.PermRead))
		write := api.With(h.requireAuthAPI(application.PermWrite))
		admin := api.With(h.requireAuthAPI(application.PermAdmin))

		api.Post("/auth/login", h.handleAPILogin)
		api.Post("/auth/register", h.handleAPIRegister)
		api.Post("/auth/external", h.handleAPIExternalLogin)
		read.Get("/auth/whoami", h.handleAPIWhoAmI)
		read.Post("/auth/logout", h.handleAPILogout)

		read.Get("/users/search", h.handleAPISearchUsers)
		read.Get("/users/suggestions", h.handleAPISuggestUsers)
		read.Get("/users/{username}", h.handleAPIGetProfile)
		read.Get("/users/{username}/followers", h.handleAPIListFollowers)
		read.Get("/users/{username}/following", h.handleAPIListFollowing)
		read.Get("/users/{username}/posts", h.handleAPIListUserPosts)
		write.Post("/users/{username}/follow", h.handleAPIFollow)
		write.Delete("/users/{username}/follow", h.handleAPIUnfollow)
		write.Put("/profile", h.handleAPIUpdateProfile)
		write.Put("/presence", h.handleAPISetPresence)

		read.Get("/channels", h.handleAPIListChannels)
		write.Post("/channels", h.handleAPICreateChannel)
		read.Get("/channels/unread", h.handleAPIUnreadCounts)
		write.Post("/channels/direct", h.handleAPIOpenDirect)
		read.Get("/channels/{channelID}", h.handleAPIGetChannel)
		write.Post("/channels/{channelID}/join", h.handleAPIJoinChannel)
		write.Post("/channels/{channelID}/leave", h.handleAPILeaveChannel)
		write.Post("/channels/{channelID}/invite", h.handleAPIInviteMember)
		read.Get("/channels/{channelID}/members", h.handleAPIListMembers)
		read.Get("/channels/{channelID}/messages", h.handleAPIListMessages)
		write.Post("/channels/{channelID}/messages", h.handleAPISendMessage)
		read.Get("/channels/{channelID}/search", h.handleAPISearchMessages)
		write.Post("/channels/{channelID}/read", h.handleAPIMarkRead)
		read.Get("/channels/{channelID}/typing", h.handleAPIListTyping)
		write.Post("/channels/{channelID}/typing", h.handleAPISetTyping)
		write.Delete("/channels/{channelID}/typing", h.handleAPIClearTyping)
		write.Patch("/messages/{messageID}", h.handleAPIEditMessage)
		write.Delete("/messages/{messageID}", h.handleAPIDeleteMessage)
		write.Post("/messages/{messageID}/reactions", h.handleAPIToggleReaction)

		read.Get("/feed", h.handleAPIFeed)
		read.Get("/explore", h.handleAPIExplore)
		read.Get("/posts/search", h.handleAPISearchPosts)
		write.Post("/posts", h.handleAPICreatePost)
		read.Get("/posts/{postID}", h.handleAPIGetPost)
		write.Patch("/posts/{postID}", h.handleAPIEditPost)
		write.Delete("/posts/{postID}", h.handleAPIDeletePost)
		write.Post("/posts/{postID}/like", h.handleAPITogglePostLike)
		read.Get("/posts/{postID}/comments", h.handleAPIListComments)
		write.Post("/posts/{postID}/comments", h.handleAPIAddComment)
		write.Patch("/comments/{commentID}", h.handleAPIEditComment)
		write.Delete("/comments/{commentID}", h.handleAPIDeleteComment)
		write.Post("/comments/{commentID}/like", h.handleAPIToggleCommentLike)

		write.Post("/files", h.handleAPIUploadFile)
		read.Get("/files/{fileID}", h.handleAPIDownloadFile)
		write.Delete("/files/{fileID}", h.handleAPIDeleteFile)

		read.Get("/modules", h.handleAPIListModules)
		write.Put("/modules/{key}", h.handleAPISaveModule)
		write.Post("/modules/{key}/open", h.handleAPIOpenModule)
		write.Post("/modules/{key}/focus", h.handleAPIFocusModule)
		write.Post("/modules/{key}/close", h.handleAPICloseModule)
		write.Delete("/modules", h.handleAPIResetModules)
		read.Post("/context-menu", h.handleAPIPlaceContextMenu)

		read.Get("/preferences", h.handleAPIGetPreferences)
		write.Put("/preferences/{key}", h.handleAPISetPreference)
		read.Get("/preferences/defs", h.handleAPIListPreferenceDefs)
		admin.Put("/preferences/defs/{key}", h.handleAPIUpsertPreferenceDef)

		read.Get("/notifications", h.handleAPIListNotifications)
		read.Get("/notifications/unread", h.handleAPIUnreadNotifications)
		write.Post("/notifications/{notificationID}/read", h.handleAPIMarkNotificationRead)
		write.Post("/notifications/read-all", h.handleAPIMarkAllNotificationsRead)

		read.Get("/activity", h.handleAPIListActivity)
		admin.Get("/activity/all", h.handleAPIListAllActivity)

		read.Get("/realtime", h.handleRealtime)
	})

	r.With(h.requireAuthGUI(application.PermRead)).Get("/", h.handleDesktop)
	r.With(h.requireAuthGUI(application.PermRead)).Get("/ui/stream", h.handleStream)
	r.With(h.requireAuthGUI(application.PermRead)).Post("/ui/context-menu", h.handleContextMenu)
	r.With(h.requireAuthGUI(application.PermWrite)).Post("/ui/chat/send", h.handleChatSend)
	r.With(h.requireAuthGUI(application.PermWrite)).Post("/ui/modules/move", h.handleModuleMove)
	r.With(h.requireAuthGUI(application.PermWrite)).Post("/ui/modules/focus", h.handleModuleFocus)
	r.With(h.requireAuthGUI(application.PermWrite)).Post("/ui/modules/open", h.handleModuleOpen)
	r.With(h.requireAuthGUI(application.PermWrite)).Post("/ui/modules/close", h.handleModuleClose)

	return r
}

func (h *Handler) requireAuthGUI(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := h.authenticateRequest(r)
			if !ok {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			if !h.service.Can(identity, permission) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
		})
	}
}

func (h *Handler) requireAuthAPI(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := h.authenticateRequest(r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
				return
			}
			if !h.service.Can(identity, permission) {
				writeJSON(w, http.StatusForbidden, map[string]any{"error": "forbidden"})
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
		})
	}
}

// authenticateRequest accepts a bearer API token or provider JWT, then falls
// back to the session cookie.
func (h *Handler) authenticateRequest(r *http.Request) (domain.Identity, bool) {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[7:])
		identity, err := h.service.AuthenticateBearerToken(r.Context(), token)
		if err == nil {
			return identity, true
		}
	}

	c, err := r.Cookie(sessionCookieName)
	if err == nil && strings.TrimSpace(c.Value) != "" {
		identity, authErr := h.service.AuthenticateSession(r.Context(), c.Value)
		if authErr == nil {
			return identity, true
		}
	}

	return domain.Identity{}, false
}

func identityFromContext(ctx context.Context) (domain.Identity, bool) {
	value := ctx.Value(identityKey)
	if value == nil {
		return domain.Identity{}, false
	}
	identity, ok := value.(domain.Identity)
	return identity, ok
}

// currentUserID is only called behind requireAuth*, which guarantees an identity.
func currentUserID(ctx context.Context) uint {
	identity, _ := identityFromContext(ctx)
	return identity.User.ID
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.cookieSecure,
		MaxAge:   int(h.sessionTTL.Seconds()),
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps domain errors to a status. Internal errors are logged and
// hidden from the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.log.WithError(err).WithFields(logrus.Fields{
			"path":     r.URL.Path,
			"trace_id": middleware.TraceID(r.Context()),
		}).Error("request failed")
		message = "internal error"
	}
	writeJSON(w, status, map[string]any{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || v == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid " + name})
		return 0, false
	}
	return uint(v), true
}

func queryUint(r *http.Request, name string) uint {
	v, err := strconv.ParseUint(r.URL.Query().Get(name), 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
}

func queryLimit(r *http.Request) int {
	v, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return v
}

func renderHTMLFragments(ctx context.Context, w http.ResponseWriter, status int, fragments ...templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	for _, fragment := range fragments {
		if fragment == nil {
			continue
		}
		_ = fragment.Render(ctx, w)
	}
}

func (h *Handler) renderFlash(ctx context.Context, w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if status >= 400 {
		_ = ui.Flash(message, "error").Render(ctx, w)
		return
	}
	_ = ui.Flash(message, "info").Render(ctx, w)
}
