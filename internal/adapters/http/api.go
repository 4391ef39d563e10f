package http

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/anihangout/hangout/internal/application"
	"github.com/anihangout/hangout/internal/layout"
	"github.com/go-chi/chi/v5"
)

type apiLoginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Mode      string `json:"mode"`
	TokenName string `json:"token_name"`
}

func (h *Handler) handleAPILogin(w http.ResponseWriter, r *http.Request) {
	var req apiLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = "token"
	}

	if mode == "session" {
		u, token, err := h.service.LoginWithSession(r.Context(), req.Email, req.Password, h.sessionTTL)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid credentials"})
			return
		}
		h.setSessionCookie(w, token)
		writeJSON(w, http.StatusOK, map[string]any{"user_id": u.ID, "username": u.Username, "mode": "session"})
		return
	}

	u, token, err := h.service.LoginWithAPIToken(r.Context(), req.Email, req.Password, req.TokenName, nil)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": u.ID, "username": u.Username, "token": token, "mode": "token"})
}

type apiRegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleAPIRegister(w http.ResponseWriter, r *http.Request) {
	var req apiRegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.service.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// handleAPIExternalLogin trades an identity-provider token for a session cookie.
func (h *Handler) handleAPIExternalLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	u, token, err := h.service.LoginWithExternalToken(r.Context(), req.Token, h.sessionTTL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]any{"user_id": u.ID, "username": u.Username, "mode": "session"})
}

func (h *Handler) handleAPIWhoAmI(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}
	perms := make([]string, 0, len(identity.Permissions))
	for p := range identity.Permissions {
		perms = append(perms, p)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          identity.User.ID,
		"email":       identity.User.Email,
		"username":    identity.User.Username,
		"permissions": perms,
	})
}

func (h *Handler) handleAPILogout(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	c, err := r.Cookie(sessionCookieName)
	if err == nil && c.Value != "" {
		_ = h.service.LogoutSession(r.Context(), c.Value)
		h.clearSessionCookie(w)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Social

func (h *Handler) handleAPISearchUsers(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.SearchUsers(r.Context(), r.URL.Query().Get("q"), queryLimit(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAPISuggestUsers(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.SuggestUsers(r.Context(), currentUserID(r.Context()), queryLimit(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAPIGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProfile(r.Context(), currentUserID(r.Context()), chi.URLParam(r, "username"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleAPIListFollowers(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListFollowers(r.Context(), chi.URLParam(r, "username"), queryLimit(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAPIListFollowing(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListFollowing(r.Context(), chi.URLParam(r, "username"), queryLimit(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAPIListUserPosts(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListUserPosts(r.Context(), currentUserID(r.Context()), chi.URLParam(r, "username"), queryUint(r, "before_id"), queryLimit(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAPIFollow(w http.ResponseWriter, r *http.Request) {
	h.setFollow(w, r, true)
}

func (h *Handler) handleAPIUnfollow(w http.ResponseWriter, r *http.Request) {
	h.setFollow(w, r, false)
}

func (h *Handler) setFollow(w http.ResponseWriter, r *http.Request, follow bool) {
	if err := h.service.FollowByUsername(r.Context(), currentUserID(r.Context()), chi.URLParam(r, "username"), follow); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"following": follow})
}

type apiProfileRequest struct {
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
	AvatarURL   string `json:"avatar_url"`
}

func (h *Handler) handleAPIUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req apiProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.service.UpdateProfile(r.Context(), currentUserID(r.Context()), req.DisplayName, req.Bio, req.AvatarURL)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) handleAPISetPresence(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.service.SetPresence(r.Context(), currentUserID(r.Context()), req.Status); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": req.Status})
}

// Chat

type apiCreateChannelRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
}

func (h *Handler) handleAPIListChannels(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListChannels(r.Context(), currentUserID(r.Context()), queryLimit(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAPICreateChannel(w http.ResponseWriter, r *http.Request) {
	var req apiCreateChannelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.service.CreateChannel(r.Context(), currentUserID(r.Context()), req.Name, req.Description, req.Kind)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleAPIUnreadCounts(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.UnreadCounts(r.Context(), currentUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAPIOpenDirect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID uint `json:"user_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.service.OpenDirectChannel(r.Context(), currentUserID(r.Context()), req.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleAPIGetChannel(w http.ResponseWriter, r *http.Request) {
	channelID, ok := pathID(w, r, "channelID")
	if !ok {
		return
	}
	c, err := h.service.GetChannel(r.Context(), currentUserID(r.Context()), channelID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleAPIJoinChannel(w http.ResponseWriter, r *http.Request) {
	channelID, ok := pathID(w, r, "channelID")
	if !ok {
		return
	}
	m, err := h.service.JoinChannel(r.Context(), currentUserID(r.Context()), channelID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleAPILeaveChannel(w http.ResponseWriter, r *http.Request) {
	channelID, ok := pathID(w, r, "channelID")
	if !ok {
		return
	}
	if err := h.service.LeaveChannel(r.Context(), currentUserID(r.Context()), channelID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleAPIInviteMember(w http.ResponseWriter, r *http.Request) {
	channelID, ok := pathID(w, r, "channelID")
	if !ok {
		return
	}
	var req struct {
		Username string `json:"username"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := h.service.InviteMember(r.Context(), currentUserID(r.Context()), channelID, req.Username)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleAPIListMembers(w http.ResponseWriter, r *http.Request) {
	channelID, ok := pathID(w, r, "channelID")
	if !ok {
		return
	}
	items, err := h.service.ListMembers(r.Context(), currentUserID(r.Context()), channelID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAPIListMessages(w http.ResponseWriter, r *http.Request) {
	channelID, ok := pathID(w, r, "channelID")
	if !ok {
		return
	}
	items, err := h.service.ListMessages(r.Context(), currentUserID(r.Context()), channelID, queryUint(r, "before_id"), queryLimit(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type apiSendMessageRequest struct {
	Body     string `json:"body"`
	ParentID *uint  `json:"parent_id"`
	FileID   *uint  `json:"file_id"`
}

func (h *Handler) handleAPISendMessage(w http.ResponseWriter, r *http.Request) {
	channelID, ok := pathID(w, r, "channelID")
	if !ok {
		return
	}
	var req apiSendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := h.service.SendMessage(r.Context(), currentUserID(r.Context()), application.SendMessageInput{
		ChannelID: channelID,
		Body:      req.Body,
		ParentID:  req.ParentID,
		FileID:    req.FileID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) handleAPISearchMessages(w http.ResponseWriter, r *http.Request) {
	channelID, ok := pathID(w, r, "channelID")
	if !ok {
		return
	}
	items, err := h.service.SearchMessages(r.Context(), currentUserID(r.Context()), channelID, r.URL.Query().Get("q"), queryLimit(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAPIMarkRead(w http.ResponseWriter, r *http.Request) {
	channelID, ok := pathID(w, r, "channelID")
	if !ok {
		return
	}
	var req struct {
		MessageID uint `json:"message_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.service.MarkRead(r.Context(), currentUserID(r.Context()), channelID, req.MessageID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleAPIListTyping(w http.ResponseWriter, r *http.Request) {
	channelID, ok := pathID(w, r, "channelID")
	if !ok {
		return
	}
	items, err := h.service.ListTyping(r.Context(), currentUserID(r.Context()), channelID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAPISetTyping(w http.ResponseWriter, r *http.Request) {
	channelID, ok := pathID(w, r, "channelID")
	if !ok {
		return
	}
	broadcast, err := h.service.SetTyping(r.Context(), currentUserID(r.Context()), channelID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"broadcast": broadcast})
}

func (h *Handler) handleAPIClearTyping(w http.ResponseWriter, r *http.Request) {
	channelID, ok := pathID(w, r, "channelID")
	if !ok {
		return
	}
	if err := h.service.ClearTyping(r.Context(), currentUserID(r.Context()), channelID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type apiBodyRequest struct {
	Body string `json:"body"`
}

func (h *Handler) handleAPIEditMessage(w http.ResponseWriter, r *http.Request) {
	messageID, ok := pathID(w, r, "messageID")
	if !ok {
		return
	}
	var req apiBodyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := h.service.EditMessage(r.Context(), currentUserID(r.Context()), messageID, req.Body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleAPIDeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID, ok := pathID(w, r, "messageID")
	if !ok {
		return
	}
	m, err := h.service.DeleteMessage(r.Context(), currentUserID(r.Context()), messageID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleAPIToggleReaction(w http.ResponseWriter, r *http.Request) {
	messageID, ok := pathID(w, r, "messageID")
	if !ok {
		return
	}
	var req struct {
		Emoji string `json:"emoji"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	items, err := h.service.ToggleReaction(r.Context(), currentUserID(r.Context()), messageID, req.Emoji)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Feed

func (h *Handler) handleAPIFeed(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Feed(r.Context(), currentUserID(r.Context()), queryUint(r, "before_id"), queryLimit(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAPIExplore(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Explore(r.Context(), currentUserID(r.Context()), queryUint(r, "before_id"), queryLimit(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAPISearchPosts(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.SearchPosts(r.Context(), currentUserID(r.Context()), r.URL.Query().Get("q"), queryLimit(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type apiCreatePostRequest struct {
	Body       string `json:"body"`
	Visibility string `json:"visibility"`
	FileID     *uint  `json:"file_id"`
}

func (h *Handler) handleAPICreatePost(w http.ResponseWriter, r *http.Request) {
	var req apiCreatePostRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.service.CreatePost(r.Context(), currentUserID(r.Context()), req.Body, req.Visibility, req.FileID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) handleAPIGetPost(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r, "postID")
	if !ok {
		return
	}
	p, err := h.service.GetPost(r.Context(), currentUserID(r.Context()), postID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleAPIEditPost(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r, "postID")
	if !ok {
		return
	}
	var req apiBodyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	identity, _ := identityFromContext(r.Context())
	p, err := h.service.EditPost(r.Context(), identity, postID, req.Body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleAPIDeletePost(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r, "postID")
	if !ok {
		return
	}
	identity, _ := identityFromContext(r.Context())
	if err := h.service.DeletePost(r.Context(), identity, postID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleAPITogglePostLike(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r, "postID")
	if !ok {
		return
	}
	res, err := h.service.TogglePostLike(r.Context(), currentUserID(r.Context()), postID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleAPIListComments(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r, "postID")
	if !ok {
		return
	}
	items, err := h.service.ListComments(r.Context(), currentUserID(r.Context()), postID, queryLimit(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAPIAddComment(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r, "postID")
	if !ok {
		return
	}
	var req apiBodyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.service.AddComment(r.Context(), currentUserID(r.Context()), postID, req.Body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleAPIEditComment(w http.ResponseWriter, r *http.Request) {
	commentID, ok := pathID(w, r, "commentID")
	if !ok {
		return
	}
	var req apiBodyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.service.EditComment(r.Context(), currentUserID(r.Context()), commentID, req.Body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleAPIDeleteComment(w http.ResponseWriter, r *http.Request) {
	commentID, ok := pathID(w, r, "commentID")
	if !ok {
		return
	}
	identity, _ := identityFromContext(r.Context())
	if err := h.service.DeleteComment(r.Context(), identity, commentID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleAPIToggleCommentLike(w http.ResponseWriter, r *http.Request) {
	commentID, ok := pathID(w, r, "commentID")
	if !ok {
		return
	}
	res, err := h.service.ToggleCommentLike(r.Context(), currentUserID(r.Context()), commentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Files

const multipartMemory = 1 << 20

func (h *Handler) handleAPIUploadFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "expected multipart form with a file field"})
		return
	}
	f, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing file field"})
		return
	}
	defer f.Close()

	file, err := h.service.UploadFile(r.Context(), currentUserID(r.Context()), header.Filename, header.Header.Get("Content-Type"), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, file)
}

func (h *Handler) handleAPIDownloadFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := pathID(w, r, "fileID")
	if !ok {
		return
	}
	file, rc, err := h.service.OpenFile(r.Context(), fileID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": file.Name}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.log.WithError(err).WithField("file_id", fileID).Debug("file download interrupted")
	}
}

func (h *Handler) handleAPIDeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := pathID(w, r, "fileID")
	if !ok {
		return
	}
	if err := h.service.DeleteFile(r.Context(), currentUserID(r.Context()), fileID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Layout

type apiModuleRequest struct {
	Rect     layout.Rect     `json:"rect"`
	Viewport layout.Viewport `json:"viewport"`
	application.ModuleFlags
}

func (h *Handler) handleAPIListModules(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListModuleStates(r.Context(), currentUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAPISaveModule(w http.ResponseWriter, r *http.Request) {
	var req apiModuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	st, err := h.service.SaveModuleState(r.Context(), currentUserID(r.Context()), chi.URLParam(r, "key"), req.Rect, req.Viewport, req.ModuleFlags)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) handleAPIOpenModule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Viewport layout.Viewport `json:"viewport"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	st, err := h.service.OpenModule(r.Context(), currentUserID(r.Context()), chi.URLParam(r, "key"), req.Viewport)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) handleAPIFocusModule(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.FocusModule(r.Context(), currentUserID(r.Context()), chi.URLParam(r, "key"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAPICloseModule(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.CloseModule(r.Context(), currentUserID(r.Context()), chi.URLParam(r, "key"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) handleAPIResetModules(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ResetModules(r.Context(), currentUserID(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type apiContextMenuRequest struct {
	Point    layout.Point    `json:"point"`
	Menu     layout.Size     `json:"menu"`
	Viewport layout.Viewport `json:"viewport"`
}

func (h *Handler) handleAPIPlaceContextMenu(w http.ResponseWriter, r *http.Request) {
	var req apiContextMenuRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.service.PlaceContextMenu(req.Point, req.Menu, req.Viewport))
}

// Preferences

func (h *Handler) handleAPIGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.service.GetPreferences(r.Context(), currentUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *Handler) handleAPISetPreference(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	prefs, err := h.service.SetPreference(r.Context(), currentUserID(r.Context()), chi.URLParam(r, "key"), req.Value)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *Handler) handleAPIListPreferenceDefs(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListPreferenceDefs(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type apiPreferenceDefRequest struct {
	ValueKind    string `json:"value_kind"`
	DefaultValue string `json:"default_value"`
	Description  string `json:"description"`
}

func (h *Handler) handleAPIUpsertPreferenceDef(w http.ResponseWriter, r *http.Request) {
	var req apiPreferenceDefRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	def, err := h.service.UpsertPreferenceDef(r.Context(), chi.URLParam(r, "key"), req.ValueKind, req.DefaultValue, req.Description)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// Notifications and activity

func (h *Handler) handleAPIListNotifications(w http.ResponseWriter, r *http.Request) {
	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	items, err := h.service.ListNotifications(r.Context(), currentUserID(r.Context()), unreadOnly, queryLimit(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAPIUnreadNotifications(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.UnreadNotificationCount(r.Context(), currentUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unread": n})
}

func (h *Handler) handleAPIMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	notificationID, ok := pathID(w, r, "notificationID")
	if !ok {
		return
	}
	if err := h.service.MarkNotificationRead(r.Context(), currentUserID(r.Context()), notificationID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleAPIMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.MarkAllNotificationsRead(r.Context(), currentUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": n})
}

func (h *Handler) handleAPIListActivity(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListActivity(r.Context(), currentUserID(r.Context()), queryLimit(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAPIListAllActivity(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListAllActivity(r.Context(), queryLimit(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
