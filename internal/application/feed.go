package application

import (
	"context"
	"strings"

	"github.com/anihangout/hangout/internal/domain"
)

const (
	maxPostLength    = 2000
	maxCommentLength = 1000
	followerFanout   = 1000
)

func (s *Service) CreatePost(ctx context.Context, authorID uint, body, visibility string, fileID *uint) (domain.Post, error) {
	visibility = defaultString(visibility, domain.VisibilityPublic)
	if visibility != domain.VisibilityPublic && visibility != domain.VisibilityFollowers {
		return domain.Post{}, invalidf("visibility must be public or followers")
	}
	body, err := validateBody(body, maxPostLength, fileID != nil)
	if err != nil {
		return domain.Post{}, err
	}
	if fileID != nil {
		if err := s.requireOwnedFile(ctx, authorID, *fileID); err != nil {
			return domain.Post{}, err
		}
	}
	post, err := s.repo.CreatePost(ctx, domain.Post{
		AuthorID:   authorID,
		Body:       body,
		FileID:     fileID,
		Visibility: visibility,
	})
	if err != nil {
		return domain.Post{}, err
	}
	s.record(ctx, authorID, "feed.post.create", "post", post.ID, visibility)
	s.publishPost(ctx, post, domain.EventPostCreated, post)
	return post, nil
}

// publishPost sends public post events to the feed topic and followers-only
// events to the author and each follower directly.
func (s *Service) publishPost(ctx context.Context, post domain.Post, eventType string, payload any) {
	if post.Visibility == domain.VisibilityPublic {
		s.publish(domain.FeedTopic, eventType, payload)
		return
	}
	s.publish(domain.UserTopic(post.AuthorID), eventType, payload)
	followers, err := s.repo.ListFollowers(ctx, post.AuthorID, followerFanout)
	if err != nil {
		s.log.WithError(err).WithField("post_id", post.ID).Warn("list followers for fanout")
		return
	}
	for _, f := range followers {
		s.publish(domain.UserTopic(f.ID), eventType, payload)
	}
}

func (s *Service) canSeePost(ctx context.Context, viewerID uint, post domain.Post) (bool, error) {
	if post.Visibility == domain.VisibilityPublic || post.AuthorID == viewerID {
		return true, nil
	}
	return s.repo.IsFollowing(ctx, viewerID, post.AuthorID)
}

// visiblePost loads a post the viewer may see. Hidden posts read as not found.
func (s *Service) visiblePost(ctx context.Context, viewerID, postID uint) (domain.Post, error) {
	post, err := s.repo.GetPostByID(ctx, postID)
	if err != nil {
		return domain.Post{}, err
	}
	ok, err := s.canSeePost(ctx, viewerID, post)
	if err != nil {
		return domain.Post{}, err
	}
	if !ok {
		return domain.Post{}, domain.ErrNotFound
	}
	return post, nil
}

func (s *Service) GetPost(ctx context.Context, viewerID, postID uint) (domain.Post, error) {
	post, err := s.visiblePost(ctx, viewerID, postID)
	if err != nil {
		return domain.Post{}, err
	}
	posts, err := s.markLikedPosts(ctx, viewerID, []domain.Post{post})
	if err != nil {
		return domain.Post{}, err
	}
	return posts[0], nil
}

func (s *Service) EditPost(ctx context.Context, actor domain.Identity, postID uint, body string) (domain.Post, error) {
	post, err := s.repo.GetPostByID(ctx, postID)
	if err != nil {
		return domain.Post{}, err
	}
	if post.AuthorID != actor.User.ID {
		return domain.Post{}, forbiddenf("only the author can edit a post")
	}
	body, err = validateBody(body, maxPostLength, post.FileID != nil)
	if err != nil {
		return domain.Post{}, err
	}
	updated, err := s.repo.UpdatePostBody(ctx, postID, body)
	if err != nil {
		return domain.Post{}, err
	}
	s.record(ctx, actor.User.ID, "feed.post.edit", "post", postID, "")
	s.publishPost(ctx, updated, domain.EventPostUpdated, updated)
	return updated, nil
}

// DeletePost is allowed for the author and for admins.
func (s *Service) DeletePost(ctx context.Context, actor domain.Identity, postID uint) error {
	post, err := s.repo.GetPostByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != actor.User.ID && !s.Can(actor, PermAdmin) {
		return forbiddenf("only the author or an admin can delete a post")
	}
	if err := s.repo.DeletePost(ctx, postID); err != nil {
		return err
	}
	s.record(ctx, actor.User.ID, "feed.post.delete", "post", postID, "")
	s.publishPost(ctx, post, domain.EventPostDeleted, map[string]any{"post_id": postID})
	return nil
}

// Feed lists posts by the viewer and the users they follow.
func (s *Service) Feed(ctx context.Context, viewerID, beforeID uint, limit int) ([]domain.Post, error) {
	following, err := s.repo.FollowingIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	authors := append([]uint{viewerID}, following...)
	return s.listPosts(ctx, domain.PostQuery{
		ViewerID:  viewerID,
		AuthorIDs: authors,
		Page:      domain.Page{BeforeID: beforeID, Limit: limit},
	})
}

// Explore lists public posts from everyone.
func (s *Service) Explore(ctx context.Context, viewerID, beforeID uint, limit int) ([]domain.Post, error) {
	return s.listPosts(ctx, domain.PostQuery{
		ViewerID:   viewerID,
		PublicOnly: true,
		Page:       domain.Page{BeforeID: beforeID, Limit: limit},
	})
}

func (s *Service) ListUserPosts(ctx context.Context, viewerID uint, username string, beforeID uint, limit int) ([]domain.Post, error) {
	author, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.listPosts(ctx, domain.PostQuery{
		ViewerID:  viewerID,
		AuthorIDs: []uint{author.ID},
		Page:      domain.Page{BeforeID: beforeID, Limit: limit},
	})
}

func (s *Service) SearchPosts(ctx context.Context, viewerID uint, query string, limit int) ([]domain.Post, error) {
	if strings.TrimSpace(query) == "" {
		return nil, invalidf("query is required")
	}
	return s.listPosts(ctx, domain.PostQuery{
		ViewerID: viewerID,
		Text:     query,
		Page:     domain.Page{Limit: limit},
	})
}

func (s *Service) listPosts(ctx context.Context, q domain.PostQuery) ([]domain.Post, error) {
	q.Page.Limit = clampLimit(q.Page.Limit, 20, 100)
	posts, err := s.repo.ListPosts(ctx, q)
	if err != nil {
		return nil, err
	}
	return s.markLikedPosts(ctx, q.ViewerID, posts)
}

func (s *Service) markLikedPosts(ctx context.Context, viewerID uint, posts []domain.Post) ([]domain.Post, error) {
	ids := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	liked, err := s.repo.LikedPostIDs(ctx, viewerID, ids)
	if err != nil {
		return nil, err
	}
	set := idSet(liked)
	for i := range posts {
		_, posts[i].LikedByMe = set[posts[i].ID]
	}
	return posts, nil
}

// TogglePostLike likes or unlikes the post for the user. Toggling twice
// returns the like count to its original value.
func (s *Service) TogglePostLike(ctx context.Context, userID, postID uint) (domain.LikeResult, error) {
	post, err := s.visiblePost(ctx, userID, postID)
	if err != nil {
		return domain.LikeResult{}, err
	}
	result, err := s.repo.TogglePostLike(ctx, postID, userID)
	if err != nil {
		return domain.LikeResult{}, err
	}
	action := "feed.post.unlike"
	if result.Liked {
		action = "feed.post.like"
	}
	s.record(ctx, userID, action, "post", postID, "")
	post.LikeCount = result.LikeCount
	s.publishPost(ctx, post, domain.EventPostLiked, map[string]any{
		"post_id":    postID,
		"like_count": result.LikeCount,
	})
	if result.Liked {
		if actor, err := s.repo.GetUserByID(ctx, userID); err == nil {
			s.notify(ctx, notice{
				recipientID: post.AuthorID,
				actor:       actor,
				kind:        domain.NotifyPostLike,
				targetType:  "post",
				targetID:    postID,
				message:     actor.Username + " liked your post",
			})
		}
	}
	return result, nil
}

func (s *Service) AddComment(ctx context.Context, userID, postID uint, body string) (domain.Comment, error) {
	post, err := s.visiblePost(ctx, userID, postID)
	if err != nil {
		return domain.Comment{}, err
	}
	body, err = validateBody(body, maxCommentLength, false)
	if err != nil {
		return domain.Comment{}, err
	}
	comment, err := s.repo.CreateComment(ctx, domain.Comment{PostID: postID, AuthorID: userID, Body: body})
	if err != nil {
		return domain.Comment{}, err
	}
	s.record(ctx, userID, "feed.comment.create", "comment", comment.ID, "")
	s.publishPost(ctx, post, domain.EventCommentCreated, comment)
	if actor, err := s.repo.GetUserByID(ctx, userID); err == nil {
		s.notify(ctx, notice{
			recipientID: post.AuthorID,
			actor:       actor,
			kind:        domain.NotifyComment,
			targetType:  "post",
			targetID:    postID,
			message:     actor.Username + " commented on your post",
		})
	}
	return comment, nil
}

func (s *Service) EditComment(ctx context.Context, userID, commentID uint, body string) (domain.Comment, error) {
	comment, err := s.repo.GetCommentByID(ctx, commentID)
	if err != nil {
		return domain.Comment{}, err
	}
	if comment.AuthorID != userID {
		return domain.Comment{}, forbiddenf("only the author can edit a comment")
	}
	body, err = validateBody(body, maxCommentLength, false)
	if err != nil {
		return domain.Comment{}, err
	}
	updated, err := s.repo.UpdateCommentBody(ctx, commentID, body)
	if err != nil {
		return domain.Comment{}, err
	}
	s.record(ctx, userID, "feed.comment.edit", "comment", commentID, "")
	return updated, nil
}

// DeleteComment is allowed for the comment author, the post author and admins.
func (s *Service) DeleteComment(ctx context.Context, actor domain.Identity, commentID uint) error {
	comment, err := s.repo.GetCommentByID(ctx, commentID)
	if err != nil {
		return err
	}
	post, err := s.repo.GetPostByID(ctx, comment.PostID)
	if err != nil {
		return err
	}
	if comment.AuthorID != actor.User.ID && post.AuthorID != actor.User.ID && !s.Can(actor, PermAdmin) {
		return forbiddenf("not allowed to delete this comment")
	}
	if err := s.repo.DeleteComment(ctx, commentID); err != nil {
		return err
	}
	s.record(ctx, actor.User.ID, "feed.comment.delete", "comment", commentID, "")
	s.publishPost(ctx, post, domain.EventCommentDeleted, map[string]any{
		"post_id":    post.ID,
		"comment_id": commentID,
	})
	return nil
}

func (s *Service) ListComments(ctx context.Context, viewerID, postID uint, limit int) ([]domain.Comment, error) {
	if _, err := s.visiblePost(ctx, viewerID, postID); err != nil {
		return nil, err
	}
	comments, err := s.repo.ListComments(ctx, postID, clampLimit(limit, 100, 500))
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.ID)
	}
	liked, err := s.repo.LikedCommentIDs(ctx, viewerID, ids)
	if err != nil {
		return nil, err
	}
	set := idSet(liked)
	for i := range comments {
		_, comments[i].LikedByMe = set[comments[i].ID]
	}
	return comments, nil
}

func (s *Service) ToggleCommentLike(ctx context.Context, userID, commentID uint) (domain.LikeResult, error) {
	comment, err := s.repo.GetCommentByID(ctx, commentID)
	if err != nil {
		return domain.LikeResult{}, err
	}
	if _, err := s.visiblePost(ctx, userID, comment.PostID); err != nil {
		return domain.LikeResult{}, err
	}
	result, err := s.repo.ToggleCommentLike(ctx, commentID, userID)
	if err != nil {
		return domain.LikeResult{}, err
	}
	action := "feed.comment.unlike"
	if result.Liked {
		action = "feed.comment.like"
	}
	s.record(ctx, userID, action, "comment", commentID, "")
	if result.Liked {
		if actor, err := s.repo.GetUserByID(ctx, userID); err == nil {
			s.notify(ctx, notice{
				recipientID: comment.AuthorID,
				actor:       actor,
				kind:        domain.NotifyCommentLike,
				targetType:  "comment",
				targetID:    commentID,
				message:     actor.Username + " liked your comment",
			})
		}
	}
	return result, nil
}

func idSet(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
