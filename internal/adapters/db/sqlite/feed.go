package sqlite

import (
	"context"
	"strings"

	"github.com/anihangout/hangout/internal/domain"
	"gorm.io/gorm"
)

type postRow struct {
	PostModel
	AuthorUsername string
}

func toPost(item postRow) domain.Post {
	return domain.Post{
		ID:             item.ID,
		AuthorID:       item.AuthorID,
		AuthorUsername: item.AuthorUsername,
		Body:           item.Body,
		FileID:         item.FileID,
		Visibility:     item.Visibility,
		LikeCount:      item.LikeCount,
		CommentCount:   item.CommentCount,
		CreatedAt:      item.CreatedAt,
		UpdatedAt:      item.UpdatedAt,
	}
}

func (r *Repository) postsQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table("posts").
		Select("posts.*, users.username AS author_username").
		Joins("LEFT JOIN users ON users.id = posts.author_id")
}

func (r *Repository) CreatePost(ctx context.Context, value domain.Post) (domain.Post, error) {
	m := PostModel{
		AuthorID:   value.AuthorID,
		Body:       value.Body,
		FileID:     value.FileID,
		Visibility: defaultString(value.Visibility, domain.VisibilityPublic),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Post{}, mapErr(err)
	}
	return r.GetPostByID(ctx, m.ID)
}

func (r *Repository) GetPostByID(ctx context.Context, id uint) (domain.Post, error) {
	rows := make([]postRow, 0, 1)
	if err := r.postsQuery(ctx).Where("posts.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return domain.Post{}, err
	}
	if len(rows) == 0 {
		return domain.Post{}, domain.ErrNotFound
	}
	return toPost(rows[0]), nil
}

func (r *Repository) UpdatePostBody(ctx context.Context, id uint, body string) (domain.Post, error) {
	res := r.db.WithContext(ctx).Model(&PostModel{}).Where("id = ?", id).Update("body", body)
	if res.Error != nil {
		return domain.Post{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Post{}, domain.ErrNotFound
	}
	return r.GetPostByID(ctx, id)
}

// DeletePost removes the post together with its likes and comments.
func (r *Repository) DeletePost(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&PostLikeModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("comment_id IN (SELECT id FROM comments WHERE post_id = ?)", id).Delete(&CommentLikeModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&CommentModel{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&PostModel{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// ListPosts returns a newest-first page of posts the viewer may see: public
// posts, the viewer's own posts, and followers-only posts of followed authors.
func (r *Repository) ListPosts(ctx context.Context, query domain.PostQuery) ([]domain.Post, error) {
	q := r.postsQuery(ctx)
	if query.PublicOnly {
		q = q.Where("posts.visibility = ?", domain.VisibilityPublic)
	} else {
		q = q.Where(
			"(posts.visibility = ? OR posts.author_id = ? OR posts.author_id IN (SELECT followee_id FROM follows WHERE follower_id = ?))",
			domain.VisibilityPublic, query.ViewerID, query.ViewerID,
		)
	}
	if len(query.AuthorIDs) > 0 {
		q = q.Where("posts.author_id IN ?", query.AuthorIDs)
	}
	if text := strings.TrimSpace(query.Text); text != "" {
		q = q.Where("LOWER(posts.body) LIKE ?", "%"+strings.ToLower(text)+"%")
	}
	if query.Page.BeforeID > 0 {
		q = q.Where("posts.id < ?", query.Page.BeforeID)
	}
	rows := make([]postRow, 0)
	if err := q.Order("posts.id DESC").Limit(query.Page.Limit).Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Post, 0, len(rows))
	for _, item := range rows {
		result = append(result, toPost(item))
	}
	return result, nil
}

func (r *Repository) CountPostsByAuthor(ctx context.Context, authorID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&PostModel{}).Where("author_id = ?", authorID).Count(&count).Error
	return count, err
}

// toggleLike flips the like row identified by (target, user) and keeps the
// denormalized like_count on the target in the same transaction.
func (r *Repository) toggleLike(ctx context.Context, likeModel any, likeColumn string, targetModel any, targetID, userID uint, newLike any) (domain.LikeResult, error) {
	var result domain.LikeResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(targetModel).Where("id = ?", targetID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return domain.ErrNotFound
		}
		res := tx.Where(likeColumn+" = ? AND user_id = ?", targetID, userID).Delete(likeModel)
		if res.Error != nil {
			return res.Error
		}
		delta := -1
		if res.RowsAffected == 0 {
			if err := tx.Create(newLike).Error; err != nil {
				return err
			}
			delta = 1
			result.Liked = true
		}
		if err := tx.Model(targetModel).Where("id = ?", targetID).
			Update("like_count", gorm.Expr("MAX(like_count + ?, 0)", delta)).Error; err != nil {
			return err
		}
		return tx.Model(targetModel).Select("like_count").Where("id = ?", targetID).Row().Scan(&result.LikeCount)
	})
	if err != nil {
		return domain.LikeResult{}, mapErr(err)
	}
	return result, nil
}

func (r *Repository) TogglePostLike(ctx context.Context, postID, userID uint) (domain.LikeResult, error) {
	return r.toggleLike(ctx, &PostLikeModel{}, "post_id", &PostModel{}, postID, userID,
		&PostLikeModel{PostID: postID, UserID: userID})
}

func (r *Repository) LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error) {
	ids := make([]uint, 0)
	if len(postIDs) == 0 {
		return ids, nil
	}
	err := r.db.WithContext(ctx).Model(&PostLikeModel{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &ids).Error
	return ids, err
}

type commentRow struct {
	CommentModel
	AuthorUsername string
}

func toComment(item commentRow) domain.Comment {
	return domain.Comment{
		ID:             item.ID,
		PostID:         item.PostID,
		AuthorID:       item.AuthorID,
		AuthorUsername: item.AuthorUsername,
		Body:           item.Body,
		LikeCount:      item.LikeCount,
		CreatedAt:      item.CreatedAt,
		UpdatedAt:      item.UpdatedAt,
	}
}

func (r *Repository) commentsQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table("comments").
		Select("comments.*, users.username AS author_username").
		Joins("LEFT JOIN users ON users.id = comments.author_id")
}

func (r *Repository) CreateComment(ctx context.Context, value domain.Comment) (domain.Comment, error) {
	m := CommentModel{PostID: value.PostID, AuthorID: value.AuthorID, Body: value.Body}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		res := tx.Model(&PostModel{}).Where("id = ?", value.PostID).
			Update("comment_count", gorm.Expr("comment_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return domain.Comment{}, mapErr(err)
	}
	return r.GetCommentByID(ctx, m.ID)
}

func (r *Repository) GetCommentByID(ctx context.Context, id uint) (domain.Comment, error) {
	rows := make([]commentRow, 0, 1)
	if err := r.commentsQuery(ctx).Where("comments.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return domain.Comment{}, err
	}
	if len(rows) == 0 {
		return domain.Comment{}, domain.ErrNotFound
	}
	return toComment(rows[0]), nil
}

func (r *Repository) UpdateCommentBody(ctx context.Context, id uint, body string) (domain.Comment, error) {
	res := r.db.WithContext(ctx).Model(&CommentModel{}).Where("id = ?", id).Update("body", body)
	if res.Error != nil {
		return domain.Comment{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Comment{}, domain.ErrNotFound
	}
	return r.GetCommentByID(ctx, id)
}

func (r *Repository) DeleteComment(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m CommentModel
		if err := tx.First(&m, id).Error; err != nil {
			return mapErr(err)
		}
		if err := tx.Where("comment_id = ?", id).Delete(&CommentLikeModel{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&CommentModel{}, id).Error; err != nil {
			return err
		}
		return tx.Model(&PostModel{}).Where("id = ?", m.PostID).
			Update("comment_count", gorm.Expr("MAX(comment_count - 1, 0)")).Error
	})
}

// ListComments returns the oldest comments first, the order they read in a thread.
func (r *Repository) ListComments(ctx context.Context, postID uint, limit int) ([]domain.Comment, error) {
	rows := make([]commentRow, 0)
	err := r.commentsQuery(ctx).
		Where("comments.post_id = ?", postID).
		Order("comments.id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]domain.Comment, 0, len(rows))
	for _, item := range rows {
		result = append(result, toComment(item))
	}
	return result, nil
}

func (r *Repository) ToggleCommentLike(ctx context.Context, commentID, userID uint) (domain.LikeResult, error) {
	return r.toggleLike(ctx, &CommentLikeModel{}, "comment_id", &CommentModel{}, commentID, userID,
		&CommentLikeModel{CommentID: commentID, UserID: userID})
}

func (r *Repository) LikedCommentIDs(ctx context.Context, userID uint, commentIDs []uint) ([]uint, error) {
	ids := make([]uint, 0)
	if len(commentIDs) == 0 {
		return ids, nil
	}
	err := r.db.WithContext(ctx).Model(&CommentLikeModel{}).
		Where("user_id = ? AND comment_id IN ?", userID, commentIDs).
		Pluck("comment_id", &ids).Error
	return ids, err
}
