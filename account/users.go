package account

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"quill/common"
	"quill/models"
	"quill/posts"
)

// UserSummary is the public shape of a user: no email, no credentials.
type UserSummary struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Bio      string `json:"bio"`
	Avatar   string `json:"avatar"`
	Website  string `json:"website"`
}

func summarizeUser(user *models.User) UserSummary {
	return UserSummary{
		ID:       user.ID,
		Username: user.Username,
		Name:     user.Name,
		Bio:      user.Bio,
		Avatar:   user.Avatar,
		Website:  user.Website,
	}
}

// SearchUsers matches the query against username, name and bio.
// Queries shorter than 2 characters after trimming are rejected.
func (a *AccountModule) SearchUsers(query string, page, limit int) ([]UserSummary, common.Pagination, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < 2 {
		return nil, common.Pagination{}, fmt.Errorf("%w: search query must be at least 2 characters long", common.ErrValidation)
	}

	pattern := "%" + query + "%"
	q := a.db.Model(&models.User{}).
		Where("username LIKE ? OR name LIKE ? OR bio LIKE ?", pattern, pattern, pattern)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, common.Pagination{}, err
	}

	var rows []models.User
	if err := q.
		Order("username ASC").
		Offset(common.Offset(page, limit)).
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, common.Pagination{}, err
	}

	users := make([]UserSummary, len(rows))
	for i := range rows {
		users[i] = summarizeUser(&rows[i])
	}
	return users, common.Paginate(page, limit, total), nil
}

func (a *AccountModule) searchUsers(c *gin.Context) {
	page, limit := common.PageParams(c)

	users, pagination, err := a.SearchUsers(c.Query("q"), page, limit)
	if err != nil {
		if errors.Is(err, common.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users":      users,
		"pagination": pagination,
	})
}

func (a *AccountModule) publicProfile(c *gin.Context) {
	username := c.Param("username")

	var user models.User
	if err := a.db.Where("username = ?", username).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	_, published, pagination, err := a.posts.UserPosts(username, 1, common.MaxPageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":       summarizeUser(&user),
		"posts":      published,
		"post_count": pagination.Total,
	})
}

// ToggleFavorite adds the post to the user's favorites if absent,
// removes it if present. Conditional delete-else-insert under the
// composite unique index, same shape as post likes.
func (a *AccountModule) ToggleFavorite(userID int, postID uint) (favorited bool, err error) {
	var post models.Post
	if err := a.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("%w: post", common.ErrNotFound)
		}
		return false, err
	}

	res := a.db.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Favorite{})
	if res.Error != nil {
		return false, res.Error
	}

	if res.RowsAffected == 0 {
		favorite := models.Favorite{UserID: userID, PostID: postID}
		if err := a.db.Create(&favorite).Error; err != nil {
			if !common.IsUniqueViolation(err) {
				return false, err
			}
		}
		return true, nil
	}

	return false, nil
}

func (a *AccountModule) toggleFavorite(c *gin.Context) {
	postID, err := strconv.Atoi(c.Param("postId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post id"})
		return
	}

	favorited, err := a.ToggleFavorite(c.GetInt("user_id"), uint(postID))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	message := "Post removed from favorites"
	if favorited {
		message = "Post added to favorites"
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     message,
		"is_favorite": favorited,
	})
}

// Favorites returns the user's favorited posts, newest favorite first.
func (a *AccountModule) Favorites(userID int) ([]posts.PostSummary, error) {
	var rows []models.Favorite
	if err := a.db.Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	summaries := []posts.PostSummary{}
	for _, fav := range rows {
		var post models.Post
		if err := a.db.First(&post, fav.PostID).Error; err != nil {
			continue
		}
		summaries = append(summaries, a.posts.Summarize(&post))
	}
	return summaries, nil
}

func (a *AccountModule) favorites(c *gin.Context) {
	summaries, err := a.Favorites(c.GetInt("user_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"favorites": summaries})
}

func (a *AccountModule) drafts(c *gin.Context) {
	page, limit := common.PageParams(c)

	summaries, pagination, err := a.posts.Drafts(c.GetInt("user_id"), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"drafts":     summaries,
		"pagination": pagination,
	})
}

// viewStats feeds the author dashboard: views per day over the last 15
// days and the 10 most viewed posts over the last 30, with titles
// resolved from the main store.
func (a *AccountModule) viewStats(c *gin.Context) {
	userID := c.GetInt("user_id")

	viewsByDay := a.stats.ViewsByDay(userID, 15)
	topPosts := a.stats.TopPosts(userID, 30, 10)

	type topPost struct {
		PostID uint   `json:"post_id"`
		Title  string `json:"title"`
		Slug   string `json:"slug"`
		Count  int64  `json:"count"`
	}

	top := make([]topPost, 0, len(topPosts))
	for _, entry := range topPosts {
		item := topPost{PostID: entry.PostID, Count: entry.Count}
		var post models.Post
		if err := a.db.First(&post, entry.PostID).Error; err == nil {
			item.Title = post.Title
			item.Slug = post.Slug
		}
		top = append(top, item)
	}

	c.JSON(http.StatusOK, gin.H{
		"views_by_day": viewsByDay,
		"top_posts":    top,
	})
}
