package posts

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"quill/cache"
	"quill/common"
	"quill/models"
	"quill/stats"
)

type PostsModule struct {
	db    *gorm.DB
	stats *stats.StatsModule
}

func NewPostsModule(db *gorm.DB, statsModule *stats.StatsModule) *PostsModule {
	return &PostsModule{
		db:    db,
		stats: statsModule,
	}
}

func (p *PostsModule) RegisterRoutes(router *gin.Engine) {
	postsGroup := router.Group("/api/posts")
	{
		postsGroup.GET("", p.list)
		postsGroup.GET("/:slug", p.bySlug)
		postsGroup.POST("", common.RequireAuth, p.create)
		postsGroup.PUT("/:id", common.RequireAuth, p.update)
		postsGroup.DELETE("/:id", common.RequireAuth, p.remove)
		postsGroup.POST("/:id/like", common.RequireAuth, p.toggleLike)
		postsGroup.POST("/:id/comment", common.RequireAuth, p.addComment)
	}

	router.GET("/api/profiles/:username/posts", p.userPosts)
}

// respondError maps service errors onto status codes. Anything that is
// not one of the known kinds is reported opaquely.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrDuplicateSlug):
		c.JSON(http.StatusBadRequest, gin.H{"error": "A post with this title already exists"})
	case errors.Is(err, common.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
	}
}

type SEOInput struct {
	MetaTitle       *string `json:"meta_title" binding:"omitempty,max=60"`
	MetaDescription *string `json:"meta_description" binding:"omitempty,max=160"`
	Keywords        *string `json:"keywords"`
}

type CreateInput struct {
	Title         string    `json:"title" binding:"required,min=5,max=200"`
	Content       string    `json:"content" binding:"required,min=50"`
	Excerpt       string    `json:"excerpt" binding:"max=300"`
	Categories    []string  `json:"categories" binding:"omitempty,dive,min=1,max=50"`
	Tags          []string  `json:"tags" binding:"omitempty,dive,min=1,max=30"`
	FeaturedImage string    `json:"featured_image" binding:"omitempty,url"`
	Status        string    `json:"status"`
	SEO           *SEOInput `json:"seo"`
}

// normalizeTerms lower-cases, trims and de-duplicates category/tag
// names. Filtering later is an exact match on this normalized form.
func normalizeTerms(terms []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		out = append(out, term)
	}
	return out
}

func validStatus(status string) bool {
	switch status {
	case models.StatusDraft, models.StatusPublished, models.StatusArchived:
		return true
	}
	return false
}

// Create builds a new post owned by authorID. Status defaults to
// draft; a published post gets its published_at stamped immediately.
func (p *PostsModule) Create(authorID int, in CreateInput) (*models.Post, error) {
	status := in.Status
	if status == "" {
		status = models.StatusDraft
	}
	if !validStatus(status) {
		return nil, fmt.Errorf("%w: status must be draft, published, or archived", common.ErrValidation)
	}

	slug := Slugify(in.Title)
	if slug == "" {
		return nil, fmt.Errorf("%w: title produces an empty slug", common.ErrValidation)
	}

	var existing models.Post
	if err := p.db.Where("slug = ?", slug).First(&existing).Error; err == nil {
		return nil, common.ErrDuplicateSlug
	}

	now := time.Now()
	post := models.Post{
		AuthorID:      authorID,
		Title:         in.Title,
		Slug:          slug,
		Content:       in.Content,
		Excerpt:       in.Excerpt,
		FeaturedImage: in.FeaturedImage,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if status == models.StatusPublished {
		post.PublishedAt = &now
	}
	if in.SEO != nil {
		if in.SEO.MetaTitle != nil {
			post.SEO.MetaTitle = *in.SEO.MetaTitle
		}
		if in.SEO.MetaDescription != nil {
			post.SEO.MetaDescription = *in.SEO.MetaDescription
		}
		if in.SEO.Keywords != nil {
			post.SEO.Keywords = *in.SEO.Keywords
		}
	}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&post).Error; err != nil {
			// Backstop for a create racing past the lookup above.
			if common.IsUniqueViolation(err) {
				return common.ErrDuplicateSlug
			}
			return err
		}
		return replaceTerms(tx, post.ID, normalizeTerms(in.Categories), normalizeTerms(in.Tags), true, true)
	})
	if err != nil {
		return nil, err
	}

	return &post, nil
}

// replaceTerms rewrites a post's category and/or tag rows.
func replaceTerms(tx *gorm.DB, postID uint, categories, tags []string, setCategories, setTags bool) error {
	if setCategories {
		if err := tx.Where("post_id = ?", postID).Delete(&models.PostCategory{}).Error; err != nil {
			return err
		}
		for _, name := range categories {
			if err := tx.Create(&models.PostCategory{PostID: postID, Name: name}).Error; err != nil {
				return err
			}
		}
	}
	if setTags {
		if err := tx.Where("post_id = ?", postID).Delete(&models.PostTag{}).Error; err != nil {
			return err
		}
		for _, name := range tags {
			if err := tx.Create(&models.PostTag{PostID: postID, Name: name}).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

type UpdateInput struct {
	Title         *string   `json:"title" binding:"omitempty,min=5,max=200"`
	Content       *string   `json:"content" binding:"omitempty,min=50"`
	Excerpt       *string   `json:"excerpt" binding:"omitempty,max=300"`
	Categories    *[]string `json:"categories" binding:"omitempty,dive,min=1,max=50"`
	Tags          *[]string `json:"tags" binding:"omitempty,dive,min=1,max=30"`
	FeaturedImage *string   `json:"featured_image"`
	Status        *string   `json:"status"`
	SEO           *SEOInput `json:"seo"`
}

// canMutate is the single ownership rule: only the author or an admin
// may change or delete a post.
func canMutate(post *models.Post, requesterID int, requesterRole string) bool {
	return post.AuthorID == requesterID || requesterRole == models.RoleAdmin
}

// Update applies a partial patch. Nil fields are left untouched; a
// non-nil empty string clears optional fields like the excerpt. The
// SEO sub-object is merged field by field, and the slug never changes.
func (p *PostsModule) Update(postID uint, requesterID int, requesterRole string, patch UpdateInput) (*models.Post, error) {
	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: post", common.ErrNotFound)
		}
		return nil, err
	}

	if !canMutate(&post, requesterID, requesterRole) {
		return nil, fmt.Errorf("%w: not authorized to update this post", common.ErrForbidden)
	}

	if patch.Title != nil {
		post.Title = *patch.Title
	}
	if patch.Content != nil {
		post.Content = *patch.Content
	}
	if patch.Excerpt != nil {
		post.Excerpt = *patch.Excerpt
	}
	if patch.FeaturedImage != nil {
		post.FeaturedImage = *patch.FeaturedImage
	}
	if patch.Status != nil {
		if !validStatus(*patch.Status) {
			return nil, fmt.Errorf("%w: status must be draft, published, or archived", common.ErrValidation)
		}
		post.Status = *patch.Status
		if post.Status == models.StatusPublished && post.PublishedAt == nil {
			now := time.Now()
			post.PublishedAt = &now
		}
	}
	if patch.SEO != nil {
		if patch.SEO.MetaTitle != nil {
			post.SEO.MetaTitle = *patch.SEO.MetaTitle
		}
		if patch.SEO.MetaDescription != nil {
			post.SEO.MetaDescription = *patch.SEO.MetaDescription
		}
		if patch.SEO.Keywords != nil {
			post.SEO.Keywords = *patch.SEO.Keywords
		}
	}
	post.UpdatedAt = time.Now()

	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&post).Error; err != nil {
			return err
		}
		var categories, tags []string
		if patch.Categories != nil {
			categories = normalizeTerms(*patch.Categories)
		}
		if patch.Tags != nil {
			tags = normalizeTerms(*patch.Tags)
		}
		return replaceTerms(tx, post.ID, categories, tags, patch.Categories != nil, patch.Tags != nil)
	})
	if err != nil {
		return nil, err
	}

	cache.Clear(post.Slug)

	return &post, nil
}

// Delete removes a post and everything embedded in it (comments,
// likes, category/tag rows, favorites pointing at it).
func (p *PostsModule) Delete(postID uint, requesterID int, requesterRole string) error {
	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: post", common.ErrNotFound)
		}
		return err
	}

	if !canMutate(&post, requesterID, requesterRole) {
		return fmt.Errorf("%w: not authorized to delete this post", common.ErrForbidden)
	}

	err := p.db.Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&models.Comment{}, &models.PostLike{}, &models.PostCategory{}, &models.PostTag{},
		} {
			if err := tx.Where("post_id = ?", post.ID).Delete(model).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Favorite{}).Error; err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		return err
	}

	cache.Clear(post.Slug)

	return nil
}

// IncrementViews bumps the view counter with a single atomic update.
func (p *PostsModule) IncrementViews(postID uint) error {
	return p.db.Model(&models.Post{}).
		Where("id = ?", postID).
		UpdateColumn("views", gorm.Expr("views + ?", 1)).Error
}

// ToggleLike removes the user's like if present, otherwise adds it.
// The delete-else-insert under the composite unique index is a single
// conditional store operation either way, so concurrent toggles from
// different users never lose updates.
func (p *PostsModule) ToggleLike(postID uint, userID int) (likeCount int64, liked bool, err error) {
	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, fmt.Errorf("%w: post", common.ErrNotFound)
		}
		return 0, false, err
	}

	res := p.db.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.PostLike{})
	if res.Error != nil {
		return 0, false, res.Error
	}

	if res.RowsAffected == 0 {
		like := models.PostLike{PostID: postID, UserID: userID}
		if err := p.db.Create(&like).Error; err != nil {
			// A concurrent toggle already inserted the row; the like
			// stands either way.
			if !common.IsUniqueViolation(err) {
				return 0, false, err
			}
		}
		liked = true
	}

	if err := p.db.Model(&models.PostLike{}).Where("post_id = ?", postID).Count(&likeCount).Error; err != nil {
		return 0, false, err
	}

	return likeCount, liked, nil
}

// AddComment appends a comment to a post. Comments are append-only;
// the [1,1000] length bound is the one invariant this layer owns.
// The bound counts characters, not bytes.
func (p *PostsModule) AddComment(postID uint, userID int, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if n := utf8.RuneCountInString(content); n < 1 || n > 1000 {
		return nil, fmt.Errorf("%w: comment must be between 1 and 1000 characters", common.ErrValidation)
	}

	var post models.Post
	if err := p.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: post", common.ErrNotFound)
		}
		return nil, err
	}

	comment := models.Comment{
		PostID:    postID,
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := p.db.Create(&comment).Error; err != nil {
		return nil, err
	}

	return &comment, nil
}

func (p *PostsModule) create(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed: " + err.Error()})
		return
	}

	post, err := p.Create(c.GetInt("user_id"), in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Post created successfully",
		"post":    p.postResponse(post),
	})
}

func (p *PostsModule) update(c *gin.Context) {
	postID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post id"})
		return
	}

	var patch UpdateInput
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed: " + err.Error()})
		return
	}

	user, err := common.CurrentUser(c, p.db)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	post, err := p.Update(uint(postID), user.ID, user.Role, patch)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Post updated successfully",
		"post":    p.postResponse(post),
	})
}

func (p *PostsModule) remove(c *gin.Context) {
	postID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post id"})
		return
	}

	user, err := common.CurrentUser(c, p.db)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	if err := p.Delete(uint(postID), user.ID, user.Role); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

func (p *PostsModule) toggleLike(c *gin.Context) {
	postID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post id"})
		return
	}

	likeCount, liked, err := p.ToggleLike(uint(postID), c.GetInt("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Like toggled successfully",
		"liked":      liked,
		"like_count": likeCount,
	})
}

func (p *PostsModule) addComment(c *gin.Context) {
	postID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post id"})
		return
	}

	var request struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed: " + err.Error()})
		return
	}

	comment, err := p.AddComment(uint(postID), c.GetInt("user_id"), request.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Comment added successfully",
		"comment": p.commentResponse(comment),
	})
}
