package posts

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"quill/common"
	"quill/models"
)

// sortColumns is the closed set of sort keys a caller may request.
// Anything outside it is rejected instead of being passed through to
// the store.
var sortColumns = map[string]string{
	"publishedAt": "published_at",
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
	"title":       "title",
	"views":       "views",
}

type AuthorSummary struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
}

// PostSummary is the listing shape: everything but the full content.
type PostSummary struct {
	ID            uint           `json:"id"`
	Title         string         `json:"title"`
	Slug          string         `json:"slug"`
	Excerpt       string         `json:"excerpt"`
	FeaturedImage string         `json:"featured_image"`
	Status        string         `json:"status"`
	IsPublished   bool           `json:"is_published"`
	Views         int64          `json:"views"`
	LikeCount     int64          `json:"like_count"`
	CommentCount  int64          `json:"comment_count"`
	Categories    []string       `json:"categories"`
	Tags          []string       `json:"tags"`
	Author        *AuthorSummary `json:"author,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	PublishedAt   *time.Time     `json:"published_at,omitempty"`
}

type CommentResponse struct {
	ID        uint           `json:"id"`
	Content   string         `json:"content"`
	User      *AuthorSummary `json:"user,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// PostResponse is the full single-post shape, content included.
type PostResponse struct {
	PostSummary
	Content     string            `json:"content"`
	ContentHTML string            `json:"content_html,omitempty"`
	SEO         models.SEO        `json:"seo"`
	Likes       []int             `json:"likes"`
	Comments    []CommentResponse `json:"comments"`
}

func (p *PostsModule) authorSummary(userID int) *AuthorSummary {
	var user models.User
	if err := p.db.First(&user, userID).Error; err != nil {
		return nil
	}
	return &AuthorSummary{
		ID:       user.ID,
		Username: user.Username,
		Name:     user.Name,
		Avatar:   user.Avatar,
	}
}

func (p *PostsModule) termsOf(postID uint) (categories, tags []string) {
	p.db.Model(&models.PostCategory{}).Where("post_id = ?", postID).Order("id ASC").Pluck("name", &categories)
	p.db.Model(&models.PostTag{}).Where("post_id = ?", postID).Order("id ASC").Pluck("name", &tags)
	if categories == nil {
		categories = []string{}
	}
	if tags == nil {
		tags = []string{}
	}
	return categories, tags
}

func (p *PostsModule) summarize(post *models.Post) PostSummary {
	categories, tags := p.termsOf(post.ID)

	var likeCount, commentCount int64
	p.db.Model(&models.PostLike{}).Where("post_id = ?", post.ID).Count(&likeCount)
	p.db.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&commentCount)

	return PostSummary{
		ID:            post.ID,
		Title:         post.Title,
		Slug:          post.Slug,
		Excerpt:       post.Excerpt,
		FeaturedImage: post.FeaturedImage,
		Status:        post.Status,
		IsPublished:   post.IsPublished(),
		Views:         post.Views,
		LikeCount:     likeCount,
		CommentCount:  commentCount,
		Categories:    categories,
		Tags:          tags,
		Author:        p.authorSummary(post.AuthorID),
		CreatedAt:     post.CreatedAt,
		UpdatedAt:     post.UpdatedAt,
		PublishedAt:   post.PublishedAt,
	}
}

// Summarize exposes the listing shape to other modules (favorites,
// dashboards).
func (p *PostsModule) Summarize(post *models.Post) PostSummary {
	return p.summarize(post)
}

func (p *PostsModule) summarizeAll(posts []models.Post) []PostSummary {
	summaries := make([]PostSummary, len(posts))
	for i := range posts {
		summaries[i] = p.summarize(&posts[i])
	}
	return summaries
}

func (p *PostsModule) postResponse(post *models.Post) PostResponse {
	var likeRows []models.PostLike
	p.db.Where("post_id = ?", post.ID).Find(&likeRows)
	likes := make([]int, len(likeRows))
	for i, row := range likeRows {
		likes[i] = row.UserID
	}

	var commentRows []models.Comment
	p.db.Where("post_id = ?", post.ID).Order("created_at ASC, id ASC").Find(&commentRows)
	comments := make([]CommentResponse, len(commentRows))
	for i := range commentRows {
		comments[i] = p.commentResponse(&commentRows[i])
	}

	return PostResponse{
		PostSummary: p.summarize(post),
		Content:     post.Content,
		SEO:         post.SEO,
		Likes:       likes,
		Comments:    comments,
	}
}

func (p *PostsModule) commentResponse(comment *models.Comment) CommentResponse {
	return CommentResponse{
		ID:        comment.ID,
		Content:   comment.Content,
		User:      p.authorSummary(comment.UserID),
		CreatedAt: comment.CreatedAt,
	}
}

type ListOptions struct {
	Search    string
	Category  string
	Tag       string
	Author    string
	Status    string
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

type ListFilters struct {
	Categories []string `json:"categories"`
	Tags       []string `json:"tags"`
}

type ListResult struct {
	Posts      []PostSummary     `json:"posts"`
	Pagination common.Pagination `json:"pagination"`
	Filters    ListFilters       `json:"filters"`
}

// allFilters returns every category and tag in the system, regardless
// of the current filter, for building the filter UI.
func (p *PostsModule) allFilters() ListFilters {
	filters := ListFilters{Categories: []string{}, Tags: []string{}}
	p.db.Model(&models.PostCategory{}).Distinct("name").Order("name ASC").Pluck("name", &filters.Categories)
	p.db.Model(&models.PostTag{}).Distinct("name").Order("name ASC").Pluck("name", &filters.Tags)
	return filters
}

// List builds the filtered, sorted, paginated view over posts.
// Status defaults to published. An author filter naming an unknown
// username yields an empty page, not an unfiltered one.
func (p *PostsModule) List(opts ListOptions) (*ListResult, error) {
	sortBy := opts.SortBy
	if sortBy == "" {
		sortBy = "publishedAt"
	}
	column, ok := sortColumns[sortBy]
	if !ok {
		return nil, fmt.Errorf("%w: unknown sort field %q", common.ErrValidation, opts.SortBy)
	}

	direction := "DESC"
	switch opts.SortOrder {
	case "", "desc":
	case "asc":
		direction = "ASC"
	default:
		return nil, fmt.Errorf("%w: sort order must be asc or desc", common.ErrValidation)
	}

	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 {
		opts.Limit = common.DefaultPageSize
	}

	status := opts.Status
	if status == "" {
		status = models.StatusPublished
	}

	query := p.db.Model(&models.Post{}).Where("status = ?", status)

	if opts.Search != "" {
		pattern := "%" + opts.Search + "%"
		query = query.Where("title LIKE ? OR content LIKE ?", pattern, pattern)
	}

	if opts.Category != "" {
		query = query.Where("id IN (?)",
			p.db.Model(&models.PostCategory{}).Select("post_id").Where("name = ?", normalizeTerm(opts.Category)))
	}

	if opts.Tag != "" {
		query = query.Where("id IN (?)",
			p.db.Model(&models.PostTag{}).Select("post_id").Where("name = ?", normalizeTerm(opts.Tag)))
	}

	if opts.Author != "" {
		var author models.User
		if err := p.db.Where("username = ?", opts.Author).First(&author).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &ListResult{
					Posts:      []PostSummary{},
					Pagination: common.Paginate(opts.Page, opts.Limit, 0),
					Filters:    p.allFilters(),
				}, nil
			}
			return nil, err
		}
		query = query.Where("author_id = ?", author.ID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []models.Post
	if err := query.
		Order(column + " " + direction).
		Offset(common.Offset(opts.Page, opts.Limit)).
		Limit(opts.Limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	return &ListResult{
		Posts:      p.summarizeAll(rows),
		Pagination: common.Paginate(opts.Page, opts.Limit, total),
		Filters:    p.allFilters(),
	}, nil
}

func normalizeTerm(term string) string {
	terms := normalizeTerms([]string{term})
	if len(terms) == 0 {
		return ""
	}
	return terms[0]
}

// BySlug fetches one published post, increments its view counter and
// selects up to 3 published posts sharing a category or tag.
func (p *PostsModule) BySlug(slug string) (*models.Post, []models.Post, error) {
	var post models.Post
	if err := p.db.Where("slug = ? AND status = ?", slug, models.StatusPublished).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: post", common.ErrNotFound)
		}
		return nil, nil, err
	}

	if err := p.IncrementViews(post.ID); err != nil {
		return nil, nil, err
	}
	post.Views++

	related, err := p.relatedPosts(&post)
	if err != nil {
		return nil, nil, err
	}

	return &post, related, nil
}

func (p *PostsModule) relatedPosts(post *models.Post) ([]models.Post, error) {
	categories, tags := p.termsOf(post.ID)
	if len(categories) == 0 && len(tags) == 0 {
		return nil, nil
	}

	query := p.db.Model(&models.Post{}).
		Where("id <> ? AND status = ?", post.ID, models.StatusPublished)

	byCategory := p.db.Model(&models.PostCategory{}).Select("post_id").Where("name IN ?", categories)
	byTag := p.db.Model(&models.PostTag{}).Select("post_id").Where("name IN ?", tags)

	switch {
	case len(categories) > 0 && len(tags) > 0:
		query = query.Where("id IN (?) OR id IN (?)", byCategory, byTag)
	case len(categories) > 0:
		query = query.Where("id IN (?)", byCategory)
	default:
		query = query.Where("id IN (?)", byTag)
	}

	var related []models.Post
	if err := query.Limit(3).Find(&related).Error; err != nil {
		return nil, err
	}
	return related, nil
}

func (p *PostsModule) list(c *gin.Context) {
	page, limit := common.PageParams(c)

	result, err := p.List(ListOptions{
		Search:    c.Query("search"),
		Category:  c.Query("category"),
		Tag:       c.Query("tag"),
		Author:    c.Query("author"),
		Status:    c.Query("status"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (p *PostsModule) bySlug(c *gin.Context) {
	post, related, err := p.BySlug(c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}

	p.stats.RecordView(c, post.ID, post.AuthorID)

	response := p.postResponse(post)
	response.ContentHTML = renderedHTML(post)

	c.JSON(http.StatusOK, gin.H{
		"post":          response,
		"related_posts": p.summarizeAll(related),
	})
}

// UserPosts lists one author's published posts, newest first.
func (p *PostsModule) UserPosts(username string, page, limit int) (*AuthorSummary, []PostSummary, common.Pagination, error) {
	var user models.User
	if err := p.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, common.Pagination{}, fmt.Errorf("%w: user", common.ErrNotFound)
		}
		return nil, nil, common.Pagination{}, err
	}

	query := p.db.Model(&models.Post{}).
		Where("author_id = ? AND status = ?", user.ID, models.StatusPublished)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, common.Pagination{}, err
	}

	var rows []models.Post
	if err := query.
		Order("published_at DESC").
		Offset(common.Offset(page, limit)).
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, nil, common.Pagination{}, err
	}

	author := &AuthorSummary{ID: user.ID, Username: user.Username, Name: user.Name, Avatar: user.Avatar}
	return author, p.summarizeAll(rows), common.Paginate(page, limit, total), nil
}

func (p *PostsModule) userPosts(c *gin.Context) {
	page, limit := common.PageParams(c)

	author, summaries, pagination, err := p.UserPosts(c.Param("username"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"posts":      summaries,
		"user":       author,
		"pagination": pagination,
	})
}

// Drafts lists one author's draft posts, most recently edited first.
// Called from the account module's /me/drafts endpoint.
func (p *PostsModule) Drafts(userID int, page, limit int) ([]PostSummary, common.Pagination, error) {
	query := p.db.Model(&models.Post{}).
		Where("author_id = ? AND status = ?", userID, models.StatusDraft)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, common.Pagination{}, err
	}

	var rows []models.Post
	if err := query.
		Order("updated_at DESC").
		Offset(common.Offset(page, limit)).
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, common.Pagination{}, err
	}

	return p.summarizeAll(rows), common.Paginate(page, limit, total), nil
}
