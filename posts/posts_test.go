package posts

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"quill/common"
	"quill/models"
)

func setupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		panic("failed to connect database")
	}

	db.AutoMigrate(
		&models.User{}, &models.Post{}, &models.Comment{},
		&models.PostLike{}, &models.Favorite{},
		&models.PostCategory{}, &models.PostTag{},
	)
	return db
}

func createTestUser(db *gorm.DB, username string) *models.User {
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hashedpassword",
		Role:         models.RoleUser,
	}
	db.Create(user)
	return user
}

func createTestAdmin(db *gorm.DB) *models.User {
	user := &models.User{
		Username:     "admin",
		Email:        "admin@example.com",
		PasswordHash: "hashedpassword",
		Role:         models.RoleAdmin,
	}
	db.Create(user)
	return user
}

func validCreateInput(title string) CreateInput {
	return CreateInput{
		Title:   title,
		Content: "This is a long enough body of content to pass the minimum length rule.",
	}
}

func TestCreate_DefaultsToDraft(t *testing.T) {
	db := setupTestDB()
	module := NewPostsModule(db, nil)
	author := createTestUser(db, "writer")

	post, err := module.Create(author.ID, validCreateInput("My First Post"))

	assert.NoError(t, err)
	assert.Equal(t, models.StatusDraft, post.Status)
	assert.False(t, post.IsPublished())
	assert.Nil(t, post.PublishedAt)
	assert.Equal(t, "my-first-post", post.Slug)
}

func TestCreate_PublishedStampsPublishedAt(t *testing.T) {
	db := setupTestDB()
	module := NewPostsModule(db, nil)
	author := createTestUser(db, "writer")

	in := validCreateInput("Hello World")
	in.Status = models.StatusPublished

	post, err := module.Create(author.ID, in)

	assert.NoError(t, err)
	assert.True(t, post.IsPublished())
	assert.NotNil(t, post.PublishedAt)
}

func TestCreate_NormalizesCategoriesAndTags(t *testing.T) {
	db := setupTestDB()
	module := NewPostsModule(db, nil)
	author := createTestUser(db, "writer")

	in := validCreateInput("Tagged Post")
	in.Categories = []string{"Tech", " tech ", "Life"}
	in.Tags = []string{"Go", "go", "Web"}

	post, err := module.Create(author.ID, in)
	assert.NoError(t, err)

	categories, tags := module.termsOf(post.ID)
	assert.Equal(t, []string{"tech", "life"}, categories)
	assert.Equal(t, []string{"go", "web"}, tags)
}

func TestCreate_DuplicateSlug(t *testing.T) {
	db := setupTestDB()
	module := NewPostsModule(db, nil)
	author := createTestUser(db, "writer")

	_, err := module.Create(author.ID, validCreateInput("Same Title"))
	assert.NoError(t, err)

	_, err = module.Create(author.ID, validCreateInput("Same Title"))
	assert.ErrorIs(t, err, common.ErrDuplicateSlug)
}

func TestCreate_InvalidStatus(t *testing.T) {
	db := setupTestDB()
	module := NewPostsModule(db, nil)
	author := createTestUser(db, "writer")

	in := validCreateInput("Broken Status")
	in.Status = "pending"

	_, err := module.Create(author.ID, in)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestUpdate_PartialPatchLeavesOtherFieldsUntouched(t *testing.T) {
	db := setupTestDB()
	module := NewPostsModule(db, nil)
	author := createTestUser(db, "writer")

	in := validCreateInput("Original Title")
	in.Tags = []string{"go"}
	post, _ := module.Create(author.ID, in)

	newTitle := "Updated Title"
	updated, err := module.Update(post.ID, author.ID, author.Role, UpdateInput{Title: &newTitle})

	assert.NoError(t, err)
	assert.Equal(t, "Updated Title", updated.Title)
	assert.Equal(t, post.Content, updated.Content)
	assert.Equal(t, post.Status, updated.Status)
	assert.Equal(t, post.Slug, updated.Slug, "slug is stable once assigned")

	_, tags := module.termsOf(post.ID)
	assert.Equal(t, []string{"go"}, tags)
}

func TestUpdate_ClearExcerptWithEmptyString(t *testing.T) {
	db := setupTestDB()
	module := NewPostsModule(db, nil)
	author := createTestUser(db, "writer")

	in := validCreateInput("With Excerpt")
	in.Excerpt = "A short excerpt"
	post, _ := module.Create(author.ID, in)

	empty := ""
	updated, err := module.Update(post.ID, author.ID, author.Role, UpdateInput{Excerpt: &empty})

	assert.NoError(t, err)
	assert.Equal(t, "", updated.Excerpt)
}

func TestUpdate_MergesSEOFieldByField(t *testing.T) {
	db := setupTestDB()
	module := NewPostsModule(db, nil)
	author := createTestUser(db, "writer")

	title := "Meta Title"
	in := validCreateInput("SEO Post")
	in.SEO = &SEOInput{MetaTitle: &title}
	post, _ := module.Create(author.ID, in)

	description := "Meta description"
	updated, err := module.Update(post.ID, author.ID, author.Role, UpdateInput{
		SEO: &SEOInput{MetaDescription: &description},
	})

	assert.NoError(t, err)
	assert.Equal(t, "Meta Title", updated.SEO.MetaTitle)
	assert.Equal(t, "Meta description", updated.SEO.MetaDescription)
}

func TestUpdate_PublishTransition(t *testing.T) {
	db := setupTestDB()
	module := NewPostsModule(db, nil)
	author := createTestUser(db, "writer")

	post, _ := module.Create(author.ID, validCreateInput("Draft Post"))
	assert.Nil(t, post.PublishedAt)

	published := models.StatusPublished
	updated, err := module.Update(post.ID, author.ID, author.Role, UpdateInput{Status: &published})

	assert.NoError(t, err)
	assert.True(t, updated.IsPublished())
	assert.NotNil(t, updated.PublishedAt)
}

func TestUpdate_Forbidden(t *testing.T) {
	db := setupTestDB()
	module := NewPostsModule(db, nil)
	author := createTestUser(db, "writer")
	stranger := createTestUser(db, "stranger")

	post, _ := module.Create(author.ID, validCreateInput("Private Post"))

	newTitle := "Hijacked"
	_, err := module.Update(post.ID, stranger.ID, stranger.Role, UpdateInput{Title: &newTitle})

	assert.ErrorIs(t, err, common.ErrForbidden)
}

func TestUpdate_AdminCanMutate(t *testing.T) {
	db := setupTestDB()
	module := NewPostsModule(db, nil)
	author := createTestUser(db, "writer")
	admin := createTestAdmin(db)

	post, _ := module.Create(author.ID, validCreateInput("Moderated Post"))

	newTitle := "Moderated Title"
	updated, err := module.Update(post.ID, admin.ID, admin.Role, UpdateInput{Title: &newTitle})

	assert.NoError(t, err)
	assert.Equal(t, "Moderated Title", updated.Title)
}

func TestUpdate_NotFound(t *testing.T) {
	db := setupTestDB()
	module := NewPostsModule(db, nil)
	user := createTestUser(db, "writer")

	newTitle := "Ghost Title"
	_, err := module.Update(9999, user.ID, user.Role, UpdateInput{Title: &newTitle})

	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDelete_RemovesPostAndEmbeddedData(t *testing.T) {
	db := setupTestDB()
	module := NewPostsModule(db, nil)
	author := createTestUser(db, "writer")
	reader := createTestUser(db, "reader")

	in := validCreateInput("Doomed Post")
	in.Tags = []string{"go"}
	post, _ := module.Create(author.ID, in)

	module.ToggleLike(post.ID, reader.ID)
	module.AddComment(post.ID, reader.ID, "Nice one")

	err := module.Delete(post.ID, author.ID, author.Role)
	assert.NoError(t, err)

	var count int64
	db.Model(&models.Post{}).Where("id = ?", post.ID).Count(&count)
	assert.Equal(t, int64(0), count)

	db.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&count)
	assert.Equal(t, int64(0), count)

	db.Model(&models.PostLike{}).Where("post_id = ?", post.ID).Count(&count)
	assert.Equal(t, int64(0), count)

	db.Model(&models.PostTag{}).Where("post_id = ?", post.ID).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestDelete_Forbidden(t *testing.T) {
	db := setupTestDB()
	module := NewPostsModule(db, nil)
	author := createTestUser(db, "writer")
	stranger := createTestUser(db, "stranger")

	post, _ := module.Create(author.ID, validCreateInput("Protected Post"))

	err := module.Delete(post.ID, stranger.ID, stranger.Role)
	assert.ErrorIs(t, err, common.ErrForbidden)

	var count int64
	db.Model(&models.Post{}).Where("id = ?", post.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestToggleLike_PairReturnsToOriginalState(t *testing.T) {
	db := setupTestDB()
	module := NewPostsModule(db, nil)
	author := createTestUser(db, "writer")
	reader := createTestUser(db, "reader")

	post, _ := module.Create(author.ID, validCreateInput("Likeable Post"))

	count, liked, err := module.ToggleLike(post.ID, reader.ID)
	assert.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, int64(1), count)

	count, liked, err = module.ToggleLike(post.ID, reader.ID)
	assert.NoError(t, err)
	assert.False(t, liked)
	assert.Equal(t, int64(0), count)
}

func TestToggleLike_IndependentUsers(t *testing.T) {
	db := setupTestDB()
	module := NewPostsModule(db, nil)
	author := createTestUser(db, "writer")
	first := createTestUser(db, "first")
	second := createTestUser(db, "second")

	post, _ := module.Create(author.ID, validCreateInput("Popular Post"))

	module.ToggleLike(post.ID, first.ID)
	count, liked, _ := module.ToggleLike(post.ID, second.ID)

	assert.True(t, liked)
	assert.Equal(t, int64(2), count)

	// first unlikes, second's like stays
	count, liked, _ = module.ToggleLike(post.ID, first.ID)
	assert.False(t, liked)
	assert.Equal(t, int64(1), count)
}

func TestToggleLike_PostNotFound(t *testing.T) {
	db := setupTestDB()
	module := NewPostsModule(db, nil)
	reader := createTestUser(db, "reader")

	_, _, err := module.ToggleLike(9999, reader.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestAddComment_AppendOnlyKeepsOrder(t *testing.T) {
	db := setupTestDB()
	module := NewPostsModule(db, nil)
	author := createTestUser(db, "writer")
	reader := createTestUser(db, "reader")

	post, _ := module.Create(author.ID, validCreateInput("Commented Post"))

	first, err := module.AddComment(post.ID, reader.ID, "First!")
	assert.NoError(t, err)

	second, err := module.AddComment(post.ID, reader.ID, "Second thoughts")
	assert.NoError(t, err)

	var comments []models.Comment
	db.Where("post_id = ?", post.ID).Order("created_at ASC, id ASC").Find(&comments)

	assert.Equal(t, 2, len(comments))
	assert.Equal(t, first.ID, comments[0].ID)
	assert.Equal(t, second.ID, comments[1].ID)
	assert.Equal(t, "First!", comments[0].Content)
}

func TestAddComment_LengthBounds(t *testing.T) {
	db := setupTestDB()
	module := NewPostsModule(db, nil)
	author := createTestUser(db, "writer")
	reader := createTestUser(db, "reader")

	post, _ := module.Create(author.ID, validCreateInput("Strict Post"))

	_, err := module.AddComment(post.ID, reader.ID, "   ")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = module.AddComment(post.ID, reader.ID, strings.Repeat("a", 1001))
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = module.AddComment(post.ID, reader.ID, strings.Repeat("a", 1000))
	assert.NoError(t, err)
}

func TestAddComment_BoundsCountCharactersNotBytes(t *testing.T) {
	db := setupTestDB()
	module := NewPostsModule(db, nil)
	author := createTestUser(db, "writer")
	reader := createTestUser(db, "reader")

	post, _ := module.Create(author.ID, validCreateInput("Multilingual Post"))

	// 500 characters, 1500 bytes
	comment, err := module.AddComment(post.ID, reader.ID, strings.Repeat("日", 500))
	assert.NoError(t, err)
	assert.NotNil(t, comment)

	_, err = module.AddComment(post.ID, reader.ID, strings.Repeat("日", 1000))
	assert.NoError(t, err)

	_, err = module.AddComment(post.ID, reader.ID, strings.Repeat("日", 1001))
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestIncrementViews_Atomic(t *testing.T) {
	db := setupTestDB()
	module := NewPostsModule(db, nil)
	author := createTestUser(db, "writer")

	post, _ := module.Create(author.ID, validCreateInput("Viewed Post"))

	for i := 0; i < 5; i++ {
		assert.NoError(t, module.IncrementViews(post.ID))
	}

	var reloaded models.Post
	db.First(&reloaded, post.ID)
	assert.Equal(t, int64(5), reloaded.Views)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "hello-world"},
		{"  Spaces   Everywhere  ", "spaces-everywhere"},
		{"Açúcar & Café", "acucar-cafe"},
		{"Already-Slugged", "already-slugged"},
		{"100% Go!", "100-go"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Slugify(tt.input))
		})
	}
}

func TestPostUpdatedAtMovesOnUpdate(t *testing.T) {
	db := setupTestDB()
	module := NewPostsModule(db, nil)
	author := createTestUser(db, "writer")

	post, _ := module.Create(author.ID, validCreateInput("Timestamped Post"))
	before := post.UpdatedAt

	time.Sleep(10 * time.Millisecond)

	newTitle := "Timestamped Post v2"
	updated, _ := module.Update(post.ID, author.ID, author.Role, UpdateInput{Title: &newTitle})

	assert.True(t, updated.UpdatedAt.After(before))
}
