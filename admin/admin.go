package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"quill/cache"
	"quill/common"
	"quill/models"
	"quill/posts"
)

// AdminModule is the operator surface: everything here sits behind the
// admin role.
type AdminModule struct {
	db    *gorm.DB
	posts *posts.PostsModule
}

func NewAdminModule(db *gorm.DB, postsModule *posts.PostsModule) *AdminModule {
	return &AdminModule{
		db:    db,
		posts: postsModule,
	}
}

func (a *AdminModule) RegisterRoutes(router *gin.Engine) {
	adminGroup := router.Group("/api/admin", common.RequireAdmin(a.db))
	{
		adminGroup.GET("/posts", a.listAllPosts)
		adminGroup.PUT("/users/:id/role", a.setUserRole)
		adminGroup.POST("/cache/clear", a.clearRenderCache)
	}
}

// listAllPosts lists posts in every status, drafts included, for
// moderation. Optional ?status= narrows it down.
func (a *AdminModule) listAllPosts(c *gin.Context) {
	page, limit := common.PageParams(c)

	query := a.db.Model(&models.Post{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	var rows []models.Post
	if err := query.
		Order("updated_at DESC").
		Offset(common.Offset(page, limit)).
		Limit(limit).
		Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	summaries := make([]posts.PostSummary, len(rows))
	for i := range rows {
		summaries[i] = a.posts.Summarize(&rows[i])
	}

	c.JSON(http.StatusOK, gin.H{
		"posts":      summaries,
		"pagination": common.Paginate(page, limit, total),
	})
}

func (a *AdminModule) setUserRole(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	var request struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed: " + err.Error()})
		return
	}

	if request.Role != models.RoleUser && request.Role != models.RoleAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Role must be user or admin"})
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	user.Role = request.Role
	if err := a.db.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Role updated successfully",
		"user":    user,
	})
}

func (a *AdminModule) clearRenderCache(c *gin.Context) {
	if err := cache.ClearOld(0); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Render cache cleared"})
}
