package account

import (
	"net/http"
	"regexp"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"quill/common"
	"quill/models"
	"quill/posts"
	"quill/stats"
)

type AccountModule struct {
	db    *gorm.DB
	posts *posts.PostsModule
	stats *stats.StatsModule
}

func NewAccountModule(db *gorm.DB, postsModule *posts.PostsModule, statsModule *stats.StatsModule) *AccountModule {
	return &AccountModule{
		db:    db,
		posts: postsModule,
		stats: statsModule,
	}
}

func (a *AccountModule) RegisterRoutes(router *gin.Engine) {
	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/register", a.register)
		authGroup.POST("/login", a.login)
		authGroup.POST("/logout", a.logout)
		authGroup.POST("/forgot-password", a.forgotPassword)
		authGroup.POST("/reset-password/:token", a.resetPassword)
		authGroup.GET("/me", common.RequireAuth, a.me)
		authGroup.PUT("/profile", common.RequireAuth, a.updateProfile)
		authGroup.PUT("/change-password", common.RequireAuth, a.changePassword)
	}

	usersGroup := router.Group("/api/users")
	{
		usersGroup.GET("/search", a.searchUsers)
		meGroup := usersGroup.Group("/me", common.RequireAuth)
		{
			meGroup.GET("/favorites", a.favorites)
			meGroup.POST("/favorites/:postId", a.toggleFavorite)
			meGroup.GET("/drafts", a.drafts)
			meGroup.GET("/stats", a.viewStats)
		}
	}

	router.GET("/api/profiles/:username", a.publicProfile)
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type registerInput struct {
	Username string `json:"username" binding:"required,min=3,max=30"`
	Email    string `json:"email" binding:"required,email,max=100"`
	Password string `json:"password" binding:"required,min=8,max=100"`
	Name     string `json:"name" binding:"max=100"`
}

func (a *AccountModule) register(c *gin.Context) {
	var in registerInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed: " + err.Error()})
		return
	}

	if !usernamePattern.MatchString(in.Username) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username can only contain letters, numbers, underscores, and hyphens"})
		return
	}

	var existingUser models.User
	if err := a.db.Where("username = ?", in.Username).First(&existingUser).Error; err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "This username is already taken"})
		return
	}
	if err := a.db.Where("email = ?", in.Email).First(&existingUser).Error; err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "This email is already registered"})
		return
	}

	passwordHash, err := hashPassword(in.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	user := models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: passwordHash,
		Role:         models.RoleUser,
		Name:         in.Name,
	}

	if err := a.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	session.Save()

	c.JSON(http.StatusCreated, gin.H{
		"message": "Account created successfully",
		"user":    user,
	})
}

type loginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (a *AccountModule) login(c *gin.Context) {
	var in loginInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed: " + err.Error()})
		return
	}

	var user models.User
	if err := a.db.Where("email = ?", in.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if !checkPasswordHash(in.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	session.Save()

	c.JSON(http.StatusOK, gin.H{
		"message": "Logged in successfully",
		"user":    user,
	})
}

func (a *AccountModule) logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()

	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (a *AccountModule) me(c *gin.Context) {
	user, err := common.CurrentUser(c, a.db)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

type profileInput struct {
	Name    *string `json:"name" binding:"omitempty,max=100"`
	Bio     *string `json:"bio" binding:"omitempty,max=500"`
	Avatar  *string `json:"avatar"`
	Website *string `json:"website" binding:"omitempty,url"`
}

// updateProfile applies a partial patch; absent fields stay unchanged,
// present empty strings clear the field.
func (a *AccountModule) updateProfile(c *gin.Context) {
	var in profileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed: " + err.Error()})
		return
	}

	user, err := common.CurrentUser(c, a.db)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	if in.Name != nil {
		user.Name = *in.Name
	}
	if in.Bio != nil {
		user.Bio = *in.Bio
	}
	if in.Avatar != nil {
		user.Avatar = *in.Avatar
	}
	if in.Website != nil {
		user.Website = *in.Website
	}

	if err := a.db.Save(user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"user":    user,
	})
}

type changePasswordInput struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=100"`
}

func (a *AccountModule) changePassword(c *gin.Context) {
	var in changePasswordInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed: " + err.Error()})
		return
	}

	user, err := common.CurrentUser(c, a.db)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	if !checkPasswordHash(in.CurrentPassword, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Current password is incorrect"})
		return
	}

	passwordHash, err := hashPassword(in.NewPassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now()
	if err := a.db.Save(user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
