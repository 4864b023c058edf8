package account

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"quill/email"
	"quill/models"
)

type forgotPasswordInput struct {
	Email string `json:"email" binding:"required,email"`
}

// forgotPassword issues a one-hour reset token and mails it. The
// response is the same whether or not the email is registered, so the
// endpoint cannot be used to probe for accounts.
func (a *AccountModule) forgotPassword(c *gin.Context) {
	var in forgotPasswordInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed: " + err.Error()})
		return
	}

	response := gin.H{"message": "If that email is registered, a reset link has been sent"}

	var user models.User
	if err := a.db.Where("email = ?", in.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusOK, response)
		return
	}

	token := uuid.NewString()
	expiry := time.Now().Add(time.Hour)
	user.ResetToken = token
	user.ResetTokenExpiry = &expiry

	if err := a.db.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	emailService := email.NewEmailService()
	if err := emailService.SendPasswordResetEmail(user.Email, token); err != nil {
		log.Printf("Error sending password reset email to %s: %v", user.Email, err)
	}

	c.JSON(http.StatusOK, response)
}

type resetPasswordInput struct {
	Password string `json:"password" binding:"required,min=8,max=100"`
}

func (a *AccountModule) resetPassword(c *gin.Context) {
	token := c.Param("token")

	var in resetPasswordInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed: " + err.Error()})
		return
	}

	var user models.User
	if err := a.db.Where("reset_token = ?", token).First(&user).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired token"})
		return
	}

	if user.ResetTokenExpiry == nil || time.Now().After(*user.ResetTokenExpiry) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired token"})
		return
	}

	passwordHash, err := hashPassword(in.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	user.PasswordHash = passwordHash
	user.ResetToken = ""
	user.ResetTokenExpiry = nil

	if err := a.db.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset successfully. You can now log in."})
}
