package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/he1237596/feed-service/internal/auth"
	"github.com/he1237596/feed-service/internal/models"
	"github.com/he1237596/feed-service/internal/store"
)

func RegisterHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username    string `json:"username" binding:"required"`
			DisplayName string `json:"display_name"`
			Email       string `json:"email"`
			Password    string `json:"password" binding:"required"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		pw, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password"})
			return
		}
		display := req.DisplayName
		if display == "" {
			display = req.Username
		}
		res, err := st.DB.Exec(`INSERT INTO users (username, display_name, email, password_hash, role) VALUES (?, ?, ?, ?, ?)`,
			req.Username, display, req.Email, string(pw), models.RolePublisher)
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "username taken"})
			return
		}
		id, _ := res.LastInsertId()
		c.JSON(http.StatusCreated, gin.H{"id": id, "username": req.Username})
	}
}

func LoginHandler(st *store.Store, signingKey []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var user models.User
		err := st.DB.Get(&user, `SELECT * FROM users WHERE username = ?`, req.Username)
		if err != nil {
			if err == sql.ErrNoRows {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		tok, err := auth.NewToken(signingKey, auth.Claims{
			UserID:   user.ID,
			Username: user.Username,
			Role:     string(user.Role),
			Scopes:   []string{auth.ScopeRead, auth.ScopePublish},
		}, 12*time.Hour)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": tok, "username": user.Username})
	}
}
