package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/linkshelf/pkg/linkshelf/errx"
	"github.com/mikepea/linkshelf/pkg/linkshelf/httpx"
	"github.com/mikepea/linkshelf/pkg/linkshelf/models"
	"github.com/mikepea/linkshelf/pkg/linkshelf/store"
	"gorm.io/gorm"
)

// Handler handles authentication requests
type Handler struct {
	users  *store.Store[models.User]
	tokens *TokenManager
}

// NewHandler creates a new auth handler
func NewHandler(db *gorm.DB, tokens *TokenManager) *Handler {
	return &Handler{users: store.New[models.User](db, "User"), tokens: tokens}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID         uint   `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	SystemRole string `json:"system_role"`
}

func newUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		SystemRole: string(u.SystemRole),
	}
}

func byEmail(email string) store.Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("email = ?", strings.ToLower(strings.TrimSpace(email)))
	}
}

// Register handles user registration
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := httpx.BindJSON(c, &req); err != nil {
		httpx.Error(c, err)
		return
	}

	hashedPassword, err := HashPassword(req.Password)
	if err != nil {
		httpx.Error(c, errx.E("auth.Register", errx.Internal, err))
		return
	}

	user := models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hashedPassword,
		Name:         strings.TrimSpace(req.Name),
		SystemRole:   models.SystemRoleUser,
	}
	if err := h.users.Create(c.Request.Context(), &user); err != nil {
		if errx.Is(err, errx.Conflict) {
			httpx.Fail(c, http.StatusConflict, "Email already registered")
			return
		}
		httpx.Error(c, err)
		return
	}

	token, err := h.tokens.GenerateToken(user.ID, user.Email, string(user.SystemRole))
	if err != nil {
		httpx.Error(c, errx.E("auth.Register", errx.Internal, err))
		return
	}

	c.JSON(http.StatusCreated, AuthResponse{Token: token, User: newUserResponse(&user)})
}

// Login handles user login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := httpx.BindJSON(c, &req); err != nil {
		httpx.Error(c, err)
		return
	}

	user, err := h.users.Find(c.Request.Context(), byEmail(req.Email))
	if err != nil && !errx.Is(err, errx.NotFound) {
		httpx.Error(c, err)
		return
	}
	if user == nil || !CheckPassword(req.Password, user.PasswordHash) {
		httpx.Fail(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := h.tokens.GenerateToken(user.ID, user.Email, string(user.SystemRole))
	if err != nil {
		httpx.Error(c, errx.E("auth.Login", errx.Internal, err))
		return
	}

	c.JSON(http.StatusOK, AuthResponse{Token: token, User: newUserResponse(user)})
}

// Me returns the current authenticated user
func (h *Handler) Me(c *gin.Context) {
	userID, exists := GetUserID(c)
	if !exists {
		httpx.Fail(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.users.Get(c.Request.Context(), userID)
	if err != nil {
		httpx.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, newUserResponse(user))
}

// Logout handles user logout. Tokens are stateless; the client drops its copy.
func (h *Handler) Logout(c *gin.Context) {
	httpx.OK(c, http.StatusOK, "Logged out successfully", nil)
}

// RegisterRoutes registers auth routes on the given router group. me is the
// middleware guarding /me, so API keys can be accepted there as well.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, me gin.HandlerFunc) {
	rg.POST("/register", h.Register)
	rg.POST("/login", h.Login)
	rg.POST("/logout", h.Logout)
	rg.GET("/me", me, h.Me)
}
