package fakeapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Email    string  `json:"email" binding:"required,email"`
	Username string  `json:"username" binding:"required,min=3,max=50"`
	Password string  `json:"password" binding:"required,min=8"`
	FullName *string `json:"full_name"`
}

type googleLoginRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

// validationDetail is one entry of a 422 detail list
type validationDetail struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// bindJSON binds the body and answers 422 with a detail list on failure
func (s *Server) bindJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	var details []validationDetail
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			details = append(details, validationDetail{
				Loc:  []string{"body", fe.Field()},
				Msg:  validationMessage(fe),
				Type: "value_error." + fe.Tag(),
			})
		}
	} else {
		details = append(details, validationDetail{
			Loc:  []string{"body"},
			Msg:  "Invalid JSON body",
			Type: "value_error.jsondecode",
		})
	}

	s.logger.Debug().Err(err).Msg("Request validation failed")
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": details})
	return false
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "email":
		return "value is not a valid email address"
	case "min":
		return "ensure this value has at least " + fe.Param() + " characters"
	case "max":
		return "ensure this value has at most " + fe.Param() + " characters"
	default:
		return "invalid value"
	}
}

func (s *Server) issueTokens(userID int64) (*tokenResponse, error) {
	accessToken, err := s.generateAccessToken(userID)
	if err != nil {
		return nil, err
	}

	refresh := &RefreshToken{UserID: userID}
	if err := s.db.Create(refresh).Error; err != nil {
		return nil, err
	}

	return &tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refresh.Token,
		TokenType:    "bearer",
	}, nil
}

func (s *Server) respondWithTokens(c *gin.Context, user *User) {
	resp, err := s.issueTokens(user.ID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to issue tokens")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if !s.bindJSON(c, &req) {
		return
	}

	var user User
	if err := s.db.Where("email = ?", strings.ToLower(req.Email)).First(&user).Error; err != nil {
		s.respondWithDetail(c, http.StatusUnauthorized, err, "Incorrect email or password")
		return
	}

	if !checkPassword(user.PasswordHash, req.Password) {
		s.respondWithDetail(c, http.StatusUnauthorized, errors.New("password mismatch"), "Incorrect email or password")
		return
	}

	if !user.IsActive {
		s.respondWithDetail(c, http.StatusForbidden, errors.New("inactive user"), "Inactive user")
		return
	}

	s.respondWithTokens(c, &user)
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if !s.bindJSON(c, &req) {
		return
	}

	email := strings.ToLower(req.Email)

	var count int64
	s.db.Model(&User{}).Where("email = ?", email).Count(&count)
	if count > 0 {
		s.respondWithDetail(c, http.StatusBadRequest, errors.New("duplicate email"), "Email already registered")
		return
	}

	s.db.Model(&User{}).Where("username = ?", req.Username).Count(&count)
	if count > 0 {
		s.respondWithDetail(c, http.StatusBadRequest, errors.New("duplicate username"), "Username already taken")
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}

	user := &User{
		Email:        email,
		Username:     req.Username,
		FullName:     req.FullName,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.db.Create(user).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to create user")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, toUserResponse(user))
}

func (s *Server) googleLogin(c *gin.Context) {
	var req googleLoginRequest
	if !s.bindJSON(c, &req) {
		return
	}

	s.mu.Lock()
	identity, ok := s.googleTokens[req.IDToken]
	s.mu.Unlock()
	if !ok {
		s.respondWithDetail(c, http.StatusUnauthorized, errors.New("unknown id token"), "Invalid Google token")
		return
	}

	email := strings.ToLower(identity.Email)
	var user User
	err := s.db.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = User{
			Email:      email,
			Username:   strings.SplitN(email, "@", 2)[0],
			IsActive:   true,
			IsVerified: true,
		}
		if identity.FullName != "" {
			name := identity.FullName
			user.FullName = &name
		}
		err = s.db.Create(&user).Error
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to resolve Google user")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}

	s.respondWithTokens(c, &user)
}

func (s *Server) currentUser(c *gin.Context) {
	s.mu.Lock()
	fault := s.profileFault
	s.mu.Unlock()
	if fault != 0 {
		s.respondWithDetail(c, fault, errors.New("scripted fault"), "Profile unavailable")
		return
	}

	userID := c.GetInt64(userIDKey)

	var user User
	if err := s.db.First(&user, userID).Error; err != nil {
		s.respondWithDetail(c, http.StatusUnauthorized, err, "Could not validate credentials")
		return
	}

	c.JSON(http.StatusOK, toUserResponse(&user))
}

func (s *Server) detailedHealth(c *gin.Context) {
	s.mu.Lock()
	reply := s.health
	s.mu.Unlock()

	c.Data(reply.statusCode, "application/json", reply.body)
}
