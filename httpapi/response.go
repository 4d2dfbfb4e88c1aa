package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/fastauth"
	"github.com/MrEthical07/fastauth/store"
)

// DataResponse is the success envelope.
type DataResponse struct {
	Data any `json:"data"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type TokenResponse struct {
	User                  UserResponse `json:"user"`
	AccessToken           string       `json:"access_token"`
	TokenType             string       `json:"token_type"`
	AccessTokenExpiresAt  time.Time    `json:"access_token_expires_at"`
	RefreshToken          string       `json:"refresh_token,omitempty"`
	RefreshTokenExpiresAt *time.Time   `json:"refresh_token_expires_at,omitempty"`
}

func userResponse(u *store.User) UserResponse {
	if u == nil {
		return UserResponse{}
	}
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
	}
}

func tokenResponse(res *fastauth.AuthResult) TokenResponse {
	out := TokenResponse{
		User:                 userResponse(res.User),
		AccessToken:          res.AccessToken,
		TokenType:            "Bearer",
		AccessTokenExpiresAt: res.AccessTokenExpiresAt,
		RefreshToken:         res.RefreshToken,
	}
	if res.RefreshToken != "" {
		exp := res.RefreshTokenExpiresAt
		out.RefreshTokenExpiresAt = &exp
	}
	return out
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, DataResponse{Data: data})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

// respondEngineError maps engine errors to HTTP. Unknown errors become a
// generic 500 so internals never reach the client.
func respondEngineError(c *gin.Context, err error) {
	var ve *fastauth.ValidationError
	if errors.As(err, &ve) {
		fields := make(map[string][]string, len(ve.Fields))
		for _, f := range ve.Fields {
			fields[f.Field] = append(fields[f.Field], f.Message)
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: ErrorBody{
			Code:    "validation_failed",
			Message: fastauth.ErrValidation.Error(),
			Fields:  fields,
		}})
		return
	}

	status, code := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	respondError(c, status, code, message)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, fastauth.ErrEmailTaken):
		return http.StatusConflict, "email_taken"
	case errors.Is(err, fastauth.ErrUsernameTaken):
		return http.StatusConflict, "username_taken"
	case errors.Is(err, fastauth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, fastauth.ErrRefreshTokenInvalid):
		return http.StatusUnauthorized, "refresh_token_invalid"
	case errors.Is(err, fastauth.ErrRefreshTokenExpired):
		return http.StatusUnauthorized, "refresh_token_expired"
	case errors.Is(err, fastauth.ErrTokenInvalid):
		return http.StatusUnauthorized, "invalid_token"
	case errors.Is(err, fastauth.ErrTokenExpired):
		return http.StatusUnauthorized, "expired_token"
	case errors.Is(err, fastauth.ErrUserNotFound):
		return http.StatusNotFound, "user_not_found"
	case errors.Is(err, fastauth.ErrRefreshDisabled):
		return http.StatusNotFound, "refresh_disabled"
	case errors.Is(err, fastauth.ErrPasswordReuse):
		return http.StatusUnprocessableEntity, "password_reuse"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
