package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/service"
)

type staffAuthenticator interface {
	Login(ctx context.Context, ip, username, password string) (service.LoginResult, error)
}

// AuthHandler bundles dependencies for staff auth endpoints.
type AuthHandler struct {
	Auth   staffAuthenticator
	Logger *logrus.Logger
}

// NewAuthHandler wires staff login.
func NewAuthHandler(auth staffAuthenticator, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{Auth: auth, Logger: logger}
}

// ----- DTOs -----

type loginReq struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=200"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}
type authResp struct {
	User   userPart  `json:"user"`
	Access tokenPart `json:"access"`
}

// Login: verify and return an access token.  Repeated failures from one
// ip for one username answer 429 until the block expires.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Auth.Login(ctx, c.RealIP(), req.Username, req.Password)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, authResp{
		User:   userPart{ID: res.User.ID, Username: res.User.Username, Role: res.User.Role},
		Access: tokenPart{Token: res.Token.Token, Expires: res.Token.Exp},
	})
}
