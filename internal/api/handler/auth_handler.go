package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/account-recovery/internal/api/metrics"
	"github.com/99minutos/account-recovery/internal/core/domain"
	"github.com/99minutos/account-recovery/internal/core/ports"
)

// User-facing messages. They are part of the HTTP contract.
const (
	msgUserCreated       = "User created successfully."
	msgEmailRegistered   = "Email already registered."
	msgUsernameTaken     = "Username already registered."
	msgIncorrectPassword = "Incorrect password."
	msgUserNotFound      = "User not found."
	msgEmailNotFound     = "Email not found."
	msgResetRequested    = "Password reset requested."
	msgInvalidToken      = "Invalid or expired token."
	msgPasswordUpdated   = "Password updated successfully."
	msgResetInProgress   = "Password reset already in progress, try again."
)

const (
	opRegister       = "register"
	opLogin          = "login"
	opRequestReset   = "request_password_reset"
	opSetNewPassword = "set_new_password"
)

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register creates a new account.
//
// @Summary      Register a new account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Account details"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		record(opRegister, "invalid_request")
		return err
	}

	_, err := h.authService.Register(c.Request().Context(), req.Username, req.Email, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrEmailAlreadyRegistered):
		record(opRegister, "email_taken")
		return echo.NewHTTPError(http.StatusBadRequest, msgEmailRegistered)
	case errors.Is(err, domain.ErrUsernameTaken):
		record(opRegister, "username_taken")
		return echo.NewHTTPError(http.StatusBadRequest, msgUsernameTaken)
	case errors.Is(err, domain.ErrInvalidInput):
		record(opRegister, "invalid_request")
		return err
	default:
		record(opRegister, "error")
		return err
	}

	record(opRegister, "ok")
	return c.JSON(http.StatusOK, messageResponse{Message: msgUserCreated})
}

// Login authenticates an account and returns a bearer token.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      401   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		record(opLogin, "invalid_request")
		return err
	}

	res, err := h.authService.Login(c.Request().Context(), req.Username, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrUserNotFound):
		record(opLogin, "user_not_found")
		return echo.NewHTTPError(http.StatusUnauthorized, msgUserNotFound)
	case errors.Is(err, domain.ErrIncorrectPassword):
		record(opLogin, "incorrect_password")
		return echo.NewHTTPError(http.StatusUnauthorized, msgIncorrectPassword)
	default:
		record(opLogin, "error")
		return err
	}

	record(opLogin, "ok")
	return c.JSON(http.StatusOK, loginResponse{AccessToken: res.AccessToken, TokenType: res.TokenType})
}

// RequestPasswordReset issues a reset token for a registered email.
//
// @Summary      Request a password reset
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      resetRequest  true  "Account email"
// @Success      200   {object}  resetResponse
// @Failure      400   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /request-password-reset [post]
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req resetRequest
	if err := bindAndValidate(c, &req); err != nil {
		record(opRequestReset, "invalid_request")
		return err
	}

	tok, err := h.authService.RequestPasswordReset(c.Request().Context(), req.Email)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrEmailNotFound):
		record(opRequestReset, "email_not_found")
		return echo.NewHTTPError(http.StatusBadRequest, msgEmailNotFound)
	default:
		record(opRequestReset, "error")
		return err
	}

	record(opRequestReset, "ok")
	metrics.ResetTokensTotal.WithLabelValues(string(domain.ResetStateIssued)).Inc()
	return c.JSON(http.StatusOK, resetResponse{Message: msgResetRequested, Token: tok.Token})
}

// SetNewPassword redeems a reset token.
//
// @Summary      Set a new password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      setNewPasswordRequest  true  "Reset token and new password"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /set-new-password [post]
func (h *AuthHandler) SetNewPassword(c echo.Context) error {
	var req setNewPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		record(opSetNewPassword, "invalid_request")
		return err
	}

	err := h.authService.SetNewPassword(c.Request().Context(), req.Token, req.NewPassword)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidOrExpiredToken):
		record(opSetNewPassword, "invalid_token")
		metrics.ResetTokensTotal.WithLabelValues(string(rejectedState(err))).Inc()
		return echo.NewHTTPError(http.StatusBadRequest, msgInvalidToken)
	case errors.Is(err, domain.ErrRedemptionInProgress):
		record(opSetNewPassword, "in_progress")
		return echo.NewHTTPError(http.StatusConflict, msgResetInProgress)
	case errors.Is(err, domain.ErrUserNotFound):
		record(opSetNewPassword, "user_not_found")
		return echo.NewHTTPError(http.StatusBadRequest, msgUserNotFound)
	case errors.Is(err, domain.ErrInvalidInput):
		record(opSetNewPassword, "invalid_request")
		return err
	default:
		record(opSetNewPassword, "error")
		return err
	}

	record(opSetNewPassword, "ok")
	metrics.ResetTokensTotal.WithLabelValues(string(domain.ResetStateConsumed)).Inc()
	return c.JSON(http.StatusOK, messageResponse{Message: msgPasswordUpdated})
}

// Me returns the authenticated account.
//
// @Summary      Current account
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200   {object}  profileResponse
// @Failure      401   {object}  errorResponse
// @Router       /me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	username, err := ctxUsername(c)
	if err != nil {
		return err
	}

	account, err := h.authService.Profile(c.Request().Context(), username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, msgUserNotFound)
		}
		return err
	}

	return c.JSON(http.StatusOK, profileResponse{
		ID:       account.ID,
		Username: account.Username,
		Email:    account.Email,
	})
}

// bindAndValidate returns a 400 for an unreadable body and a 422 for one that
// fails field validation.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return nil
}

func record(op, outcome string) {
	metrics.AuthRequestsTotal.WithLabelValues(op, outcome).Inc()
}

// rejectedState tells an expired token apart from an unknown or already used one.
func rejectedState(err error) domain.ResetState {
	if errors.Is(err, domain.ErrTokenExpired) {
		return domain.ResetStateExpired
	}
	return domain.ResetStateNoToken
}
