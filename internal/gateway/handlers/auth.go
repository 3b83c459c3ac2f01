package handlers

// auth.go implements the /auth endpoints used by client applications to obtain bearer credentials.

import (
	"log/slog"
	"net/http"

	"github.com/information-sharing-networks/evote-gateway/internal/auth"
	"github.com/information-sharing-networks/evote-gateway/internal/gateway"
	"github.com/information-sharing-networks/evote-gateway/internal/logger"
)

// AuthHandler handles the /auth routes
type AuthHandler struct {
	issuer *auth.Issuer
}

func NewAuthHandler(issuer *auth.Issuer) *AuthHandler {
	return &AuthHandler{issuer: issuer}
}

// HandleToken godoc
//
//	@Summary		Issue credentials
//	@Description	Exchange the client id and secret for an access token and a refresh token.
//	@Description
//	@Description	The access token must be sent as `Authorization: Bearer <token>` on every /api request.
//	@Description	Issuing new credentials does not invalidate earlier ones.
//
//	@Tags			Auth
//
//	@Param			request	body		gateway.TokenRequest	true	"client credentials"
//
//	@Success		200		{object}	gateway.TokenResponse
//	@Failure		400		{object}	gateway.ErrorResponse	"Missing credentials"
//	@Failure		401		{object}	gateway.ErrorResponse	"Invalid credentials"
//	@Failure		429		{object}	gateway.ErrorResponse	"Too many login attempts"
//
//	@Router			/auth/token [post]
func (h *AuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var req gateway.TokenRequest
	if err := gateway.DecodeJSONBody(r, &req); err != nil {
		gateway.RespondWithErrorResponse(w, r, err)
		return
	}

	pair, err := h.issuer.Issue(r.Context(), req.AppID, req.AppSecret)
	if err != nil {
		gateway.RespondWithErrorResponse(w, r, err)
		return
	}

	logger.ContextRequestLogger(r.Context()).Info("credentials issued", slog.String("subject", req.AppID))

	gateway.RespondWithJSONPayload(w, http.StatusOK, gateway.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	})
}

// HandleRefresh godoc
//
//	@Summary		Refresh the access token
//	@Description	Exchange a refresh token for a new access token. The refresh token stays valid until it expires.
//
//	@Tags			Auth
//
//	@Param			request	body		gateway.RefreshRequest	true	"refresh token"
//
//	@Success		200		{object}	gateway.TokenResponse
//	@Failure		400		{object}	gateway.ErrorResponse	"Refresh token required"
//	@Failure		403		{object}	gateway.ErrorResponse	"Invalid refresh token"
//
//	@Router			/auth/refresh [post]
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req gateway.RefreshRequest
	if err := gateway.DecodeJSONBody(r, &req); err != nil {
		gateway.RespondWithErrorResponse(w, r, err)
		return
	}

	pair, err := h.issuer.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		gateway.RespondWithErrorResponse(w, r, err)
		return
	}

	gateway.RespondWithJSONPayload(w, http.StatusOK, gateway.TokenResponse{
		AccessToken: pair.AccessToken,
		ExpiresIn:   pair.ExpiresIn,
	})
}

// HandleRevoke godoc
//
//	@Summary		Revoke a token
//	@Description	Adds an access or refresh token to the deny list. Revoked tokens are rejected until they expire.
//
//	@Tags			Auth
//
//	@Param			request	body		gateway.RevokeRequest	true	"token to revoke"
//
//	@Success		200		{object}	gateway.MessageResponse
//	@Failure		400		{object}	gateway.ErrorResponse
//	@Failure		401		{object}	gateway.ErrorResponse	"Authorization token required"
//	@Failure		403		{object}	gateway.ErrorResponse	"Invalid token"
//
//	@Security		BearerAuth
//	@Router			/auth/revoke [post]
func (h *AuthHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	var req gateway.RevokeRequest
	if err := gateway.DecodeJSONBody(r, &req); err != nil {
		gateway.RespondWithErrorResponse(w, r, err)
		return
	}

	claims, err := h.issuer.Revoke(r.Context(), req.Token)
	if err != nil {
		gateway.RespondWithErrorResponse(w, r, err)
		return
	}

	logger.ContextRequestLogger(r.Context()).Info("token revoked",
		slog.String("token_id", claims.TokenID),
		slog.String("token_use", string(claims.Use)),
		slog.String("revoked_by", auth.SubjectFromContext(r.Context())),
	)

	gateway.RespondWithJSONPayload(w, http.StatusOK, gateway.MessageResponse{Message: "Token revoked"})
}
