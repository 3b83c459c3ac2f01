package handlers

// ballots.go implements the state-changing /api endpoints. Each one blocks until the
// transaction is mined and returns its hash and status.

import (
	"net/http"

	"github.com/information-sharing-networks/evote-gateway/internal/crypto"
	"github.com/information-sharing-networks/evote-gateway/internal/election"
	"github.com/information-sharing-networks/evote-gateway/internal/gateway"
)

// ElectionHandler handles the /api routes
type ElectionHandler struct {
	service *election.Service

	// hasher turns the caller supplied uid into the opaque voter id stored on chain
	hasher *crypto.VoterHasher
}

func NewElectionHandler(service *election.Service, hasher *crypto.VoterHasher) *ElectionHandler {
	return &ElectionHandler{service: service, hasher: hasher}
}

// voterID hashes uid. An empty uid is passed through so the missing field is reported with the others.
func (h *ElectionHandler) voterID(uid string) (crypto.VoterID, error) {
	if uid == "" {
		return "", nil
	}
	return h.hasher.HashVoter(uid)
}

// HandleVote godoc
//
//	@Summary		Cast a vote
//	@Description	Records a vote for a candidate. The uid is hashed with the gateway's secret phrase
//	@Description	before it is sent to the contract; the raw uid never leaves the gateway.
//	@Description
//	@Description	`gender` is required when the configured contract records demographic data.
//
//	@Tags			Elections
//
//	@Param			request	body		gateway.VoteRequest	true	"ballot"
//
//	@Success		200		{object}	gateway.TransactionResponse
//	@Failure		400		{object}	gateway.ErrorResponse	"Missing fields or invalid gender"
//	@Failure		404		{object}	gateway.ErrorResponse	"Unknown candidate or election"
//	@Failure		409		{object}	gateway.ErrorResponse	"Already voted"
//	@Failure		504		{object}	gateway.ErrorResponse	"Node did not respond in time"
//
//	@Security		BearerAuth
//	@Router			/api/vote [post]
func (h *ElectionHandler) HandleVote(w http.ResponseWriter, r *http.Request) {
	var req gateway.VoteRequest
	if err := gateway.DecodeJSONBody(r, &req); err != nil {
		gateway.RespondWithErrorResponse(w, r, err)
		return
	}

	voter, err := h.voterID(req.UID)
	if err != nil {
		gateway.RespondWithErrorResponse(w, r, gateway.WrapInternalError(err, "failed to hash voter id"))
		return
	}

	settlement, err := h.service.CastVote(r.Context(), req.ElectionID.String(), voter, req.Candidate, req.Gender)
	if err != nil {
		gateway.RespondWithErrorResponse(w, r, err)
		return
	}

	gateway.RespondWithJSONPayload(w, http.StatusOK, gateway.NewTransactionResponse("Vote cast successfully", settlement))
}

// HandleRegisterCandidate godoc
//
//	@Summary		Register a candidate
//	@Description	`constituency` (or its alias `demkhong`) is required when the configured contract records it.
//
//	@Tags			Elections
//
//	@Param			request	body		gateway.CandidateRequest	true	"candidate"
//
//	@Success		200		{object}	gateway.TransactionResponse
//	@Failure		400		{object}	gateway.ErrorResponse
//	@Failure		403		{object}	gateway.ErrorResponse	"Gateway key is not the contract owner"
//	@Failure		409		{object}	gateway.ErrorResponse	"Candidate already registered"
//
//	@Security		BearerAuth
//	@Router			/api/register [post]
func (h *ElectionHandler) HandleRegisterCandidate(w http.ResponseWriter, r *http.Request) {
	var req gateway.CandidateRequest
	if err := gateway.DecodeJSONBody(r, &req); err != nil {
		gateway.RespondWithErrorResponse(w, r, err)
		return
	}

	settlement, err := h.service.RegisterCandidate(r.Context(), req.ElectionID.String(), req.Candidate, req.ConstituencyOrAlias())
	if err != nil {
		gateway.RespondWithErrorResponse(w, r, err)
		return
	}

	gateway.RespondWithJSONPayload(w, http.StatusOK, gateway.NewTransactionResponse("Candidate registered", settlement))
}

// HandleRemoveCandidate godoc
//
//	@Summary	Remove a candidate
//	@Tags		Elections
//
//	@Param		request	body		gateway.CandidateRequest	true	"candidate"
//
//	@Success	200		{object}	gateway.TransactionResponse
//	@Failure	400		{object}	gateway.ErrorResponse
//	@Failure	403		{object}	gateway.ErrorResponse	"Gateway key is not the contract owner"
//	@Failure	404		{object}	gateway.ErrorResponse	"Candidate not registered"
//
//	@Security	BearerAuth
//	@Router		/api/remove [delete]
func (h *ElectionHandler) HandleRemoveCandidate(w http.ResponseWriter, r *http.Request) {
	var req gateway.CandidateRequest
	if err := gateway.DecodeJSONBody(r, &req); err != nil {
		gateway.RespondWithErrorResponse(w, r, err)
		return
	}

	settlement, err := h.service.RemoveCandidate(r.Context(), req.ElectionID.String(), req.Candidate)
	if err != nil {
		gateway.RespondWithErrorResponse(w, r, err)
		return
	}

	gateway.RespondWithJSONPayload(w, http.StatusOK, gateway.NewTransactionResponse("Candidate removed", settlement))
}

// HandleEndElection godoc
//
//	@Summary		End an election
//	@Description	Once ended, the election's results are available from /api/public-result/{electionId}.
//	@Tags			Elections
//
//	@Param			request	body		gateway.EndElectionRequest	true	"election"
//
//	@Success		200		{object}	gateway.TransactionResponse
//	@Failure		400		{object}	gateway.ErrorResponse
//	@Failure		403		{object}	gateway.ErrorResponse	"Gateway key is not the contract owner"
//	@Failure		404		{object}	gateway.ErrorResponse	"Unknown election"
//
//	@Security		BearerAuth
//	@Router			/api/end [post]
func (h *ElectionHandler) HandleEndElection(w http.ResponseWriter, r *http.Request) {
	var req gateway.EndElectionRequest
	if err := gateway.DecodeJSONBody(r, &req); err != nil {
		gateway.RespondWithErrorResponse(w, r, err)
		return
	}

	settlement, err := h.service.EndElection(r.Context(), req.ElectionID.String())
	if err != nil {
		gateway.RespondWithErrorResponse(w, r, err)
		return
	}

	gateway.RespondWithJSONPayload(w, http.StatusOK, gateway.NewTransactionResponse("Election ended", settlement))
}
