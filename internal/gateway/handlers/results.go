package handlers

// results.go implements the read-only /api endpoints. These make a single view call and never wait for a block.

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/information-sharing-networks/evote-gateway/internal/gateway"
)

func queryParam(r *http.Request, name string) string {
	return strings.TrimSpace(r.URL.Query().Get(name))
}

// HandleResults godoc
//
//	@Summary		Election results
//	@Description	Returns the tally for every candidate, available while the election is running.
//	@Tags			Results
//
//	@Param			electionId	query		string	true	"election id"
//
//	@Success		200			{object}	gateway.ResultsResponse
//	@Failure		400			{object}	gateway.ErrorResponse
//	@Failure		404			{object}	gateway.ErrorResponse	"Unknown election"
//
//	@Security		BearerAuth
//	@Router			/api/votesByElection [get]
func (h *ElectionHandler) HandleResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.Results(r.Context(), queryParam(r, "electionId"))
	if err != nil {
		gateway.RespondWithErrorResponse(w, r, err)
		return
	}
	gateway.RespondWithJSONPayload(w, http.StatusOK, gateway.NewResultsResponse(results))
}

// HandlePublicResults godoc
//
//	@Summary		Published election results
//	@Description	Returns the tally once the election has been ended. Before that the request is refused with 403.
//	@Tags			Results
//
//	@Param			electionId	path		string	true	"election id"
//
//	@Success		200			{object}	gateway.ResultsResponse
//	@Failure		403			{object}	gateway.ErrorResponse	"Election is not yet ended."
//	@Failure		404			{object}	gateway.ErrorResponse	"Unknown election"
//
//	@Router			/api/public-result/{electionId} [get]
func (h *ElectionHandler) HandlePublicResults(w http.ResponseWriter, r *http.Request) {
	electionID := strings.TrimSpace(chi.URLParam(r, "electionId"))

	results, err := h.service.PublicResults(r.Context(), electionID)
	if err != nil {
		gateway.RespondWithErrorResponse(w, r, err)
		return
	}
	gateway.RespondWithJSONPayload(w, http.StatusOK, gateway.NewResultsResponse(results))
}

// HandleElections godoc
//
//	@Summary	List elections
//	@Tags		Results
//
//	@Success	200	{object}	gateway.ElectionsResponse
//
//	@Security	BearerAuth
//	@Router		/api/elections [get]
func (h *ElectionHandler) HandleElections(w http.ResponseWriter, r *http.Request) {
	elections, err := h.service.Elections(r.Context())
	if err != nil {
		gateway.RespondWithErrorResponse(w, r, err)
		return
	}
	if elections == nil {
		elections = []string{}
	}
	gateway.RespondWithJSONPayload(w, http.StatusOK, gateway.ElectionsResponse{Elections: elections})
}

// HandleVoteCount godoc
//
//	@Summary	Votes for one candidate
//	@Tags		Results
//
//	@Param		electionId	query		string	true	"election id"
//	@Param		candidate	query		string	true	"candidate"
//
//	@Success	200			{object}	gateway.VoteCountResponse
//	@Failure	400			{object}	gateway.ErrorResponse
//	@Failure	404			{object}	gateway.ErrorResponse
//
//	@Security	BearerAuth
//	@Router		/api/votes [get]
func (h *ElectionHandler) HandleVoteCount(w http.ResponseWriter, r *http.Request) {
	electionID, candidate := queryParam(r, "electionId"), queryParam(r, "candidate")

	votes, err := h.service.VoteCount(r.Context(), electionID, candidate)
	if err != nil {
		gateway.RespondWithErrorResponse(w, r, err)
		return
	}
	gateway.RespondWithJSONPayload(w, http.StatusOK, gateway.VoteCountResponse{
		ElectionID: electionID,
		Candidate:  candidate,
		Votes:      votes.String(),
	})
}

// HandleCheckVoted godoc
//
//	@Summary		Check whether a voter has voted
//	@Description	The uid is hashed the same way as for /api/vote.
//	@Tags			Results
//
//	@Param			electionId	query		string	true	"election id"
//	@Param			uid			query		string	true	"voter uid"
//
//	@Success		200			{object}	gateway.VotedResponse
//	@Failure		400			{object}	gateway.ErrorResponse
//
//	@Security		BearerAuth
//	@Router			/api/checkVoted [get]
func (h *ElectionHandler) HandleCheckVoted(w http.ResponseWriter, r *http.Request) {
	voter, err := h.voterID(queryParam(r, "uid"))
	if err != nil {
		gateway.RespondWithErrorResponse(w, r, gateway.WrapInternalError(err, "failed to hash voter id"))
		return
	}

	voted, err := h.service.HasVoted(r.Context(), queryParam(r, "electionId"), voter)
	if err != nil {
		gateway.RespondWithErrorResponse(w, r, err)
		return
	}
	gateway.RespondWithJSONPayload(w, http.StatusOK, gateway.VotedResponse{Voted: voted})
}

// HandleConstituencyResults godoc
//
//	@Summary		Results by constituency
//	@Description	Only available when the configured contract records constituencies (501 otherwise).
//	@Tags			Results
//
//	@Param			electionId	query		string	true	"election id"
//
//	@Success		200			{object}	gateway.ConstituencyResultsResponse
//	@Failure		400			{object}	gateway.ErrorResponse
//	@Failure		501			{object}	gateway.ErrorResponse	"Not supported by the contract"
//
//	@Security		BearerAuth
//	@Router			/api/constituencyResults [get]
func (h *ElectionHandler) HandleConstituencyResults(w http.ResponseWriter, r *http.Request) {
	electionID := queryParam(r, "electionId")

	rows, err := h.service.ConstituencyResults(r.Context(), electionID)
	if err != nil {
		gateway.RespondWithErrorResponse(w, r, err)
		return
	}
	gateway.RespondWithJSONPayload(w, http.StatusOK, gateway.NewConstituencyResultsResponse(electionID, rows))
}
