package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GautamArjun/rrc-chat-ui/internal/faq"
	"github.com/GautamArjun/rrc-chat-ui/internal/models"
)

type createSessionRequest struct {
	StudyID string `json:"study_id"`
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// chatResult is the /chat payload: the turn descriptor, plus FAQ citations
// when the message was intercepted by the FAQ boundary.
type chatResult struct {
	models.TurnResponse
	FAQ        bool            `json:"faq,omitempty"`
	References []faq.Reference `json:"references,omitempty"`
}

// sessionResult is the GET /sessions/{id} payload.
type sessionResult struct {
	SessionID         string                   `json:"session_id"`
	StudyID           string                   `json:"study_id"`
	Step              models.StepID            `json:"step"`
	Done              bool                     `json:"done"`
	EligibilityResult models.EligibilityStatus `json:"eligibility_result"`
	CreatedAt         time.Time                `json:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at"`
	Response          models.TurnResponse      `json:"response"`
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if strings.TrimSpace(req.StudyID) == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(models.ErrEmptyStudyID.Error()))
		return
	}

	cfg, err := s.loader.Load(req.StudyID)
	if err != nil {
		slog.Error("Server.createSessionHandler: study config load failed", "error", err, "study_id", req.StudyID)
		writeJSONResponse(w, http.StatusNotFound, models.Error("Study not found or misconfigured"))
		return
	}

	sessionID := uuid.NewString()
	_, resp, err := s.engine.Bootstrap(r.Context(), cfg, sessionID)
	if err != nil {
		slog.Error("Server.createSessionHandler: bootstrap failed", "error", err, "session_id", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create session"))
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.Success(resp))
}

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(models.ErrEmptySessionID.Error()))
		return
	}

	sess, err := s.store.LoadSession(req.SessionID)
	if err != nil {
		slog.Error("Server.chatHandler: session load failed", "error", err, "session_id", req.SessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load session"))
		return
	}
	if sess == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error(models.ErrSessionNotFound.Error()))
		return
	}

	cfg, err := s.loader.Load(sess.StudyID)
	if err != nil {
		slog.Error("Server.chatHandler: study config load failed", "error", err, "study_id", sess.StudyID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Study configuration unavailable"))
		return
	}

	// Messages arriving after the conversation ended replay the terminal
	// descriptor instead of failing.
	if sess.State.Done {
		writeJSONResponse(w, http.StatusOK, models.Success(chatResult{TurnResponse: s.engine.Describe(sess.State, cfg)}))
		return
	}

	// FAQ boundary: general questions are answered out of band and the
	// current prompt is re-emitted, with no state change at all.
	if s.faq != nil && faq.IsQuestion(req.Message) {
		answer, faqErr := s.faq.Answer(r.Context(), sess.StudyID, req.Message)
		if faqErr == nil {
			resp := s.engine.Describe(sess.State, cfg)
			resp.Message = strings.TrimSpace(answer.Text + " " + resp.Message)
			writeJSONResponse(w, http.StatusOK, models.Success(chatResult{
				TurnResponse: resp,
				FAQ:          true,
				References:   answer.References,
			}))
			return
		}
		// A broken FAQ path must not block screening; fall through and let
		// the engine treat the message as a regular reply.
		slog.Error("Server.chatHandler: faq answer failed", "error", faqErr, "session_id", req.SessionID)
	}

	newState, resp, err := s.engine.Step(r.Context(), cfg, sess.State, req.Message)
	if err != nil {
		if errors.Is(err, models.ErrSessionDone) {
			writeJSONResponse(w, http.StatusOK, models.Success(chatResult{TurnResponse: s.engine.Describe(sess.State, cfg)}))
			return
		}
		slog.Error("Server.chatHandler: turn failed", "error", err, "session_id", req.SessionID, "step", sess.State.CurrentStep)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process message"))
		return
	}

	if resp.Done && newState.HandoffReason != "" {
		s.notifyHandoff(r, newState)
	}
	writeJSONResponse(w, http.StatusOK, models.Success(chatResult{TurnResponse: resp}))
}

// notifyHandoff alerts the coordinator about a finished session. Alert
// delivery is best effort and never fails the turn.
func (s *Server) notifyHandoff(r *http.Request, st models.AgentState) {
	err := s.notifier.NotifyHandoff(r.Context(), models.Handoff{
		LeadID:    st.LeadID,
		SessionID: st.SessionID,
		Reason:    st.HandoffReason,
	})
	if err != nil {
		slog.Error("Server.notifyHandoff: alert failed", "error", err, "session_id", st.SessionID)
	}
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	sess, err := s.store.LoadSession(sessionID)
	if err != nil {
		slog.Error("Server.getSessionHandler: session load failed", "error", err, "session_id", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load session"))
		return
	}
	if sess == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error(models.ErrSessionNotFound.Error()))
		return
	}
	cfg, err := s.loader.Load(sess.StudyID)
	if err != nil {
		slog.Error("Server.getSessionHandler: study config load failed", "error", err, "study_id", sess.StudyID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Study configuration unavailable"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sessionResult{
		SessionID:         sess.SessionID,
		StudyID:           sess.StudyID,
		Step:              sess.State.CurrentStep,
		Done:              sess.State.Done,
		EligibilityResult: sess.State.EligibilityResult,
		CreatedAt:         sess.CreatedAt,
		UpdatedAt:         sess.UpdatedAt,
		Response:          s.engine.Describe(sess.State, cfg),
	}))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", nil))
}
