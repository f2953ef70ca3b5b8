package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/GautamArjun/rrc-chat-ui/internal/config"
	"github.com/GautamArjun/rrc-chat-ui/internal/faq"
	"github.com/GautamArjun/rrc-chat-ui/internal/models"
	"github.com/GautamArjun/rrc-chat-ui/internal/store"
)

const testStudyConfig = `{
  "study": {"id": "zyn", "name": "Test Study"},
  "messaging": {
    "greeting": "Hi!",
    "consent_prompt": "Would you like to continue?",
    "consent_reprompt": "Please reply yes or no.",
    "consent_declined": "No problem, take care.",
    "identity_prompt": "Please share your email and phone.",
    "identity_reprompt": "Please provide a valid email and phone.",
    "lookup_ack": "Thanks, checking our records.",
    "pin_prompt": "Please enter your PIN.",
    "pin_retry": "That PIN doesn't match.",
    "pin_failure": "We couldn't verify you.",
    "profile_prompt": "Please fill in your %s.",
    "scheduling_prompt": "Which days and times work?",
    "qualified": "You're all set!",
    "disqualification": "Thanks, not a fit right now."
  },
  "pre_screen": {"questions": [
    {"id": "smokes", "question": "Do you smoke?", "type": "yes_no", "disqualify_on": "no"}
  ]},
  "eligibility": {"rules": [
    {"field": "smokes", "operator": "eq", "value": "yes", "effect": "include_required", "reason": "non_smoker"}
  ]},
  "limits": {"max_pin_attempts": 3}
}`

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// recordingNotifier captures handoff alerts for assertion.
type recordingNotifier struct {
	handoffs []models.Handoff
}

func (n *recordingNotifier) NotifyHandoff(ctx context.Context, h models.Handoff) error {
	n.handoffs = append(n.handoffs, h)
	return nil
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *store.InMemoryStore) {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "zyn"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "zyn", "config.json"), []byte(testStudyConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	st := store.NewInMemoryStore()
	return NewServer(st, config.NewLoader(dir), opts...), st
}

func doJSON(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s returned unparseable body %q: %v", method, path, rec.Body.String(), err)
	}
	return rec, env
}

func createSession(t *testing.T, s *Server) models.TurnResponse {
	t.Helper()
	rec, env := doJSON(t, s, http.MethodPost, "/session", `{"study_id":"zyn"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp models.TurnResponse
	if err := json.Unmarshal(env.Result, &resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func chat(t *testing.T, s *Server, sessionID, message string) (int, envelope) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"session_id": sessionID, "message": message})
	rec, env := doJSON(t, s, http.MethodPost, "/chat", string(body))
	return rec.Code, env
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec, env := doJSON(t, s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || env.Status != "ok" || env.Message != "ok" {
		t.Errorf("health = %d %+v", rec.Code, env)
	}
}

func TestCreateSession(t *testing.T) {
	s, st := newTestServer(t)
	resp := createSession(t, s)

	if resp.SessionID == "" {
		t.Fatal("response carries no session id")
	}
	if !strings.Contains(resp.Message, "Hi!") || !strings.Contains(resp.Message, "Would you like to continue?") {
		t.Errorf("greeting turn message = %q", resp.Message)
	}
	sess, err := st.LoadSession(resp.SessionID)
	if err != nil || sess == nil {
		t.Fatalf("session was not persisted: (%v, %v)", sess, err)
	}
}

func TestCreateSessionRejectsBadRequests(t *testing.T) {
	s, _ := newTestServer(t)

	rec, env := doJSON(t, s, http.MethodPost, "/session", "{not json")
	if rec.Code != http.StatusBadRequest || env.Status != "error" {
		t.Errorf("invalid JSON: %d %+v", rec.Code, env)
	}
	rec, _ = doJSON(t, s, http.MethodPost, "/session", `{"study_id":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty study id: %d", rec.Code)
	}
	rec, _ = doJSON(t, s, http.MethodPost, "/session", `{"study_id":"unknown"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown study: %d", rec.Code)
	}
}

func TestChatAdvancesConversation(t *testing.T) {
	s, _ := newTestServer(t)
	created := createSession(t, s)

	code, env := chat(t, s, created.SessionID, "yes")
	if code != http.StatusOK || env.Status != "ok" {
		t.Fatalf("chat = %d %+v", code, env)
	}
	var resp chatResult
	if err := json.Unmarshal(env.Result, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Step != models.StepIdentityCollection || resp.Type != models.ResponseTypeForm {
		t.Errorf("consent yes should land on the identity form, got step %q type %q", resp.Step, resp.Type)
	}
}

func TestChatDeclineEndsAndReplays(t *testing.T) {
	s, _ := newTestServer(t)
	created := createSession(t, s)

	_, env := chat(t, s, created.SessionID, "no")
	var resp chatResult
	if err := json.Unmarshal(env.Result, &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Done || resp.Type != models.ResponseTypeEnd {
		t.Fatalf("decline should end the session, got %+v", resp)
	}

	// Messages after the end replay the terminal descriptor.
	code, env := chat(t, s, created.SessionID, "hello again")
	if code != http.StatusOK {
		t.Fatalf("post-end chat = %d", code)
	}
	if err := json.Unmarshal(env.Result, &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Done || !strings.Contains(resp.Message, "No problem, take care.") {
		t.Errorf("post-end replay = %+v", resp)
	}
}

func TestChatRejectsBadRequests(t *testing.T) {
	s, _ := newTestServer(t)

	rec, _ := doJSON(t, s, http.MethodPost, "/chat", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON: %d", rec.Code)
	}
	rec, _ = doJSON(t, s, http.MethodPost, "/chat", `{"session_id":"","message":"hi"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty session id: %d", rec.Code)
	}
	code, _ := chat(t, s, "no-such-session", "hi")
	if code != http.StatusNotFound {
		t.Errorf("unknown session: %d", code)
	}
}

// stubResponder is a canned FAQ responder.
type stubResponder struct {
	answer faq.Answer
	err    error
	asked  []string
}

func (r *stubResponder) Answer(ctx context.Context, studyID, question string) (faq.Answer, error) {
	r.asked = append(r.asked, question)
	return r.answer, r.err
}

func TestChatFAQIntercept(t *testing.T) {
	responder := &stubResponder{answer: faq.Answer{
		Text:       "The study pays up to $500.",
		References: []faq.Reference{{Source: "faq.md", ChunkIndex: 1}},
	}}
	s, st := newTestServer(t, WithFAQResponder(responder))
	created := createSession(t, s)

	_, env := chat(t, s, created.SessionID, "How much does the study pay?")
	var resp chatResult
	if err := json.Unmarshal(env.Result, &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.FAQ || len(resp.References) != 1 {
		t.Fatalf("question should be intercepted, got %+v", resp)
	}
	if !strings.Contains(resp.Message, "$500") || !strings.Contains(resp.Message, "Would you like to continue?") {
		t.Errorf("intercepted turn should answer and re-ask, got %q", resp.Message)
	}
	if len(responder.asked) != 1 {
		t.Errorf("responder asked %d times", len(responder.asked))
	}

	// The screening state did not move.
	sess, _ := st.LoadSession(created.SessionID)
	if sess.State.ConsentGiven || sess.State.Done {
		t.Errorf("FAQ turn must not advance the conversation: %+v", sess.State)
	}

	// A plain reply still reaches the engine. Decode into a fresh value so
	// fields omitted from this response cannot leak in from the last one.
	_, env = chat(t, s, created.SessionID, "yes")
	var followUp chatResult
	if err := json.Unmarshal(env.Result, &followUp); err != nil {
		t.Fatal(err)
	}
	if followUp.FAQ || len(followUp.References) != 0 || followUp.Step != models.StepIdentityCollection {
		t.Errorf("plain reply mishandled: %+v", followUp)
	}
}

func TestChatFAQFailureFallsThroughToEngine(t *testing.T) {
	responder := &stubResponder{err: fmt.Errorf("embedding service down")}
	s, _ := newTestServer(t, WithFAQResponder(responder))
	created := createSession(t, s)

	code, env := chat(t, s, created.SessionID, "What happens during the visits?")
	if code != http.StatusOK {
		t.Fatalf("chat = %d", code)
	}
	var resp chatResult
	if err := json.Unmarshal(env.Result, &resp); err != nil {
		t.Fatal(err)
	}
	// The message is treated as a consent reply; it is ambiguous, so the
	// consent prompt is re-asked.
	if resp.FAQ || !strings.Contains(resp.Message, "Please reply yes or no.") {
		t.Errorf("broken FAQ path should fall through, got %+v", resp)
	}
}

func TestChatNotifiesOnHandoff(t *testing.T) {
	notifier := &recordingNotifier{}
	s, st := newTestServer(t, WithNotifier(notifier))

	// Session paused on the PIN prompt with one attempt left.
	state := models.NewAgentState("sess-pin", "zyn")
	state.ConsentGiven = true
	state.Identity = models.Identity{Email: "jo@example.com", Phone: "9195551234"}
	state.LeadID = "lead-1"
	state.LeadFound = true
	state.LeadHasPIN = true
	state.LeadPIN = "4321"
	state.PinAttempts = 2
	state.CurrentStep = models.StepPinAuth
	if err := st.SaveSession(models.Session{SessionID: "sess-pin", StudyID: "zyn", State: state}); err != nil {
		t.Fatal(err)
	}

	_, env := chat(t, s, "sess-pin", "0000")
	var resp chatResult
	if err := json.Unmarshal(env.Result, &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Done {
		t.Fatalf("exhausted PIN should end the session, got %+v", resp)
	}
	if len(notifier.handoffs) != 1 {
		t.Fatalf("notifier called %d times, want 1", len(notifier.handoffs))
	}
	h := notifier.handoffs[0]
	if h.SessionID != "sess-pin" || h.LeadID != "lead-1" || h.Reason != models.ReasonPinExhausted {
		t.Errorf("handoff alert = %+v", h)
	}
}

func TestGetSession(t *testing.T) {
	s, _ := newTestServer(t)
	created := createSession(t, s)

	rec, env := doJSON(t, s, http.MethodGet, "/sessions/"+created.SessionID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get session = %d", rec.Code)
	}
	var result sessionResult
	if err := json.Unmarshal(env.Result, &result); err != nil {
		t.Fatal(err)
	}
	if result.SessionID != created.SessionID || result.StudyID != "zyn" || result.Done {
		t.Errorf("session read = %+v", result)
	}
	if result.Response.Message == "" {
		t.Error("session read should re-emit the current prompt")
	}

	rec, _ = doJSON(t, s, http.MethodGet, "/sessions/no-such-session", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session = %d", rec.Code)
	}
}
