package engine

import (
	"errors"
	"testing"

	"github.com/GautamArjun/rrc-chat-ui/internal/models"
)

func TestRouteIntakePath(t *testing.T) {
	cfg := testConfig()
	st := models.NewAgentState("s1", "zyn")

	next, err := Route(st, cfg)
	if err != nil || next != models.StepConsent {
		t.Fatalf("greeting should route to consent, got %q err %v", next, err)
	}

	st.CurrentStep = models.StepConsent
	if _, err := Route(st, cfg); err == nil {
		t.Error("consent without a recorded decision must not route")
	}
	st.ConsentGiven = true
	next, err = Route(st, cfg)
	if err != nil || next != models.StepIdentityCollection {
		t.Fatalf("consent should route to identity collection, got %q err %v", next, err)
	}

	st.CurrentStep = models.StepIdentityCollection
	if _, err := Route(st, cfg); err == nil {
		t.Error("identity collection without identity must not route")
	}
	st.Identity = models.Identity{Email: "a@b.com", Phone: "9195551234"}
	next, err = Route(st, cfg)
	if err != nil || next != models.StepLeadLookup {
		t.Fatalf("identity collection should route to lead lookup, got %q err %v", next, err)
	}
}

func TestRouteLeadLookupBranches(t *testing.T) {
	cfg := testConfig()
	st := models.NewAgentState("s1", "zyn")
	st.CurrentStep = models.StepLeadLookup

	next, _ := Route(st, cfg)
	if next != models.StepCreateLead {
		t.Errorf("lookup miss should route to create_lead, got %q", next)
	}

	st.LeadFound = true
	st.LeadHasPIN = true
	next, _ = Route(st, cfg)
	if next != models.StepPinAuth {
		t.Errorf("returning lead with PIN should route to pin_auth, got %q", next)
	}

	st.LeadHasPIN = false
	next, _ = Route(st, cfg)
	if next != models.StepProfileCollection {
		t.Errorf("returning lead without PIN should route to profile_collection, got %q", next)
	}
}

func TestRoutePinAuthBranches(t *testing.T) {
	cfg := testConfig()
	st := models.NewAgentState("s1", "zyn")
	st.CurrentStep = models.StepPinAuth

	if _, err := Route(st, cfg); err == nil {
		t.Error("unresolved pin verification must not route")
	}

	st.PinVerified = true
	next, _ := Route(st, cfg)
	if next != models.StepProfileCollection {
		t.Errorf("verified pin should route to profile_collection, got %q", next)
	}

	st.PinVerified = false
	st.HandoffReason = models.ReasonPinExhausted
	next, _ = Route(st, cfg)
	if next != models.StepHandoff {
		t.Errorf("exhausted pin should route to handoff, got %q", next)
	}
}

func TestRouteCollectionCursors(t *testing.T) {
	cfg := testConfig()
	st := models.NewAgentState("s1", "zyn")

	st.CurrentStep = models.StepProfileCollection
	next, _ := Route(st, cfg)
	if next != models.StepProfileCollection {
		t.Errorf("groups remaining should stay in profile_collection, got %q", next)
	}
	st.GroupCursor = len(cfg.FieldGroups)
	next, _ = Route(st, cfg)
	if next != models.StepPrescreen {
		t.Errorf("groups exhausted should route to prescreen, got %q", next)
	}

	st.CurrentStep = models.StepPrescreen
	next, _ = Route(st, cfg)
	if next != models.StepPrescreen {
		t.Errorf("questions remaining should stay in prescreen, got %q", next)
	}
	st.PrescreenCursor = len(cfg.PreScreen.Questions)
	next, _ = Route(st, cfg)
	if next != models.StepEligibility {
		t.Errorf("questions exhausted should route to eligibility, got %q", next)
	}

	st.PrescreenDisqualified = true
	st.PrescreenCursor = 0
	next, _ = Route(st, cfg)
	if next != models.StepHandoff {
		t.Errorf("disqualified prescreen should route to handoff, got %q", next)
	}
}

func TestRouteEligibilityBranches(t *testing.T) {
	cfg := testConfig()
	st := models.NewAgentState("s1", "zyn")
	st.CurrentStep = models.StepEligibility

	if _, err := Route(st, cfg); err == nil {
		t.Error("pending eligibility must not route")
	}

	st.EligibilityResult = models.EligibilityEligible
	next, _ := Route(st, cfg)
	if next != models.StepScheduling {
		t.Errorf("eligible should route to scheduling, got %q", next)
	}

	st.EligibilityResult = models.EligibilityIneligible
	next, _ = Route(st, cfg)
	if next != models.StepHandoff {
		t.Errorf("ineligible should route to handoff, got %q", next)
	}
}

func TestRouteUndeterminedRevisit(t *testing.T) {
	cfg := testConfig()
	st := models.NewAgentState("s1", "zyn")
	st.CurrentStep = models.StepEligibility
	st.EligibilityResult = models.EligibilityUndetermined

	// date_of_birth lives in a profile group.
	st.MissingFields = []string{"date_of_birth"}
	next, err := Route(st, cfg)
	if err != nil || next != models.StepProfileCollection {
		t.Fatalf("profile-owned missing field should revisit profile_collection, got %q err %v", next, err)
	}

	// cigarettes_per_day is mapped from a prescreen question.
	st.MissingFields = []string{"cigarettes_per_day"}
	next, err = Route(st, cfg)
	if err != nil || next != models.StepPrescreen {
		t.Fatalf("prescreen-owned missing field should revisit prescreen, got %q err %v", next, err)
	}

	// Both missing: declared revisit order decides.
	st.MissingFields = []string{"cigarettes_per_day", "date_of_birth"}
	next, err = Route(st, cfg)
	if err != nil || next != models.StepProfileCollection {
		t.Fatalf("revisit order should prefer profile_collection, got %q err %v", next, err)
	}

	// A field no stage can collect is a routing failure, not a loop.
	st.MissingFields = []string{"nonexistent"}
	if _, err := Route(st, cfg); err == nil {
		t.Error("uncollectable missing field must fail routing")
	}
	var rerr *RoutingError
	_, err = Route(st, cfg)
	if !errors.As(err, &rerr) {
		t.Errorf("expected RoutingError, got %T", err)
	}
}

func TestRouteTerminalAndCorruptStates(t *testing.T) {
	cfg := testConfig()
	st := models.NewAgentState("s1", "zyn")

	st.CurrentStep = models.StepScheduling
	if _, err := Route(st, cfg); err == nil {
		t.Error("scheduling without a recorded preference must not route")
	}
	st.HandoffReason = models.ReasonQualified
	next, _ := Route(st, cfg)
	if next != models.StepHandoff {
		t.Errorf("recorded preference should route to handoff, got %q", next)
	}

	st.CurrentStep = models.StepHandoff
	st.HandoffReason = ""
	if _, err := Route(st, cfg); err == nil {
		t.Error("handoff is terminal and must not route")
	}

	st.CurrentStep = "bogus"
	if _, err := Route(st, cfg); err == nil {
		t.Error("undeclared step must fail routing")
	}

	st = models.NewAgentState("s1", "zyn")
	st.Done = true
	if _, err := Route(st, cfg); err == nil {
		t.Error("done session must not route")
	}
}

func TestCatalogDeclaresEveryRoutableStep(t *testing.T) {
	c := NewCatalog()
	steps := []models.StepID{
		models.StepGreeting, models.StepConsent, models.StepIdentityCollection,
		models.StepLeadLookup, models.StepCreateLead, models.StepPinAuth,
		models.StepProfileCollection, models.StepPrescreen, models.StepEligibility,
		models.StepScheduling, models.StepHandoff,
	}
	for _, s := range steps {
		if !c.Declared(s) {
			t.Errorf("catalog missing node for step %q", s)
		}
	}
	if c.Declared("bogus") {
		t.Error("catalog should not declare unknown steps")
	}
}
