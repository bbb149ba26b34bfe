package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"autodiag/pkg/domain"
)

func startedEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e := NewEngine(opts...)
	if _, err := e.Start("Toyota", "Corolla", 2023); err != nil {
		t.Fatalf("start engine: %v", err)
	}
	return e
}

func TestStartWelcome(t *testing.T) {
	e := NewEngine()
	reply, err := e.Start("Toyota", "Corolla", 2023)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !strings.Contains(reply.Message, "2023 Toyota Corolla") {
		t.Fatalf("welcome message missing vehicle: %q", reply.Message)
	}
	if reply.CarImage != "/static/images/cars/toyota-corolla.jpg" {
		t.Fatalf("car image = %q", reply.CarImage)
	}
	if len(e.History()) != 1 || e.History()[0].Role != domain.RoleAssistant {
		t.Fatalf("history after start = %+v", e.History())
	}
}

func TestStartRejectsReinitialization(t *testing.T) {
	e := startedEngine(t)
	if _, err := e.Start("Honda", "Civic", 2020); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second start err = %v, want ErrAlreadyStarted", err)
	}
	if e.Vehicle().Manufacturer != "Toyota" {
		t.Fatalf("vehicle overwritten: %+v", e.Vehicle())
	}
}

func TestReplyBeforeStart(t *testing.T) {
	e := NewEngine()
	reply := e.Reply(context.Background(), "hello")
	if reply.Message != "Please provide car details first" {
		t.Fatalf("reply = %q", reply.Message)
	}
	if len(e.History()) != 0 {
		t.Fatalf("history mutated before start: %+v", e.History())
	}
}

func TestClassifyIntentPrecedence(t *testing.T) {
	cases := []struct {
		text string
		want Intent
	}{
		{"Can you show me a PICTURE?", IntentShowImage},
		{"what does it look like", IntentShowImage},
		// Show-image outranks price even when both match.
		{"show car price", IntentShowImage},
		{"What are the specs?", IntentSpecs},
		{"list the features", IntentSpecs},
		{"How much does it cost?", IntentPrice},
		{"what colors is it available in", IntentColors},
		{"What maintenance is recommended?", IntentMaintenance},
		{"when should I service it", IntentMaintenance},
		{"tell me something", IntentDefault},
		{"", IntentDefault},
	}
	for _, tc := range cases {
		if got := ClassifyIntent(tc.text); got != tc.want {
			t.Errorf("ClassifyIntent(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestMaintenanceSetsDiagnosisComplete(t *testing.T) {
	e := startedEngine(t)
	if e.DiagnosisComplete() {
		t.Fatalf("flag set before any turn")
	}
	reply := e.Reply(context.Background(), "What maintenance is recommended?")
	if !strings.Contains(reply.Message, "Oil change: Every 5,000 miles") {
		t.Fatalf("maintenance reply = %q", reply.Message)
	}
	if !e.DiagnosisComplete() {
		t.Fatalf("flag not set after maintenance turn")
	}
	// Monotonic: later turns never reset it.
	e.Reply(context.Background(), "thanks")
	e.Reply(context.Background(), "what colors are there")
	if !e.DiagnosisComplete() {
		t.Fatalf("flag reset by later turn")
	}
}

func TestDefaultReplyReferencesVehicle(t *testing.T) {
	for pick := 0; pick < 4; pick++ {
		e := startedEngine(t, WithRandSource(func(int) int { return pick }))
		reply := e.Reply(context.Background(), "hmm")
		if !strings.Contains(reply.Message, "2023 Toyota Corolla") {
			t.Errorf("default template %d missing vehicle: %q", pick, reply.Message)
		}
		if reply.CarImage != "" {
			t.Errorf("default template %d carries image %q", pick, reply.CarImage)
		}
	}
}

func TestShowImageReply(t *testing.T) {
	e := startedEngine(t)
	reply := e.Reply(context.Background(), "show car")
	if reply.Message != "Here's your 2023 Toyota Corolla:" {
		t.Fatalf("show image reply = %q", reply.Message)
	}
	if reply.CarImage != "/static/images/cars/toyota-corolla.jpg" {
		t.Fatalf("show image path = %q", reply.CarImage)
	}
}

func TestRecommendationKeywordsGatedByFlag(t *testing.T) {
	e := startedEngine(t)
	if kws := e.RecommendationKeywords(); len(kws) != 0 {
		t.Fatalf("keywords before diagnosis = %v", kws)
	}
	e.Reply(context.Background(), "what maintenance do I need")
	kws := e.RecommendationKeywords()
	if len(kws) == 0 {
		t.Fatalf("no keywords after maintenance reply")
	}
	vocab := make(map[string]bool, len(partsVocabulary))
	for _, p := range partsVocabulary {
		vocab[p] = true
	}
	seen := make(map[string]bool)
	for _, kw := range kws {
		if !vocab[kw] {
			t.Errorf("keyword %q not in vocabulary", kw)
		}
		if seen[kw] {
			t.Errorf("duplicate keyword %q", kw)
		}
		seen[kw] = true
	}
	// The maintenance template mentions oil, brake, and filter.
	for _, want := range []string{"oil", "brake", "filter"} {
		if !seen[want] {
			t.Errorf("expected keyword %q in %v", want, kws)
		}
	}
}

type failingResponder struct{}

func (failingResponder) Respond(context.Context, domain.Vehicle, []domain.Message, string) (string, error) {
	return "", errors.New("backend unavailable")
}

func TestResponderFailureFallsBackToTemplates(t *testing.T) {
	e := startedEngine(t,
		WithResponder(failingResponder{}),
		WithRandSource(func(int) int { return 0 }))
	reply := e.Reply(context.Background(), "anything else")
	if !strings.Contains(reply.Message, "2023 Toyota Corolla") {
		t.Fatalf("fallback reply missing vehicle: %q", reply.Message)
	}
}

func TestRestorePreservesState(t *testing.T) {
	e := startedEngine(t)
	e.Reply(context.Background(), "maintenance please")
	restored := Restore(e.Vehicle(), e.History(), e.DiagnosisComplete())
	if !restored.DiagnosisComplete() {
		t.Fatalf("restored engine lost diagnosis flag")
	}
	if got, want := len(restored.History()), len(e.History()); got != want {
		t.Fatalf("restored history length = %d, want %d", got, want)
	}
	if len(restored.RecommendationKeywords()) == 0 {
		t.Fatalf("restored engine lost recommendation keywords")
	}
}

func TestCarImageLookup(t *testing.T) {
	if got := CarImage("Honda", "CR-V"); got != "/static/images/cars/honda-crv.jpg" {
		t.Fatalf("CarImage(Honda, CR-V) = %q", got)
	}
	// Idempotent.
	first := CarImage("Toyota", "Camry")
	if second := CarImage("Toyota", "Camry"); second != first {
		t.Fatalf("lookup not idempotent: %q vs %q", first, second)
	}
	// Unknown pair gets a deterministic placeholder naming both arguments.
	got := CarImage("Ford", "F-150")
	want := "/placeholder.svg?make=Ford&model=F-150"
	if got != want {
		t.Fatalf("placeholder = %q, want %q", got, want)
	}
}
