package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"

	"autodiag/pkg/domain"
)

// ErrAlreadyStarted is returned when Start is called twice; the vehicle is
// immutable once set.
var ErrAlreadyStarted = errors.New("engine already started")

const notStartedPrompt = "Please provide car details first"

// partsVocabulary is the fixed set of terms scanned for recommendations.
var partsVocabulary = []string{
	"oil", "filter", "brake", "pad", "rotor",
	"battery", "alternator", "spark plug", "ignition",
	"radiator", "thermostat", "belt", "hose", "gasket", "sensor",
}

// Responder generates a free-form assistant reply. Implementations may call
// an external model; the engine treats any failure as a signal to fall back
// to its fixed templates.
type Responder interface {
	Respond(ctx context.Context, vehicle domain.Vehicle, history []domain.Message, userText string) (string, error)
}

// Engine drives one diagnosis conversation. It is not safe for concurrent
// use; callers serialize turns per session.
type Engine struct {
	vehicle   domain.Vehicle
	started   bool
	history   []domain.Message
	complete  bool
	responder Responder
	pick      func(n int) int
}

// Option configures an Engine.
type Option func(*Engine)

// WithResponder wires an external generation backend for default replies.
func WithResponder(r Responder) Option {
	return func(e *Engine) { e.responder = r }
}

// WithRandSource replaces the random index source used to vary default
// replies. Used by tests for determinism.
func WithRandSource(pick func(n int) int) Option {
	return func(e *Engine) { e.pick = pick }
}

// NewEngine returns an engine with no vehicle set.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{pick: rand.Intn}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Restore rebuilds an engine from persisted session state.
func Restore(vehicle domain.Vehicle, history []domain.Message, diagnosisComplete bool, opts ...Option) *Engine {
	e := NewEngine(opts...)
	e.vehicle = vehicle
	e.started = true
	e.history = append(e.history, history...)
	e.complete = diagnosisComplete
	return e
}

// Start sets the vehicle and produces the welcome reply. It may be called
// at most once per engine; the vehicle is immutable afterwards.
func (e *Engine) Start(manufacturer, model string, year int) (domain.Reply, error) {
	if e.started {
		return domain.Reply{}, ErrAlreadyStarted
	}
	e.vehicle = domain.Vehicle{Manufacturer: manufacturer, Model: model, Year: year}
	e.started = true

	msg := fmt.Sprintf(
		"Thank you for selecting your %d %s %s. "+
			"I'm your virtual assistant and can help with information about your vehicle. "+
			"What would you like to know about your car?",
		year, manufacturer, model)
	e.appendAssistant(msg)

	return domain.Reply{Message: msg, CarImage: CarImage(manufacturer, model)}, nil
}

// Vehicle returns the configured vehicle.
func (e *Engine) Vehicle() domain.Vehicle { return e.vehicle }

// DiagnosisComplete reports whether a maintenance recommendation was given.
// The flag is monotonic: once set it never resets.
func (e *Engine) DiagnosisComplete() bool { return e.complete }

// History returns the conversation history accumulated so far.
func (e *Engine) History() []domain.Message { return e.history }

// Reply processes one user turn. Before Start it returns a fixed prompt
// without touching history.
func (e *Engine) Reply(ctx context.Context, userText string) domain.Reply {
	if !e.started {
		return domain.Reply{Message: notStartedPrompt}
	}

	e.history = append(e.history, domain.Message{Role: domain.RoleUser, Content: userText})

	intent := ClassifyIntent(userText)
	reply := e.respond(ctx, intent, userText)

	e.appendAssistant(reply.Message)
	return reply
}

func (e *Engine) respond(ctx context.Context, intent Intent, userText string) domain.Reply {
	v := e.vehicle
	switch intent {
	case IntentShowImage:
		return domain.Reply{
			Message:  fmt.Sprintf("Here's your %d %s %s:", v.Year, v.Manufacturer, v.Model),
			CarImage: CarImage(v.Manufacturer, v.Model),
		}
	case IntentSpecs:
		return domain.Reply{Message: fmt.Sprintf(
			"The %d %s %s comes with the following specifications:\n\n"+
				"• Engine: 2.5L 4-cylinder\n"+
				"• Horsepower: 203 hp\n"+
				"• Torque: 184 lb-ft\n"+
				"• Transmission: 8-speed automatic\n"+
				"• Fuel Economy: 28 city / 39 highway mpg\n"+
				"• Safety: 5-star crash rating",
			v.Year, v.Manufacturer, v.Model)}
	case IntentPrice:
		return domain.Reply{Message: fmt.Sprintf(
			"The %d %s %s has a starting MSRP of $27,995. "+
				"Would you like to know about available trim levels and their pricing?",
			v.Year, v.Manufacturer, v.Model)}
	case IntentColors:
		return domain.Reply{Message: fmt.Sprintf(
			"The %d %s %s is available in the following colors: "+
				"Midnight Black, Platinum White, Celestial Silver, Blueprint Blue, Ruby Flare, and Supersonic Red.",
			v.Year, v.Manufacturer, v.Model)}
	case IntentMaintenance:
		e.complete = true
		return domain.Reply{Message: fmt.Sprintf(
			"For the %d %s %s, we recommend the following maintenance schedule:\n\n"+
				"• Oil change: Every 5,000 miles\n"+
				"• Tire rotation: Every 5,000 miles\n"+
				"• Brake inspection: Every 10,000 miles\n"+
				"• Air filter: Every 15,000 miles\n"+
				"• Major service: Every 30,000 miles",
			v.Year, v.Manufacturer, v.Model)}
	default:
		return domain.Reply{Message: e.defaultMessage(ctx, userText)}
	}
}

func (e *Engine) defaultMessage(ctx context.Context, userText string) string {
	if e.responder != nil {
		msg, err := e.responder.Respond(ctx, e.vehicle, e.history, userText)
		if err == nil && strings.TrimSpace(msg) != "" {
			return msg
		}
		if err != nil {
			slog.Warn("responder failed, using template reply", "err", err)
		}
	}

	v := e.vehicle
	car := fmt.Sprintf("%d %s %s", v.Year, v.Manufacturer, v.Model)
	templates := []string{
		fmt.Sprintf("I'm here to help with any questions about your %s. What would you like to know?", car),
		fmt.Sprintf("The %s is an excellent choice! How can I assist you with it today?", car),
		fmt.Sprintf("I can provide information about specifications, features, pricing, and maintenance for your %s. What are you interested in?", car),
		fmt.Sprintf("Thank you for your message. Is there anything specific about the %s you'd like to learn more about?", car),
	}
	return templates[e.pick(len(templates))]
}

// RecommendationKeywords scans assistant history for parts vocabulary terms.
// It returns nothing until the diagnosis is complete; afterwards each term
// appears at most once, in first-occurrence order.
func (e *Engine) RecommendationKeywords() []string {
	if !e.complete {
		return nil
	}
	seen := make(map[string]bool, len(partsVocabulary))
	var keywords []string
	for _, msg := range e.history {
		if msg.Role != domain.RoleAssistant {
			continue
		}
		content := strings.ToLower(msg.Content)
		for _, part := range partsVocabulary {
			if !seen[part] && strings.Contains(content, part) {
				seen[part] = true
				keywords = append(keywords, part)
			}
		}
	}
	return keywords
}

func (e *Engine) appendAssistant(content string) {
	e.history = append(e.history, domain.Message{Role: domain.RoleAssistant, Content: content})
}
