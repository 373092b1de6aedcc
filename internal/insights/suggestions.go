package insights

import (
	"fmt"
	"math/rand/v2"

	"github.com/go-while/go-moodtracker/internal/models"
)

// Message is one line shown in the insights or suggestions card
type Message struct {
	Icon string `json:"icon"`
	Text string `json:"text"`
	Kind string `json:"kind,omitempty"`
}

var generalSuggestions = []string{
	"Take short breaks for a cup of chai or a brief walk during your workday.",
	"Spend 10 minutes in the morning to practice mindful breathing or yoga.",
	"Connect with family members or close friends at least once a day.",
	"Listen to your favorite ragas or music during stressful periods.",
	"Practice gratitude by noting three positive experiences each day.",
	"Incorporate a short evening walk after dinner for physical and mental well-being.",
	"Set aside time to engage in a creative hobby or activity you enjoy.",
}

var broadenBuildSuggestions = []string{
	"Your positive mood can help you think more creatively. Consider brainstorming solutions to a challenge you've been facing.",
	"Positive emotions build resilience. Take a moment to appreciate how you've overcome challenges in the past.",
	"When feeling positive, we're more open to new experiences. Try something new or reach out to someone you'd like to know better.",
	"Positive emotions can strengthen relationships. Share your positive feelings with others and express appreciation to someone important.",
	"Build on your positive mood by engaging in an activity that brings you joy and helps others, creating an upward spiral of well-being.",
}

// BroadenBuildTheory explains the broaden & build suggestions
const BroadenBuildTheory = "The Broaden & Build theory suggests that positive emotions expand our awareness and help us build long-term personal resources."

// Insights turns patterns into readable observations
func Insights(p *Patterns) []Message {
	if p == nil || !p.Available {
		return []Message{{Icon: "info-circle", Text: "Continue tracking your mood to receive more detailed insights."}}
	}
	var out []Message
	if p.HighestDay != "" {
		out = append(out, Message{Icon: "star", Text: fmt.Sprintf("Your mood tends to be highest on %ss (%s).", p.HighestDay, models.MoodTextFromValue(p.HighestAvg))})
	}
	if p.LowestDay != "" {
		out = append(out, Message{Icon: "cloud", Text: fmt.Sprintf("Your mood tends to be lowest on %ss (%s).", p.LowestDay, models.MoodTextFromValue(p.LowestAvg))})
	}
	if p.TrendDirection != TrendStable {
		out = append(out, Message{Icon: "chart-line", Text: fmt.Sprintf("Your mood has been %s over the past week.", p.TrendDirection)})
	}
	out = append(out, Message{Icon: "random", Text: fmt.Sprintf("Your mood shows %s variability, suggesting %s.", p.VariabilityLevel, variabilityExplanation(p.VariabilityLevel))})
	return out
}

// Suggestions returns advice for the patterns. rnd picks the random general
// and broaden & build lines; a nil rnd uses the global source.
func Suggestions(p *Patterns, opts Options, rnd *rand.Rand) []Message {
	if p == nil || !p.Available {
		return []Message{{Icon: "info-circle", Text: "Continue tracking your mood to receive personalized suggestions."}}
	}
	pick := rand.IntN
	if rnd != nil {
		pick = rnd.IntN
	}

	var out []Message
	if p.LowestDay != "" {
		out = append(out, Message{Icon: "lightbulb", Text: fmt.Sprintf("Plan something special for %ss like a short chai break with colleagues or a call with family.", p.LowestDay)})
	}
	if p.TrendDirection == TrendDeclining {
		out = append(out, Message{Icon: "heartbeat", Text: "Your mood has been declining. Consider practicing 5 minutes of deep breathing or meditation in the morning."})
	}
	if p.VariabilityLevel == VariabilityHigh {
		out = append(out, Message{Icon: "balance-scale", Text: "Your mood varies significantly. Establishing a consistent daily routine might help stabilize your emotional well-being."})
	}
	if BroadenBuild(p, opts) {
		out = append(out, Message{Icon: "lightbulb", Kind: "broaden-build", Text: broadenBuildSuggestions[pick(len(broadenBuildSuggestions))]})
	}
	out = append(out, Message{Icon: "spa", Text: generalSuggestions[pick(len(generalSuggestions))]})
	return out
}

// BroadenBuild reports whether the overall mood is positive enough for broaden & build advice
func BroadenBuild(p *Patterns, opts Options) bool {
	return p != nil && p.Available && p.OverallAverage > opts.BroadenBuildThreshold
}

func variabilityExplanation(level string) string {
	switch level {
	case VariabilityLow:
		return "your emotions remain relatively consistent"
	case VariabilityHigh:
		return "you experience significant emotional ups and downs"
	}
	return "you have a balanced emotional pattern"
}
