package wizard

import (
	"log"

	"ai-post-wizard/internal/quota"
)

// Notifier is the presentation collaborator. The orchestrator only decides
// which kind of surface each outcome gets; rendering is external.
type Notifier interface {
	// Info shows a blocking informational dialog (validation failures).
	Info(message string)
	// Toast shows a transient notice (soft failures, fallbacks, successes).
	Toast(message string)
	// Error surfaces a fatal pipeline failure.
	Error(message string)
	// PromptUpgrade routes a quota denial to an upgrade decision.
	PromptUpgrade(feature quota.Feature)
}

// LogNotifier is a Notifier for headless runs and tests.
type LogNotifier struct{}

func (LogNotifier) Info(message string)  { log.Printf("[info] %s", message) }
func (LogNotifier) Toast(message string) { log.Printf("[toast] %s", message) }
func (LogNotifier) Error(message string) { log.Printf("[error] %s", message) }
func (LogNotifier) PromptUpgrade(feature quota.Feature) {
	log.Printf("[upgrade] %s requires a subscription", feature)
}
