package portal

import "log"

// Notifier receives the single user-facing outcome of each state-changing
// operation.
type Notifier interface {
	Success(message string)
	Error(message string)
}

// LogNotifier writes notifications to the process log. Deployments with a
// real UI plug their own Notifier in.
type LogNotifier struct{}

func (LogNotifier) Success(message string) {
	log.Printf("NOTICE: %s", message)
}

func (LogNotifier) Error(message string) {
	log.Printf("WARN: %s", message)
}
