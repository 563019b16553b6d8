package queue

import "strings"

// Priority classes. Lower values are served first.
const (
	PriorityHigh = 1
	PriorityLow  = 2
)

// PriorityClassifier derives a priority class from an owner's email.
type PriorityClassifier interface {
	Classify(email string) int
}

// ClassifierFunc adapts a function to PriorityClassifier.
type ClassifierFunc func(email string) int

func (f ClassifierFunc) Classify(email string) int { return f(email) }

// LocalPartPrefixClassifier puts owners whose email local part starts with
// prefix (case-insensitive) in PriorityLow and everyone else in PriorityHigh.
// A missing email is PriorityLow.
func LocalPartPrefixClassifier(prefix string) ClassifierFunc {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	return func(email string) int {
		email = strings.TrimSpace(email)
		if email == "" {
			return PriorityLow
		}
		local, _, _ := strings.Cut(email, "@")
		if prefix != "" && strings.HasPrefix(strings.ToUpper(local), prefix) {
			return PriorityLow
		}
		return PriorityHigh
	}
}
