package repo

import "context"

// Classification is the raw structured answer of the text-classification
// model. Nothing in it is trusted until validated.
type Classification struct {
	Command    string   // One of the domain.CommandKind values, or anything else
	Amount     *float64 // Only for send
	Recipient  string   // Only for send, as written by the user
	Confidence float64  // 0..1
}

// ClassifierRepo is the text-classification model interface
type ClassifierRepo interface {
	// Classify maps free text to a command. The caller bounds it with a deadline.
	Classify(ctx context.Context, text string) (*Classification, error)

	// Explain writes a short conversational reply for a message nothing could resolve
	Explain(ctx context.Context, text string) (string, error)
}
