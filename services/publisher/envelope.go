package publisher

import (
	"context"
	"encoding/json"

	"sjsage522/immunescraper/internal/model"
	scrapeerrors "sjsage522/immunescraper/pkg/errors"
)

// Envelope is the message published for every refined instance
type Envelope struct {
	RunID    string          `json:"run_id"`
	Kind     model.Kind      `json:"kind"`
	Name     string          `json:"name"`
	Instance *model.Instance `json:"instance"`
}

// PublishDocument publishes one envelope per instance of doc, raids first.
// It stops at the first failure and returns how many were published.
func PublishDocument(ctx context.Context, p Publisher, runID string, doc *model.Document) (int, error) {
	var envelopes []Envelope
	doc.Each(func(inst *model.Instance) {
		envelopes = append(envelopes, Envelope{RunID: runID, Kind: inst.Kind, Name: inst.Name, Instance: inst})
	})

	published := 0
	for _, env := range envelopes {
		data, err := json.Marshal(env)
		if err != nil {
			return published, scrapeerrors.NewPublisher(env.Name, "failed to encode envelope", err)
		}
		if err := p.Publish(ctx, MessageKey, data); err != nil {
			return published, err
		}
		published++
	}
	return published, nil
}
