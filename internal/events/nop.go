package events

import "context"

// NopChannel drops every publish and never delivers. Used in test mode.
type NopChannel struct{}

func (NopChannel) Publish(context.Context, string, any) error { return nil }

func (NopChannel) Subscribe(ctx context.Context, _, _ string, _ Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (NopChannel) Close() error { return nil }
