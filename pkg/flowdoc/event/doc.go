// Package event carries engine notifications to interested parties: shape
// and page changes, focus changes, command transitions, saves and transport
// errors.
//
// Events are published on a Bus. LocalBus fans each event out to its
// subscribers, each running in its own goroutine, so a slow listener never
// blocks the editor:
//
//	bus := event.NewBus(event.DefaultBusConfig)
//	defer bus.Close()
//
//	bus.Subscribe([]string{event.TypeErrorOccurred}, event.HandlerFunc(
//		func(ctx context.Context, evt event.Event) error {
//			p := evt.Data().(event.ErrorPayload)
//			log.Printf("%s failed: %s", p.Op, p.Message)
//			return nil
//		}))
//
// SubscribeFilter narrows delivery to one document or source, and type
// patterns such as "shape.*" select a whole category.
//
// Components that only publish depend on Emitter, which tests satisfy with a
// Recorder.
package event
