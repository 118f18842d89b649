// Package broker fans out content snapshots of running completions to
// subscribers. A topic usually carries the updates of one conversation; each
// message holds the full entry list, so a late subscriber only needs the latest
// message to catch up.
//
// Two implementations exist:
//   - Local delivers in process. Subscribers that can not keep up are dropped
//     after a timeout so a slow reader never stalls the run.
//   - NATS publishes JSON on a subject per topic, for watchers in other
//     processes.
//
// Example usage:
//
//	topic := broker.Local().Topic(ctx, "conversation-42")
//	sub, err := topic.Subscribe(ctx, func(ctx context.Context, msg broker.Message) {
//	    render(msg.Entries)
//	})
//	if err != nil {
//	    return err
//	}
//	defer sub.Unsubscribe()
//
//	engine.Run(ctx, msgs, weave.OnContentChange(broker.Publisher(ctx, topic, logger)))
package broker
