// Package notify delivers alerts raised by the checker.
//
// A [Gate] debounces alerts per endpoint and hands the survivors to a
// [Sender]. Senders exist for Discord-style webhooks ([WebhookSender]),
// gocloud.dev pub/sub topics ([TopicSender]) and fan-out ([MultiSender]).
package notify
