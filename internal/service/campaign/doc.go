// Package campaign implements the scheduling decisions for running campaigns.
//
// The Scheduler decides, per campaign and per tick, whether a post or repost
// is due, picks the content item to publish, moves it to scheduled and hands
// a PublishTask to a Dispatcher. The PublishService executes those tasks and
// records per-channel outcomes. Both depend on repository interfaces defined
// in this package and never import transport or handler code.
//
// Repository implementations live in repository/postgres/.
//
// Rules:
//   - A completed campaign is never dispatched for again.
//   - An item is persisted as scheduled before its task is dispatched.
//   - republish_count never exceeds the campaign's repost cap.
package campaign
