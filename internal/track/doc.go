// Package track provides storage and pub/sub functionality for job
// observations.
//
// This package is internal to jobpoll and manages the in-memory record
// of the latest observed state per job handle. It implements a
// publish-subscribe pattern for real-time updates to connected clients.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [JobRecord]: Storage representation of a job observation
//
// The store is designed for concurrent access with proper synchronization.
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the system).
//
// Users of the jobpoll library should not need to interact with this
// package directly.
package track
