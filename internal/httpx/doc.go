// Package httpx provides the HTTP mechanics behind the jobpoll client.
//
// This package is internal to jobpoll and handles the raw JSON
// request/response exchanges with the job service. It knows nothing
// about job semantics: submit, status, and result are all just calls
// through [Client.Do].
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with pooling, timeout, and size limits
//   - [Response]: structured result of a single request
//
// Users of the jobpoll library should not need to interact with this
// package directly. Configuration is done through the main jobpoll
// package.
package httpx
