// Package jobpoll is a client for asynchronous job services: submit a
// job over HTTP, poll its status until it reaches a terminal state, and
// fetch its per-item results.
//
// The package is designed as an SDK-first library. A [Client] holds the
// connection settings for one job service and exposes the full
// submit/status/result contract; [Client.Wait] and [Client.Run] drive
// the polling loop with a bounded wall-clock budget. Independent
// item-level operations run through a [Gate], which bounds how many are
// in flight at once and collects every outcome as data, so one failing
// item never aborts its siblings.
//
// Basic usage:
//
//	client, err := jobpoll.New("https://jobs.example.com",
//	    jobpoll.WithTimeout(10*time.Second),
//	    jobpoll.WithPollInterval(2*time.Second),
//	    jobpoll.WithMaxWait(5*time.Minute),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	result, err := client.Run(ctx, jobpoll.JobRequest{
//	    Mode:    "extract",
//	    Payload: map[string]any{"companies": []string{"Acme Corp"}},
//	})
//
// A finished wait distinguishes four outcomes: a completed job with its
// [BatchOutcome], a job that failed or was cancelled remotely (returned
// as data, not as an error), a [*TimeoutError] when the wait budget ran
// out, and the context's own error when the caller cancelled.
//
// Parameter sweeps can be declared once and expanded into sibling jobs
// with [NewJobMatrix], then submitted concurrently through a [Gate].
// Many outstanding handles can be followed together with a [Watcher].
//
// For running jobs from YAML files instead of code, see the config
// package and the jobpoll CLI under cmd/jobpoll.
package jobpoll
