// Package thehive provides a native Go client for automating TheHive
// incident management and Cortex analysis orchestration.
//
// # Features
//
//   - Alerts, cases and observables, including multipart file uploads
//   - Cortex connector access: list analyzers and responders, launch jobs
//     and responder actions, with the legacy responder endpoint fallback
//   - Direct Cortex access for running analyzers and reading jobs
//   - Job polling with a fixed configurable interval, a wait budget, and
//     transient tolerance of transport failures
//   - Typed errors for precise error handling
//   - Functional options for flexible configuration
//
// # Quick Start
//
//	client, err := thehive.NewClient(
//	    thehive.WithHiveURL("https://hive.example.com"),
//	    thehive.WithHiveAPIKey(apiKey),
//	    thehive.WithCortexURL("https://cortex.example.com:9001"),
//	    thehive.WithCortexAPIKey(cortexKey),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	alert, err := client.Alerts.Create(ctx, &thehive.CreateAlertRequest{
//	    Type:      "external",
//	    Source:    "siem",
//	    SourceRef: "evt-4242",
//	    Title:     "Suspicious login",
//	})
//
// # Polling jobs
//
// A launched analyzer or responder runs asynchronously. Poll converts the
// remote job into a synchronous result bounded by a wait budget:
//
//	job, err := client.Analyzers.Run(ctx, "VirusTotal_GetReport_3_1",
//	    &thehive.RunArtifactRequest{Data: "8.8.8.8", DataType: "ip"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := client.Jobs.Poll(ctx, job.ID, thehive.PollOptions{
//	    Interval: 2 * time.Second,
//	    MaxWait:  90 * time.Second,
//	})
//	if err != nil {
//	    log.Fatal(err) // invalid arguments or cancelled context only
//	}
//	if result.TimedOut {
//	    // decide whether to proceed without analysis results
//	}
//
// Transient transport failures and an exhausted budget are outcomes on the
// returned PollResult, never errors.
//
// # Error Handling
//
// The package uses typed errors that can be inspected with errors.As:
//
//	c, err := client.Cases.Get(ctx, "invalid-id")
//	if err != nil {
//	    var notFound *thehive.NotFoundError
//	    if errors.As(err, &notFound) {
//	        // Handle not found
//	    }
//	}
//
// # Pagination
//
// Searches return iterators that fetch pages lazily:
//
//	for alert, err := range client.Alerts.Search(ctx, filter) {
//	    // ...
//	}
//
//	alerts, err := thehive.Collect(client.Alerts.Search(ctx, filter))
package thehive
