// Package flowgate exposes an Amazon API Gateway style HTTP front door for
// AWS Step Functions Express workflows. It reproduces the StartSyncExecution
// service integration end to end: mapping templates wrap the incoming request
// body into an execution input envelope, integration responses classify the
// execution outcome through selection patterns, and a least-privilege IAM
// role carries exactly the permission the integration needs.
//
// The statemachine package models the backend workflow handle, including
// imported machines whose names are not resolvable at build time. The mapping
// and vtl packages hold the Velocity templates and the renderer that
// evaluates them; integration and restapi assemble them into a deployable
// configuration plus an OpenAPI document with API Gateway extensions. The
// executor package talks to the real Step Functions API through the AWS SDK
// or runs executions in-process for local development, and gateway serves the
// whole arrangement as an http.Handler.
//
// # Packages
//
//   - statemachine: state machine handles, ARN parsing, and stable
//     deployment names for imported machines.
//   - mapping: request and response mapping templates and selection pattern
//     rules for classifying execution outcomes.
//   - vtl: a renderer for the Velocity subset those templates use.
//   - iampolicy: policy documents and the execution role granting
//     states:StartSyncExecution on a single machine.
//   - integration: the StartSyncExecution integration configuration and its
//     deployment fingerprint.
//   - restapi: the REST API surface, catch-all method wiring, and OpenAPI
//     export.
//   - executor: synchronous execution backends, both AWS-backed and local.
//   - gateway: the HTTP server tying templates, rules, and executor together,
//     with status, docs, and OpenAPI endpoints.
//   - probe: readiness checks for the gateway status endpoint, including an
//     executor heartbeat probe.
//   - jsonutil: tiny helpers around sonic for performance-sensitive encoding
//     tasks.
//
// # Quick Start
//
//	handle := statemachine.NewDirect("OrderFlow", "arn:aws:states:eu-west-1:111122223333:stateMachine:OrderFlow")
//	api, err := restapi.New(handle, restapi.WithName("OrdersApi"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	exec, err := executor.NewAWS(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mux, err := gateway.NewServer(api, exec)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.ListenAndServe(":8080", mux)
//
// The served API answers every method on every path by starting a
// synchronous execution and mapping its outcome onto HTTP status codes the
// way the deployed integration would.
package flowgate
