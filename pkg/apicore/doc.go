// Package apicore provides the public types and contracts of a resilient
// API client core: configuration, the closed error taxonomy, per-request
// options, the interceptor pipeline, and the collaborator interfaces
// (Transport, CredentialStore, Notifier, Redirector) the core is built on.
//
// # Overview
//
// A concrete client is constructed by the apiclient package, which wires a
// token manager, a request registry, a loading counter, a retry policy and
// an error classifier into an InterceptorChain in front of the Transport.
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/apicore/pkg/apicore"
//	  "github.com/fivetwenty-io/apicore/pkg/apiclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := apiclient.New(ctx, &apicore.Config{APIEndpoint: "https://console.example.com/api"})
//	  if err != nil { log.Fatal(err) }
//	  defer cli.Shutdown(ctx)
//
//	  resp, err := cli.Get(ctx, "/storage", nil, apicore.WithRetry(2, 0))
//	  if apicore.IsValidation(err) { ... }
//	  _ = resp
//	}
//
// # Errors
//
// Every failure surfaces as *Error with a Kind from the closed set
// (validation, auth_expired, auth_invalid, forbidden, not_found, conflict,
// rate_limited, server_error, timeout, network_unreachable, cancelled,
// unknown). Use IsKind, IsRetryable, IsCancelled and AsError to inspect it.
// Cancelled requests are never reported to the Notifier.
//
// # Pipeline
//
// Stages run Before in registration order and After in reverse order.
// Add custom stages through Config.Interceptors; StageFuncs adapts plain
// functions, and LoggingInterceptor, HeaderInterceptor and
// MetricsCollector.Stage are provided.
package apicore
