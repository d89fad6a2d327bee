// Package apiclient builds apicore.Client values.
//
// Quick start
//
//	ctx := context.Background()
//
//	cli, err := apiclient.New(ctx, &apicore.Config{
//	  APIEndpoint: "https://api.example.com",
//	  RetryCount:  2,
//	}, apiclient.WithFileStore(""))
//	if err != nil { log.Fatal(err) }
//	defer cli.Shutdown(ctx)
//
//	if !cli.IsAuthenticated() {
//	  if _, err := cli.Login(ctx, "alice", "secret"); err != nil { log.Fatal(err) }
//	}
//
//	resp, err := cli.Get(ctx, "/storage", url.Values{"page": {"1"}})
//	if err != nil {
//	  if apicore.IsValidation(err) { ... }
//	  log.Fatal(err)
//	}
//
//	var pools []Pool
//	_ = resp.Decode(&pools)
//
// Endpoints without a scheme are assumed to be https.
package apiclient
