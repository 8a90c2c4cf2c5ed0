// Package client is the Go SDK for the extperm audit API.
//
// It wraps the HTTP endpoints served by extperm-server so that other Go
// programs can pull audit reports, score ad-hoc extensions and look up
// permission explanations without hand-writing requests.
//
// # Pulling a report
//
//	c, err := client.New("http://localhost:8080")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report, err := c.Report(ctx, "high")
//
// An inventory host that cannot enumerate extensions is reported as
// ErrInventoryUnavailable. The returned report is still non-nil in that case
// and carries the server's explanation in its Error field.
//
// # Scoring an extension that is not installed
//
//	ext, err := c.Evaluate(ctx, client.EvaluateRequest{
//	    Name:            "Grammar Helper",
//	    Permissions:     []string{"scripting", "storage"},
//	    HostPermissions: []string{"<all_urls>"},
//	})
//	fmt.Println(ext.Score, ext.Tier)
//
// # Explaining a permission
//
// Explanations depend only on the server's weight table, so they can be cached
// with WithCacheTTL:
//
//	c, _ := client.New(base, client.WithCacheTTL(10*time.Minute))
//	e, err := c.Explain(ctx, "webRequest")
package client
