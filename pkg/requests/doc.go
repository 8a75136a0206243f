// Package requests is a client layer for REST APIs described by Google API
// Discovery documents.
//
// # Overview
//
// A Service is bound either to an explicit base URL or to one method of a
// discovery-described API. Its verb methods build Requests, which are sent
// through a Transport and come back as Responses.
//
//	svc, err := requests.NewFromDiscovery(ctx, requests.DiscoveryDescriptor{
//	  Name:     "chat",
//	  Version:  "v1",
//	  Resource: "spaces.messages",
//	  Method:   "create",
//	}, requests.WithTokenSource(ts))
//
//	req, err := svc.Post(requests.Target{
//	  Vars: map[string]string{"parent": "spaces/AAAA"},
//	}, requests.RequestOptions{
//	  Body: map[string]any{"text": "hello"},
//	})
//
//	resp, err := req.SendWithRetry(ctx)
//
// # URL templates
//
// Discovery paths such as "v1/{+parent}/messages" are normalized with
// ToTemplate into "v1/{parent}/messages" (dots in names become underscores)
// and expanded by Interpolate. Values are inserted verbatim.
//
// # Discovery cache
//
// DiscoveryCache resolves a DiscoveryDescriptor into "baseUrl + path" and
// caches the result for at most six hours in a cachestore.Store. Entries are
// advisory: a miss always refetches the discovery document.
//
// # Authorization
//
// A token is read from the service's TokenSource every time a request is
// materialized and sent as "Authorization: Bearer <token>". Token sources
// implement AccessChecker or StaticToken; OAuth2TokenSource adapts any
// golang.org/x/oauth2 token source, and OAuthService builds one from a
// service account signing key.
//
// # Rate limits
//
// ClassifyRateLimit reports whether a response is a 429 and how long to wait
// according to its x-ratelimit-reset header. SendWithRetry waits that long
// and sends the request exactly once more.
package requests
