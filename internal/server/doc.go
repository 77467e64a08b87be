// Package server is the HTTP surface of quotefeed.
//
// Routes:
//
//	GET  /health              poller, session and build status
//	GET  /u/login             redirect to the provider's consent page
//	GET  /u/callback          exchange the authorization code, set the cookie
//	GET  /u/user              account list for the authenticated user
//	POST /u/refresh_token     force a token refresh and re-issue the cookie
//	GET  /u/quotes?symbols=   one-shot quote for a comma separated symbol list
//	GET  /u/quotes/stream     websocket watch-list stream
//
// Every /u route authenticates from the credential cookie. Failures are
// rendered as {"error":{"<Kind>":"<message>"}} with the kind's status code.
package server
