// Package gateway exposes the conversation pipeline over HTTP.
//
// # Routes
//
//	GET  /health                      liveness (no auth)
//	GET  /api/chats                   list chats
//	POST /api/chats                   create a chat
//	GET  /api/chats/{id}              chat configuration
//	POST /api/chats/{id}/messages     submit a user message (record + dispatch)
//	POST /api/chats/{id}/dispatch     retry dispatch without re-sending
//	GET  /api/chats/{id}/events       ordered event log (the polling read)
//	POST /api/chats/{id}/events       worker append path
//	GET  /api/chats/{id}/windows      worker-produced windows
//	POST /api/chats/{id}/windows      worker window path
//	GET  /api/modules                 available module profiles
//
// All /api/ routes require a bearer token; unauthenticated requests get 401.
//
// # Status mapping
//
//   - 401 no valid caller identity
//   - 404 chat (or referenced module) not found
//   - 409 duplicate chat, or retry-dispatch on a chat with no user input
//   - 502 message recorded but the task backend refused the job; the body
//     carries the persisted event with dispatched=false
//   - 500 storage failure, never silently swallowed
package gateway
