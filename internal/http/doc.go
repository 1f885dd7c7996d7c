// Package http exposes the reservation engine over HTTP.
//
// The router exposes the following endpoints:
//   - GET /rooms (optional building and min_capacity query parameters), POST /rooms,
//     DELETE /rooms, GET|PATCH|DELETE /rooms/{id} and GET /rooms/{building}/{number}:
//     room directory endpoints exchanging the `roomDTO` payload defined in room_handler.go.
//   - POST /rooms/import: creates rooms from a CSV body with Room, Capacity and
//     AV Equipment columns. The whole file is rejected on the first bad row.
//   - POST /rooms/{building}/{number}/reservations: reserves a room. Body:
//     {"start","end","party_size","requester"} with RFC 3339 timestamps; requester
//     defaults to the acting requester.
//   - GET /availability?start=&end=&min_capacity=: rooms free for the whole window.
//   - GET /reservations (room_id, requester with when=past|future, or day=YYYY-MM-DD),
//     DELETE /reservations, GET|PUT|DELETE /reservations/{id}.
//   - GET /requesters, POST /requesters, DELETE /requesters/{id}.
//   - GET /audit?limit=: newest audit records first, administrators only.
//   - GET /healthz: store reachability.
//
// The acting requester is named by the X-Requester header. Reads work without
// it; every mutation answers 401 when it is missing or unknown. Business
// rejections map to 400, 403, 404, 409 and 503 as implemented in responder.go.
package http
