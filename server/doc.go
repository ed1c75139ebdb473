// Package server exposes flashing sessions over a local HTTP API.
//
// Routes:
//
//	POST   /sessions                          create a session
//	GET    /sessions/:id                      parts, metadata, device and last job
//	DELETE /sessions/:id                      cancel, disconnect and drop
//	PUT    /sessions/:id/metadata             load a manifest or legacy metadata document
//	POST   /sessions/:id/files                multipart upload ("file" fields, .bin or .hex)
//	DELETE /sessions/:id/files/:name          remove a part
//	PUT    /sessions/:id/addresses/:name      {"address": "0x10000"}
//	DELETE /sessions/:id/addresses/:name      clear an entered address
//	POST   /sessions/:id/connect              connect the device
//	POST   /sessions/:id/disconnect           disconnect the device
//	GET    /sessions/:id/validation           resolve addresses and validate the memory map
//	POST   /sessions/:id/download             download every manifest part
//	POST   /sessions/:id/flash                start a flash job
//	GET    /sessions/:id/flash[?wait=true]    job progress
//	DELETE /sessions/:id/flash                cancel the job after the current part
//	GET    /metrics                           Prometheus metrics
//	GET    /health
//
// Errors are returned as {"error": "..."} with conflicting or failed part
// names where they apply.
package server
