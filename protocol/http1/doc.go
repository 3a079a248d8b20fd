// Package http1
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Incremental HTTP/1.x request decoder for the engine. Each session owns
// one Protocol, which keeps the request being decoded as a typed *Entity
// and walks it through HEAD, BODY and END with an explicit transition
// function. POST bodies are either buffered whole (form posts) or streamed
// to the consumer through Entity.Stream while the message is surfaced at
// head completion.
//
// The decoder does not route, render responses or validate semantics
// beyond the method, Content-Type and Content-Length.
package http1
