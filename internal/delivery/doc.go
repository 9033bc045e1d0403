// Package delivery ships finished artifacts to the chat transport and reports
// progress while doing so.
//
// Transport is the narrow surface the pipeline depends on (send/edit/delete a
// text message, upload a document, upload a streaming video). Telegram
// implements it over the Bot API. Adapter layers the delivery policy on top:
// a progress notice edited at a throttled rate, a video upload that falls back
// to a document upload, and best-effort removal of notices and local
// temporaries afterwards. Only a failed fallback is fatal
// (services.ErrTransport).
package delivery
