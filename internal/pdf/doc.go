// Package pdf downloads document links in bulk.
//
// Each Item is fetched with a plain HTTP GET. Only a 200 response is accepted;
// the body streams into a pending file that atomically replaces any existing
// file of the same name. Failures are tagged services.ErrResolution and
// reported per item so one bad link never sinks the batch.
package pdf
