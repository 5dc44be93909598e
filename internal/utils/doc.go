// Package utils provides the low-level helpers shared by the vendor adapters
// and the conversation store: JSON-over-HTTP round-trips ([DoPostSync]),
// streaming requests ([DoPostStream]) read either through the structured
// [SSEScanner] or the raw byte-level [EventStreamParser], lenient JSON
// decoding with repair ([DecodeLenient]), and string truncation.
package utils
