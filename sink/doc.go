// Package sink provides the built-in output sinks: desktop window, web
// preview, MQTT events, sqlite storage and msgpack journaling.
//
// Sinks receive every completed packet; drop-aware sinks check the
// packet's Drop flag and skip marked frames. A sink must never block the
// pipeline: anything slow (disk, broker, browser) buffers internally with
// a bounded, oldest-evicting queue.
//
// Each sink requests the packet fields it was configured with, so the
// same sink attaches cleanly to pipelines with different node sets: a
// storage sink on an OCR-less pipeline simply does not request OCR text.
package sink
