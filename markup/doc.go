// Package markup owns the XML API wire format.
//
// Ownership boundary:
// - the value tree accepted for structured calls (Text, Sequence, Element)
// - rendering trees and raw fragments into one batched Envelope
// - extracting named elements and faults from response documents
//
// Text content is always emitted as escaped character data, never as CDATA
// sections. Remote services see the same bytes for a given tree on every run.
package markup
