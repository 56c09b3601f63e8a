// Package peppol handles fetching the PEPPOL directory business-card export and
// reading it record by record
//
// Design choices:
// - The export is one flat XML document far too large for a DOM. We never tokenize it as
//   a whole; the Reader only scans for the literal <businesscard> and </businesscard>
//   delimiters over a growing byte buffer filled in fixed-size chunks.
// - Whatever precedes the first <businesscard> is the header, captured once and reused as
//   the preamble of every output file.
// - Fragments are handed out as independent byte copies; well-formedness is checked later,
//   per fragment, by the caller.
// - The fetcher keeps one cached copy of the export in the tmp directory with a .meta
//   sidecar so forced refreshes can use conditional GET.
package peppol
