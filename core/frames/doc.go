// Package frames defines the atomic units of data and control that flow
// through a pipeline.
//
// A frame is immutable once created. Data frames (audio, transcripts, text
// deltas) are only meaningful to the stages that declare an interest in them;
// control frames (start, interrupt, end, error) traverse every stage of a
// pipeline regardless of its filtering.
package frames
