// Package extract implements the per-task extractors plugged into the pipeline.
//
// Every extractor returns an Outcome carrying one FieldResult per declared
// field. Network and parse failures are recorded on the affected fields; a
// missing anchor becomes a not-found placeholder. Rows without a source
// reference short-circuit to no_source without touching the network.
package extract
