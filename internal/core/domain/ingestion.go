package domain

// IngestState is the phase an ingestion run is in. A run moves
// NotIngested → Segmenting → Embedding → Storing → Ready; re-ingestion of an
// already ingested document passes through Diffing after segmentation.
// Failed is reachable from any non-terminal state.
type IngestState string

// Available ingestion states.
const (
	IngestStateNotIngested IngestState = "not_ingested"
	IngestStateSegmenting  IngestState = "segmenting"
	IngestStateDiffing     IngestState = "diffing"
	IngestStateEmbedding   IngestState = "embedding"
	IngestStateStoring     IngestState = "storing"
	IngestStateReady       IngestState = "ready"
	IngestStateFailed      IngestState = "failed"
)

// Terminal returns true when the state ends a run.
func (s IngestState) Terminal() bool {
	return s == IngestStateReady || s == IngestStateFailed
}

// String returns the string representation.
func (s IngestState) String() string {
	return string(s)
}
