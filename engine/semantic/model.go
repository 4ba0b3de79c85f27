package semantic

// Dims is the embedding dimension of the index (all-MiniLM-class models).
const Dims = 384

// SlotVector is one vector destined for the index, keyed by its slot: the
// append-order position assigned at build time, which is the permanent join
// key into the chunk metadata store.
type SlotVector struct {
	Slot   int64
	Values []float32
}

// Hit is a single nearest-neighbor match. Hits arrive from the index in
// descending-score order. A negative slot is the index's sentinel for "no
// match in this position".
type Hit struct {
	Slot  int64   `json:"slot"`
	Score float32 `json:"score"`
}
