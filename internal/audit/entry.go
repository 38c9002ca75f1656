package audit

// TimestampFormat is the layout used in decision entry timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Entry is one line in the hash-chained JSONL decision log.
// All fields are flat scalars (no map[string]any) to guarantee
// deterministic json.Marshal field order for reproducible hashing.
// Full decision context lives in the journal; the chain records the
// decision itself and the graph it was made against.
type Entry struct {
	Timestamp  string `json:"ts"`
	DecisionID string `json:"decision_id"`
	Source     string `json:"source"`
	From       string `json:"from"`
	Target     string `json:"target"`
	Granted    bool   `json:"granted"`
	GraphHash  string `json:"graph_hash"`
	PrevHash   string `json:"prev_hash"`
}
