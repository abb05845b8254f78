package domain

import "fmt"

// BulkOp is an operation the bulk coordinator applies per link.
type BulkOp string

const (
	BulkPause        BulkOp = "pause"
	BulkResume       BulkOp = "resume"
	BulkDisable      BulkOp = "disable"
	BulkHardDelete   BulkOp = "hardDelete"
	BulkRestore      BulkOp = "restore"
	BulkAddTags      BulkOp = "addTags"
	BulkRemoveTags   BulkOp = "removeTags"
	BulkMoveToFolder BulkOp = "moveToFolder"
)

var bulkOps = map[BulkOp]struct{}{
	BulkPause: {}, BulkResume: {}, BulkDisable: {}, BulkHardDelete: {},
	BulkRestore: {}, BulkAddTags: {}, BulkRemoveTags: {}, BulkMoveToFolder: {},
}

// ParseBulkOp validates an operation name.
func ParseBulkOp(s string) (BulkOp, error) {
	op := BulkOp(s)
	if _, ok := bulkOps[op]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidBulkOp, s)
	}
	return op, nil
}

// BulkPayload carries the operation arguments shared by every id.
type BulkPayload struct {
	Tags     []string `json:"tags,omitempty"`
	FolderID *string  `json:"folderId,omitempty"`
}

// BulkItemResult is the outcome for one id.
type BulkItemResult struct {
	ID     string `json:"id"`
	OK     bool   `json:"ok"`
	Kind   string `json:"kind,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// BulkFailure names a failed id and why.
type BulkFailure struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// BulkReport is the per-id outcome of one bulk call.
type BulkReport struct {
	Op        BulkOp           `json:"op"`
	Results   []BulkItemResult `json:"results"`
	Succeeded []string         `json:"succeeded"`
	Failed    []BulkFailure    `json:"failed"`
}

// NewBulkReport builds a report from ordered per-id results.
func NewBulkReport(op BulkOp, results []BulkItemResult) *BulkReport {
	r := &BulkReport{
		Op:        op,
		Results:   results,
		Succeeded: []string{},
		Failed:    []BulkFailure{},
	}
	for _, res := range results {
		if res.OK {
			r.Succeeded = append(r.Succeeded, res.ID)
		} else {
			r.Failed = append(r.Failed, BulkFailure{ID: res.ID, Kind: res.Kind, Reason: res.Reason})
		}
	}
	return r
}
