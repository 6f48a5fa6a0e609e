package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/dlsan/internal/engine"
	"github.com/roach88/dlsan/internal/report"
)

// provenanceRow mirrors the provenance object rendered by
// report.VerdictObject, for decoding.
type provenanceRow struct {
	ConstructKind    string `json:"construct_kind"`
	ConstructSite    int    `json:"construct_site"`
	ReplacedCount    int    `json:"replaced_count"`
	ReplacedInRegion bool   `json:"replaced_in_region"`
	InsertedInRegion bool   `json:"inserted_in_region"`
	ReplaceSites     []int  `json:"replace_sites"`
	InsertionSite    int    `json:"insertion_site"`
	UpdateKind       string `json:"update_kind"`
	UpdateSite       int    `json:"update_site"`
}

// marshalProvenance serializes a verdict's provenance to canonical JSON.
func marshalProvenance(v engine.Verdict) (string, error) {
	data, err := report.MarshalCanonical(report.VerdictObject(v)["provenance"])
	if err != nil {
		return "", fmt.Errorf("marshal provenance: %w", err)
	}
	return string(data), nil
}

// unmarshalProvenance deserializes provenance JSON written by
// marshalProvenance.
func unmarshalProvenance(data string) (engine.Provenance, error) {
	var row provenanceRow
	if err := json.Unmarshal([]byte(data), &row); err != nil {
		return engine.Provenance{}, fmt.Errorf("unmarshal provenance: %w", err)
	}

	ck, err := engine.ParseConstructKind(row.ConstructKind)
	if err != nil {
		return engine.Provenance{}, fmt.Errorf("unmarshal provenance: %w", err)
	}
	uk, err := engine.ParseUpdateKind(row.UpdateKind)
	if err != nil {
		return engine.Provenance{}, fmt.Errorf("unmarshal provenance: %w", err)
	}

	p := engine.Provenance{
		ConstructKind:    ck,
		ConstructSite:    row.ConstructSite,
		ReplacedCount:    row.ReplacedCount,
		ReplacedInRegion: row.ReplacedInRegion,
		InsertedInRegion: row.InsertedInRegion,
		InsertionSite:    row.InsertionSite,
		UpdateKind:       uk,
		UpdateSite:       row.UpdateSite,
	}
	if len(row.ReplaceSites) > 0 {
		p.ReplaceSites = row.ReplaceSites
	}
	return p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
