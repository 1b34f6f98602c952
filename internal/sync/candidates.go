package sync

import (
	"context"
	"fmt"
)

// keepForPartition reports whether the candidate at running row index i
// belongs to the given partition. Index assignment is a pure function of
// page order, so independent pass instances with the same partitionCount
// and distinct partitionIDs cover the population exactly once between them
// with no coordination.
func keepForPartition(index, partitionCount, partitionID int) bool {
	return index%partitionCount == partitionID
}

// collectCandidates pages through the source in stable order, keeps this
// partition's rows, and stops once limit rows are kept or the source is
// exhausted. The running index spans pages, so the storage layer's page
// size cap never affects partition assignment.
func collectCandidates(ctx context.Context, src CandidateSource, tier, limit, pageSize, partitionCount, partitionID int) ([]Candidate, error) {
	if partitionCount < 1 {
		partitionCount = 1
	}
	if partitionID < 0 || partitionID >= partitionCount {
		return nil, fmt.Errorf("partition_id %d out of range [0,%d)", partitionID, partitionCount)
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}

	var (
		kept   []Candidate
		cursor Cursor
		index  int
	)
	for limit <= 0 || len(kept) < limit {
		rows, err := src.Page(ctx, tier, cursor, pageSize)
		if err != nil {
			return nil, fmt.Errorf("candidate page: %w", err)
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			if keepForPartition(index, partitionCount, partitionID) {
				kept = append(kept, row)
				if limit > 0 && len(kept) == limit {
					break
				}
			}
			index++
		}
		cursor = rows[len(rows)-1].cursor()
	}
	return kept, nil
}
