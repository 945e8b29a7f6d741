// Copyright 2026 The LUCI Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package shards

import (
	"context"
	"sort"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"
	"go.chromium.org/luci/common/sync/parallel"
)

// MergeOptions configure Merge.
type MergeOptions struct {
	// SlowTestsCutoff is how many slowest tests to keep.
	SlowTestsCutoff int
	// Parallelism limits concurrent shard reads. 0 means unbounded.
	Parallelism int
	// Warnings, if set, receives a warning about bad shards.
	Warnings *Warnings
}

// Merge reads outputs of all shards and combines outputs of good ones.
//
// Bad shards are reported in the returned BadShards and make the aggregate
// tagged with UnreliableResults. If all shards are bad, the aggregate is
// empty. The only error is a ContractViolation between good shards.
//
// Shards are read concurrently, but folded in ascending Index order, so the
// result is the same across runs and doesn't depend on the order of descs.
// Returns nil if descs is empty.
func Merge(ctx context.Context, descs []*Descriptor, r Reader, opts MergeOptions) (*AggregatedResult, BadShards, error) {
	if len(descs) == 0 {
		return nil, BadShards{}, nil
	}

	descs = append([]*Descriptor(nil), descs...)
	sort.SliceStable(descs, func(i, j int) bool { return descs[i].Index < descs[j].Index })

	outputs := make([]*Output, len(descs))
	err := parallel.WorkPool(opts.Parallelism, func(work chan<- func() error) {
		for i, d := range descs {
			i, d := i, d
			if d.TaskID == "" {
				logging.Warningf(ctx, "Shard %d has no task", d.Index)
				continue
			}
			work <- func() error {
				out, err := r.ReadShard(ctx, d.TaskID)
				if err != nil {
					logging.Warningf(ctx, "Shard %d: %s", d.Index, err)
					return nil
				}
				outputs[i] = out
				return nil
			}
		}
	})
	if err != nil {
		return nil, BadShards{}, errors.Annotate(err, "reading shard outputs").Err()
	}

	bad := CollectBadShards(descs, outputs)
	agg := NewAggregatedResult(opts.SlowTestsCutoff)

	if !bad.Empty() {
		agg.Tags.Add(UnreliableResults)
		str := bad.String()
		logging.Warningf(ctx, "Some shards did not complete: %s", str)
		opts.Warnings.Add("some shards did not complete: "+str, MissingShardsMessage(str))
	}

	// Nothing to fold. Still return a complete aggregate, callers rely on all
	// fields being present.
	if bad.Count() == len(descs) {
		return agg, bad, nil
	}

	for i, d := range descs {
		if d.ExitCode != 0 || outputs[i] == nil {
			continue
		}
		if err := agg.Append(outputs[i]); err != nil {
			return nil, bad, err
		}
	}
	agg.Finalize()
	return agg, bad, nil
}
