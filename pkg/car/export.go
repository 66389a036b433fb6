// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package car

import (
	"context"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	"github.com/tabcat/zzzync/pkg/blockstore"
	"github.com/tabcat/zzzync/pkg/dag"
)

// Export writes the archive of the dag under root. Blocks are written depth
// first, each after the block that links to it, and every block at most once.
func Export(ctx context.Context, w io.Writer, g blockstore.Getter, root cid.Cid) error {
	cw, err := NewWriter(w, root)
	if err != nil {
		return err
	}

	seen := make(map[cid.Cid]struct{})
	stack := []cid.Cid{root}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}

		b, err := g.Get(ctx, c)
		if err != nil {
			return fmt.Errorf("get %s: %w", c, err)
		}
		links, err := dag.Links(b)
		if err != nil {
			return fmt.Errorf("links %s: %w", c, err)
		}
		if err := cw.Write(ctx, b); err != nil {
			return err
		}
		for i := len(links) - 1; i >= 0; i-- {
			if _, ok := seen[links[i]]; !ok {
				stack = append(stack, links[i])
			}
		}
	}
	return nil
}
