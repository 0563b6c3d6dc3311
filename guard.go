package satchel

import (
	"context"
	"errors"
	"fmt"
)

// Guard enforces the archive policy before any archive work starts.
type Guard struct {
	tree   Tree
	policy ArchivePolicy
}

func NewGuard(tree Tree, policy ArchivePolicy) *Guard {
	return &Guard{tree: tree, policy: policy}
}

// Policy returns the policy the guard enforces.
func (g *Guard) Policy() ArchivePolicy {
	return g.policy
}

// Check returns ErrArchiveDisabled when archive downloads are turned off,
// whatever the selection. Otherwise, when a ceiling is configured, it sums
// the sizes of every regular file reachable from the selection and returns
// a *QuotaError if the total is above the ceiling. The walk only reads
// metadata; no file content is touched.
//
// The returned total is zero when no ceiling is configured.
func (g *Guard) Check(ctx context.Context, sel Selection) (int64, error) {
	if !g.policy.Enabled {
		return 0, fmt.Errorf("check quota: %w", ErrArchiveDisabled)
	}

	if g.policy.MaxInputSize <= 0 {
		return 0, nil
	}

	total, err := TotalSize(ctx, g.tree, sel)
	if err != nil {
		return 0, fmt.Errorf("check quota: %w", err)
	}

	if total > g.policy.MaxInputSize {
		return total, fmt.Errorf("check quota: %w", &QuotaError{Total: total, Limit: g.policy.MaxInputSize})
	}

	return total, nil
}

// TotalSize sums the sizes of all regular files reachable from sel,
// expanding directories recursively. Paths that do not exist count as zero.
// Any other failure to inspect a path is ErrStorageReadFailed, as it is
// when the archive is built.
func TotalSize(ctx context.Context, tree Tree, sel Selection) (int64, error) {
	var total int64

	// explicit worklist; directories push their children
	pending := sel.Resolve()
	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		p := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		entry, err := tree.Stat(ctx, p)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return 0, fmt.Errorf("total size %s: %w: %w", p, ErrStorageReadFailed, err)
		}

		if !entry.IsDir {
			total += entry.Size
			continue
		}

		children, err := tree.List(ctx, p)
		if err != nil {
			return 0, fmt.Errorf("total size %s: %w: %w", p, ErrStorageReadFailed, err)
		}

		for _, child := range children {
			if child.IsDir {
				pending = append(pending, child.Path)
				continue
			}
			total += child.Size
		}
	}

	return total, nil
}
