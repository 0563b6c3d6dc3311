package satchel

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ListSeparator separates paths in a multi-item files parameter.
const ListSeparator = ";"

// ParseSelection turns a raw request into a typed Selection.
//
// A files value containing ListSeparator is always a SelectionList; empty
// items are dropped and a list left with no items is ErrInvalidInput.
// Otherwise the single path is looked up in tree: a directory gives a
// SelectionDirectory, anything else (including a path that does not
// exist) gives a SelectionSingle so that delivery can answer 404 or 403.
func ParseSelection(ctx context.Context, tree Tree, req Request) (Selection, error) {
	if err := ctx.Err(); err != nil {
		return Selection{}, fmt.Errorf("parse selection: %w", err)
	}

	base, err := CleanDir(req.Dir)
	if err != nil {
		return Selection{}, fmt.Errorf("parse selection: %w", err)
	}

	if strings.Contains(req.Files, ListSeparator) {
		var paths []string
		for _, item := range strings.Split(req.Files, ListSeparator) {
			if item == "" {
				continue
			}
			p, cleanErr := CleanPath(item)
			if cleanErr != nil {
				return Selection{}, fmt.Errorf("parse selection: %w", cleanErr)
			}
			paths = append(paths, p)
		}

		if len(paths) == 0 {
			return Selection{}, fmt.Errorf("parse selection: %w: empty file list", ErrInvalidInput)
		}

		return Selection{Kind: SelectionList, BaseDir: base, Paths: paths}, nil
	}

	p, err := CleanPath(req.Files)
	if err != nil {
		return Selection{}, fmt.Errorf("parse selection: %w", err)
	}

	sel := Selection{Kind: SelectionSingle, BaseDir: base, Paths: []string{p}}

	entry, err := tree.Stat(ctx, JoinPath(base, p))
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) {
			return sel, nil
		}
		return Selection{}, fmt.Errorf("parse selection: %w", err)
	}

	if entry.IsDir {
		sel.Kind = SelectionDirectory
	}

	return sel, nil
}
