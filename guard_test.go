package satchel_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sagarc03/satchel"
	"github.com/sagarc03/satchel/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mib = int64(1 << 20)

func newSizedTree(t *testing.T) satchel.Tree {
	t.Helper()

	base := newMemTree(t, map[string]string{
		"docs/report.pdf":        "",
		"docs/video.mp4":         "",
		"docs/b/c.txt":           "",
		"docs/b/deep/d.bin":      "",
		"docs/empty/":            "",
		"docs/b/deep/deeper/e.x": "",
	})

	return &sizedTree{Tree: base, sizes: map[string]int64{
		"docs/report.pdf":        2 * mib,
		"docs/video.mp4":         900 * mib,
		"docs/b/c.txt":           10,
		"docs/b/deep/d.bin":      20,
		"docs/b/deep/deeper/e.x": 30,
	}}
}

func TestTotalSize(t *testing.T) {
	tree := newSizedTree(t)

	tests := []struct {
		name string
		sel  satchel.Selection
		want int64
	}{
		{
			name: "single file",
			sel:  satchel.Selection{Kind: satchel.SelectionSingle, BaseDir: "docs", Paths: []string{"report.pdf"}},
			want: 2 * mib,
		},
		{
			name: "directory recursive",
			sel:  satchel.Selection{Kind: satchel.SelectionDirectory, BaseDir: "docs", Paths: []string{"b"}},
			want: 60,
		},
		{
			name: "list mixes files and directories",
			sel:  satchel.Selection{Kind: satchel.SelectionList, BaseDir: "docs", Paths: []string{"report.pdf", "b"}},
			want: 2*mib + 60,
		},
		{
			name: "missing items count as zero",
			sel:  satchel.Selection{Kind: satchel.SelectionList, BaseDir: "docs", Paths: []string{"nope", "b/c.txt"}},
			want: 10,
		},
		{
			name: "empty directory",
			sel:  satchel.Selection{Kind: satchel.SelectionDirectory, BaseDir: "docs", Paths: []string{"empty"}},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := satchel.TotalSize(context.Background(), tree, tt.sel)

			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTotalSize_ListError(t *testing.T) {
	tree := &faultyTree{Tree: newSizedTree(t), failList: "docs/b/deep"}
	sel := satchel.Selection{Kind: satchel.SelectionDirectory, BaseDir: "docs", Paths: []string{"b"}}

	_, err := satchel.TotalSize(context.Background(), tree, sel)

	assert.ErrorIs(t, err, errDisk)
	assert.ErrorIs(t, err, satchel.ErrStorageReadFailed)
}

func TestTotalSize_UnreadableItemIsStorageReadFailure(t *testing.T) {
	tree := &forbiddenStatTree{Tree: newSizedTree(t), path: "docs/b/c.txt"}
	sel := satchel.Selection{Kind: satchel.SelectionList, BaseDir: "docs", Paths: []string{"report.pdf", "b/c.txt"}}

	_, err := satchel.TotalSize(context.Background(), tree, sel)

	assert.ErrorIs(t, err, satchel.ErrStorageReadFailed)
	assert.ErrorIs(t, err, satchel.ErrForbidden)
	assert.Equal(t, satchel.OutcomeError, satchel.OutcomeFromError(err), "an unreadable list item maps like a failed archive build")
}

func TestTotalSize_CountsLinkTargets(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "d"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.bin"), make([]byte, 4096), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "d", "small.txt"), []byte("abc"), 0o644))
	if err := os.Symlink(filepath.Join("..", "big.bin"), filepath.Join(root, "d", "link.bin")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	tree, err := filesystem.NewOSTree(root)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tree.Close() })

	sel := satchel.Selection{Kind: satchel.SelectionDirectory, BaseDir: "", Paths: []string{"d"}}

	total, err := satchel.TotalSize(context.Background(), tree, sel)
	require.NoError(t, err)
	assert.Equal(t, int64(4096+3), total)

	guard := satchel.NewGuard(tree, satchel.ArchivePolicy{Enabled: true, MaxInputSize: 1024})
	_, err = guard.Check(context.Background(), sel)
	assert.ErrorIs(t, err, satchel.ErrQuotaExceeded)
}

func TestGuard_Check(t *testing.T) {
	tree := newSizedTree(t)
	dirSel := satchel.Selection{Kind: satchel.SelectionDirectory, BaseDir: "", Paths: []string{"docs"}}
	smallSel := satchel.Selection{Kind: satchel.SelectionDirectory, BaseDir: "docs", Paths: []string{"b"}}

	t.Run("disabled rejects any selection", func(t *testing.T) {
		guard := satchel.NewGuard(tree, satchel.ArchivePolicy{Enabled: false, MaxInputSize: satchel.DefaultMaxInputSize})

		_, err := guard.Check(context.Background(), smallSel)

		assert.ErrorIs(t, err, satchel.ErrArchiveDisabled)
		assert.NotErrorIs(t, err, satchel.ErrQuotaExceeded)
	})

	t.Run("over the limit", func(t *testing.T) {
		guard := satchel.NewGuard(tree, satchel.ArchivePolicy{Enabled: true, MaxInputSize: 800 * mib})

		total, err := guard.Check(context.Background(), dirSel)

		assert.ErrorIs(t, err, satchel.ErrQuotaExceeded)
		assert.Equal(t, 902*mib+60, total)

		var quotaErr *satchel.QuotaError
		assert.True(t, errors.As(err, &quotaErr))
		assert.Equal(t, 902*mib+60, quotaErr.Total)
		assert.Equal(t, 800*mib, quotaErr.Limit)
	})

	t.Run("exactly at the limit passes", func(t *testing.T) {
		guard := satchel.NewGuard(tree, satchel.ArchivePolicy{Enabled: true, MaxInputSize: 60})

		total, err := guard.Check(context.Background(), smallSel)

		assert.NoError(t, err)
		assert.Equal(t, int64(60), total)
	})

	t.Run("unlimited skips the walk", func(t *testing.T) {
		faulty := &faultyTree{Tree: tree, failList: "docs"}
		guard := satchel.NewGuard(faulty, satchel.ArchivePolicy{Enabled: true, MaxInputSize: 0})

		total, err := guard.Check(context.Background(), dirSel)

		assert.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("negative limit is unlimited", func(t *testing.T) {
		guard := satchel.NewGuard(tree, satchel.ArchivePolicy{Enabled: true, MaxInputSize: -1})

		_, err := guard.Check(context.Background(), dirSel)

		assert.NoError(t, err)
	})

	t.Run("walk error", func(t *testing.T) {
		faulty := &faultyTree{Tree: tree, failList: "docs"}
		guard := satchel.NewGuard(faulty, satchel.ArchivePolicy{Enabled: true, MaxInputSize: mib})

		_, err := guard.Check(context.Background(), dirSel)

		assert.ErrorIs(t, err, errDisk)
		assert.ErrorIs(t, err, satchel.ErrStorageReadFailed)
	})
}

func TestGuard_Policy(t *testing.T) {
	policy := satchel.ArchivePolicy{Enabled: true, MaxInputSize: 42}
	guard := satchel.NewGuard(newMemTree(t, nil), policy)

	assert.Equal(t, policy, guard.Policy())
}
