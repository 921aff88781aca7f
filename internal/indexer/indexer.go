package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/untoldecay/RuneEcho/internal/grouper"
	"github.com/untoldecay/RuneEcho/internal/storage/sqlite"
	"github.com/untoldecay/RuneEcho/internal/types"
)

// Promoter rewrites hot observation headers before a rebuild. Implemented
// by the promote package; nil disables promotion.
type Promoter interface {
	Run(ctx context.Context) (int, error)
}

// Indexer rebuilds the store from the MEMORY.md tree.
type Indexer struct {
	store    *sqlite.Store
	echoDir  string
	grouper  *grouper.Grouper
	promoter Promoter
}

// New returns an Indexer over the given store and echo root. promoter may
// be nil.
func New(store *sqlite.Store, echoDir string, promoter Promoter) *Indexer {
	return &Indexer{
		store:    store,
		echoDir:  echoDir,
		grouper:  grouper.New(),
		promoter: promoter,
	}
}

// Reindex runs the full rebuild: promote hot observations, parse every
// role file, atomically replace the store contents, then recompute
// semantic groups (the rebuild cascade wiped the old ones). A file lock
// next to the database serializes concurrent reindexes across processes;
// a held lock means someone else is already rebuilding, so the call logs
// and returns without doing work.
func (ix *Indexer) Reindex(ctx context.Context) (*types.ReindexResult, error) {
	start := time.Now()

	lockPath := filepath.Join(filepath.Dir(ix.store.Path()), ".echo-reindex.lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring reindex lock: %w", err)
	}
	if !locked {
		fmt.Fprintln(os.Stderr, "Warning: another reindex is in progress, skipping")
		return &types.ReindexResult{TimeMS: time.Since(start).Milliseconds()}, nil
	}
	defer func() { _ = lock.Unlock() }()

	promoted := 0
	if ix.promoter != nil {
		n, err := ix.promoter.Run(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: observation promotion failed: %v\n", err)
		} else {
			promoted = n
		}
	}

	roles, err := DiscoverRoles(ix.echoDir)
	if err != nil {
		return nil, err
	}

	var entries []types.Entry
	roleNames := make([]string, 0, len(roles))
	for _, rf := range roles {
		data, err := os.ReadFile(rf.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cannot read %s: %v\n", rf.Path, err)
			continue
		}
		entries = append(entries, ParseMemoryFile(rf.Role, rf.Path, data)...)
		roleNames = append(roleNames, rf.Role)
	}

	if err := ix.store.Rebuild(ctx, entries); err != nil {
		return nil, err
	}

	groupsCreated := 0
	if ix.grouper != nil && len(entries) >= 2 {
		members := ix.grouper.BuildGroups(entries)
		if len(members) > 0 {
			if err := ix.store.WriteMemberships(ctx, members); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to write semantic groups: %v\n", err)
			} else {
				seen := make(map[string]struct{})
				for _, m := range members {
					seen[m.GroupID] = struct{}{}
				}
				groupsCreated = len(seen)
			}
		}
	}

	return &types.ReindexResult{
		EntriesIndexed:       len(entries),
		TimeMS:               time.Since(start).Milliseconds(),
		Roles:                roleNames,
		ObservationsPromoted: promoted,
		GroupsCreated:        groupsCreated,
	}, nil
}
