package listing

import (
	"context"
	"path"
	"sort"
	"strings"

	"github.com/rollcam/rollcam/internal/rollcam/registry"
)

// latestFolderDepth is how many hour folders ArchiveLatest inspects, newest
// first, before giving up.
const latestFolderDepth = 2

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// ArchiveLatest finds the newest images of a machine by walking its hour
// folders.
type ArchiveLatest struct {
	dir *Directory
}

// NewArchiveLatest returns an ArchiveLatest reading through dir.
func NewArchiveLatest(dir *Directory) *ArchiveLatest {
	return &ArchiveLatest{dir: dir}
}

// Latest returns up to n image paths, newest first, each of the form
// "<YYYYMMDD_HH>/<file>". An unreachable archive yields an empty batch.
func (a *ArchiveLatest) Latest(ctx context.Context, m registry.Machine, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	folders := a.dir.Folders(ctx, m.URL)
	sort.Strings(folders)

	var batch []string
	for i := len(folders) - 1; i >= 0 && i >= len(folders)-latestFolderDepth; i-- {
		folder := folders[i]
		var images []string
		for _, f := range a.dir.Children(ctx, m.URL+folder) {
			if imageExts[strings.ToLower(path.Ext(f))] {
				images = append(images, f)
			}
		}
		sort.Strings(images)
		for j := len(images) - 1; j >= 0; j-- {
			batch = append(batch, folder+images[j])
			if len(batch) == n {
				return batch, nil
			}
		}
	}
	return batch, nil
}
