package domain

import (
	"path"
	"path/filepath"
	"strings"
)

// Asset identifies a published object.
type Asset struct {
	Bucket string `json:"Bucket"`
	Key    string `json:"Key"`
}

// Artifact is a staged output file. Name is its path relative to the staging
// directory and is what the object key is derived from.
type Artifact struct {
	Path string
	Name string
	Rows int
}

// Upload is the publisher's result for one file.
type Upload struct {
	Asset   Asset
	Changed bool
}

// ObjectKey derives the storage key of a staged file:
// <dataset>/dataset/<relative path, lowercased, spaces replaced by _>.
func ObjectKey(dataset, relPath string) string {
	rel := path.Clean(filepath.ToSlash(relPath))
	rel = strings.TrimPrefix(rel, "/")
	rel = strings.ToLower(strings.ReplaceAll(rel, " ", "_"))
	return dataset + "/dataset/" + rel
}

// ChangedAssets collects the assets that were uploaded. Uploads flagged as
// changed must yield at least one asset.
func ChangedAssets(uploads []Upload) ([]Asset, error) {
	var (
		reported int
		assets   []Asset
	)
	for _, u := range uploads {
		if !u.Changed {
			continue
		}
		reported++
		if u.Asset.Bucket == "" || u.Asset.Key == "" {
			continue
		}
		assets = append(assets, u.Asset)
	}
	if reported > 0 && len(assets) == 0 {
		return nil, &PublishInconsistencyError{Reported: reported}
	}
	return assets, nil
}
