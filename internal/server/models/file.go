// Package models defines the server-side data models.
package models

import "github.com/dmitrijs2005/kinveysync/internal/common"

// File is the metadata entity of the _blob collection. The content itself
// lives in object storage under StorageKey.
type File struct {
	ID         string
	Filename   string
	StorageKey string
}

// storageKeyField is kept on the stored document and stripped from
// responses.
const storageKeyField = "_storageKey"

// FileFrom reads the file fields of d.
func FileFrom(d Document) *File {
	f := &File{ID: d.ID()}
	f.Filename, _ = d[common.FieldFilename].(string)
	f.StorageKey, _ = d[storageKeyField].(string)
	return f
}

// SetStorageKey records where the content of d lives.
func SetStorageKey(d Document, key string) {
	d[storageKeyField] = key
}

// Public returns a copy of d without server-only fields.
func Public(d Document) Document {
	out := make(Document, len(d))
	for k, v := range d {
		if k != storageKeyField {
			out[k] = v
		}
	}
	return out
}
