package model

import (
	"crypto/md5"
	"fmt"
	"path"
	"strings"
)

// FileID derives the stable identity of a file from its account, parent
// folder and filename. The same logical file always maps to the same id
// across re-scans; a file that moves folders gets a new id and is
// processed as delete+add, never as update.
func FileID(accountID, folderID, filename string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(accountID+"/"+folderID+"/"+filename)))
}

// FolderID derives a stable folder identity for backends without a
// native folder id, from the account and the root-relative path.
func FolderID(accountID, folderPath string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(accountID+":"+CleanFolderPath(folderPath))))
}

// CleanFolderPath normalizes a folder path to the canonical
// "/"-separated, leading-slash form used throughout the index.
func CleanFolderPath(p string) string {
	p = path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	if p == "." {
		return "/"
	}
	return p
}

// ChildPath joins a parent folder path with a child name.
func ChildPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// ParentPath returns the parent of a folder path; the parent of "/" is "/".
func ParentPath(p string) string {
	parent := path.Dir(CleanFolderPath(p))
	if parent == "." {
		return "/"
	}
	return parent
}
