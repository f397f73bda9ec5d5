package model

import "path"

const (
	// PackagesDir is the directory holding package descriptors inside a
	// repo working tree.
	PackagesDir = "packages"

	// IndexFile is the name of every TOML index file.
	IndexFile = "index.toml"

	// StringsDir holds the per-language localization files of a repo.
	StringsDir = "strings"
)

// IndexFilePath yields the working-tree relative path of a package
// descriptor, e.g. packages/divvun-installer/index.toml.
func IndexFilePath(packageID string) string {
	return path.Join(PackagesDir, packageID, IndexFile)
}

// PackageDirPath yields the working-tree relative directory of a package.
func PackageDirPath(packageID string) string {
	return path.Join(PackagesDir, packageID)
}

// RepoIndexFilePath yields the working-tree relative path of the
// repo-level index.
func RepoIndexFilePath() string {
	return IndexFile
}

// StringsFilePath yields the working-tree relative path of the strings
// file for a language tag, e.g. strings/en.toml.
func StringsFilePath(lang string) string {
	return path.Join(StringsDir, lang+".toml")
}
