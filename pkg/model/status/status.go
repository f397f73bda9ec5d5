// Package status exports errors produced by the model package.
package status

import (
	"github.com/divvun/pahkat-reposrv/pkg/errors"
)

var (
	// ErrEmptyID indicates a missing package identifier
	ErrEmptyID = errors.New("empty field: package id is empty")

	// ErrInvalidID indicates a package identifier with characters outside [A-Za-z0-9._-]
	ErrInvalidID = errors.New("invalid package id")

	// ErrCharacter qualifies ErrInvalidID with the offending class of input
	ErrCharacter = errors.New("unsupported character")

	// ErrEmptyName indicates a descriptor without any localized name
	ErrEmptyName = errors.New("empty field: package name has no locales")

	// ErrEmptyVersion indicates a release without a version string
	ErrEmptyVersion = errors.New("empty field: release version is empty")

	// ErrEmptyPlatform indicates a target without a platform identifier
	ErrEmptyPlatform = errors.New("empty field: target platform is empty")

	// ErrRebootEvent indicates a reboot event outside {install, uninstall}
	ErrRebootEvent = errors.New("invalid reboot event: must be install or uninstall")

	// ErrNoVersion indicates a patch carrying a target without the release version
	ErrNoVersion = errors.New("target provided without a version")
)
