package model

import (
	"unicode"

	"github.com/divvun/pahkat-reposrv/pkg/model/status"
)

// DefaultChannel is the release channel assumed whenever a release
// carries no explicit channel.
const DefaultChannel = "stable"

// Reboot events a target may require.
const (
	RebootOnInstall   = "install"
	RebootOnUninstall = "uninstall"
)

// LangTagMap maps a BCP 47 language tag to a localized string.
type LangTagMap map[string]string

// PackageDescriptor is the metadata record for one installable package,
// persisted as packages/<id>/index.toml inside a repo working tree.
type PackageDescriptor struct {
	ID          string     `json:"id" toml:"id" yaml:"id"`
	Name        LangTagMap `json:"name" toml:"name" yaml:"name"`
	Description LangTagMap `json:"description,omitempty" toml:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string   `json:"tags,omitempty" toml:"tags,omitempty" yaml:"tags,omitempty"`
	Releases    []Release  `json:"release,omitempty" toml:"release,omitempty" yaml:"release,omitempty"`
}

// Release groups the targets published for one (version, channel) pair.
// Version strings are opaque: releases are keyed by exact match, never
// ordered by semantic comparison.
type Release struct {
	Version    string   `json:"version" toml:"version" yaml:"version"`
	Channel    string   `json:"channel,omitempty" toml:"channel,omitempty" yaml:"channel,omitempty"`
	Authors    []string `json:"authors,omitempty" toml:"authors,omitempty" yaml:"authors,omitempty"`
	License    string   `json:"license,omitempty" toml:"license,omitempty" yaml:"license,omitempty"`
	LicenseURL string   `json:"license_url,omitempty" toml:"license_url,omitempty" yaml:"license_url,omitempty"`
	Targets    []Target `json:"target,omitempty" toml:"target,omitempty" yaml:"target,omitempty"`
}

// EffectiveChannel resolves an empty channel to the default one.
func (r Release) EffectiveChannel() string {
	if r.Channel == "" {
		return DefaultChannel
	}
	return r.Channel
}

// KeyMatches reports whether this release is the one identified by
// (version, channel).
func (r Release) KeyMatches(version, channel string) bool {
	if channel == "" {
		channel = DefaultChannel
	}
	return r.Version == version && r.EffectiveChannel() == channel
}

// Target is one platform-specific installable artifact. A release holds
// at most one target per platform.
type Target struct {
	Platform       string            `json:"platform" toml:"platform" yaml:"platform"`
	Payload        string            `json:"payload,omitempty" toml:"payload,omitempty" yaml:"payload,omitempty"`
	Dependencies   map[string]string `json:"dependencies,omitempty" toml:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	RequiresReboot []string          `json:"requires_reboot,omitempty" toml:"requires_reboot,omitempty" yaml:"requires_reboot,omitempty"`
	Size           int64             `json:"size,omitempty" toml:"size,omitempty" yaml:"size,omitempty"`
	InstalledSize  int64             `json:"installed_size,omitempty" toml:"installed_size,omitempty" yaml:"installed_size,omitempty"`
	URL            string            `json:"url,omitempty" toml:"url,omitempty" yaml:"url,omitempty"`
	Scopes         []string          `json:"targets,omitempty" toml:"targets,omitempty" yaml:"targets,omitempty"`
}

// Copy returns a deep copy of the descriptor. Snapshots hand out shared
// descriptors, so every mutation path works on a copy.
func (d PackageDescriptor) Copy() PackageDescriptor {
	out := d
	out.Name = d.Name.Copy()
	out.Description = d.Description.Copy()
	out.Tags = copyStrings(d.Tags)
	if d.Releases != nil {
		out.Releases = make([]Release, len(d.Releases))
		for i, r := range d.Releases {
			out.Releases[i] = r.Copy()
		}
	}
	return out
}

// Copy returns a deep copy of the release.
func (r Release) Copy() Release {
	out := r
	out.Authors = copyStrings(r.Authors)
	if r.Targets != nil {
		out.Targets = make([]Target, len(r.Targets))
		for i, t := range r.Targets {
			out.Targets[i] = t.Copy()
		}
	}
	return out
}

// Copy returns a deep copy of the target.
func (t Target) Copy() Target {
	out := t
	out.RequiresReboot = copyStrings(t.RequiresReboot)
	out.Scopes = copyStrings(t.Scopes)
	if t.Dependencies != nil {
		out.Dependencies = make(map[string]string, len(t.Dependencies))
		for k, v := range t.Dependencies {
			out.Dependencies[k] = v
		}
	}
	return out
}

// Copy returns a copy of the locale map.
func (m LangTagMap) Copy() LangTagMap {
	if m == nil {
		return nil
	}
	out := make(LangTagMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// ValidateID checks a package identifier against the allowed character set.
func ValidateID(id string) error {
	if id == "" {
		return status.ErrEmptyID
	}
	for _, c := range id {
		if !unicode.IsDigit(c) && !unicode.IsLetter(c) && !unicode.Is(unicode.Hyphen, c) && c != '.' && c != '_' {
			return status.ErrInvalidID.Wrap(status.ErrCharacter)
		}
	}
	return nil
}

// Validate checks a full descriptor before it is persisted.
func Validate(d PackageDescriptor) error {
	if err := ValidateID(d.ID); err != nil {
		return err
	}
	if len(d.Name) == 0 {
		return status.ErrEmptyName
	}
	for _, r := range d.Releases {
		if r.Version == "" {
			return status.ErrEmptyVersion
		}
		for _, t := range r.Targets {
			if err := validateTarget(t); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateTarget(t Target) error {
	if t.Platform == "" {
		return status.ErrEmptyPlatform
	}
	for _, ev := range t.RequiresReboot {
		if ev != RebootOnInstall && ev != RebootOnUninstall {
			return status.ErrRebootEvent
		}
	}
	return nil
}
