package model

import (
	"fmt"

	"github.com/divvun/pahkat-reposrv/pkg/model/status"
)

// PackagePatch is the strongly-typed partial update applied by the PATCH
// surface. Absent fields leave the corresponding descriptor attribute
// untouched; locale maps merge additively while tags replace wholesale.
type PackagePatch struct {
	Name        LangTagMap `json:"name,omitempty"`
	Description LangTagMap `json:"description,omitempty"`
	Tags        *[]string  `json:"tags,omitempty"`
	Version     string     `json:"version,omitempty"`
	Channel     string     `json:"channel,omitempty"`
	Authors     []string   `json:"authors,omitempty"`
	License     string     `json:"license,omitempty"`
	LicenseURL  string     `json:"license_url,omitempty"`
	Target      *Target    `json:"target,omitempty"`
}

// Validate checks the patch is internally consistent before any merge.
func (p PackagePatch) Validate() error {
	if p.Target != nil {
		if p.Version == "" {
			return status.ErrNoVersion
		}
		if err := validateTarget(*p.Target); err != nil {
			return err
		}
	}
	return nil
}

// CommitSummary renders the subject recorded in the store history for
// this patch: the package id followed by the patched release key, or the
// id alone for a metadata-only patch.
func (p PackagePatch) CommitSummary(packageID string) string {
	if p.Target == nil {
		return packageID
	}
	channel := p.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	return fmt.Sprintf("%s %s %s (%s)", packageID, p.Version, p.Target.Platform, channel)
}

// Patched merges the patch into a copy of the descriptor and returns it.
// The receiver is never modified.
func (d PackageDescriptor) Patched(p PackagePatch) PackageDescriptor {
	out := d.Copy()

	if len(p.Name) > 0 {
		if out.Name == nil {
			out.Name = make(LangTagMap, len(p.Name))
		}
		for tag, s := range p.Name {
			out.Name[tag] = s
		}
	}
	if len(p.Description) > 0 {
		if out.Description == nil {
			out.Description = make(LangTagMap, len(p.Description))
		}
		for tag, s := range p.Description {
			out.Description[tag] = s
		}
	}
	if p.Tags != nil {
		out.Tags = copyStrings(*p.Tags)
	}
	if p.Target != nil {
		out.upsertTarget(p)
	}
	return out
}

// upsertTarget places the patched target inside the release keyed by
// (version, channel), appending a new release when none matches and
// replacing an existing target with the same platform.
func (d *PackageDescriptor) upsertTarget(p PackagePatch) {
	target := p.Target.Copy()

	for i, r := range d.Releases {
		if !r.KeyMatches(p.Version, p.Channel) {
			continue
		}
		release := &d.Releases[i]
		applyReleaseMeta(release, p)
		for j, t := range release.Targets {
			if t.Platform == target.Platform {
				release.Targets[j] = target
				return
			}
		}
		release.Targets = append(release.Targets, target)
		return
	}

	release := Release{
		Version: p.Version,
		Channel: normalizeChannel(p.Channel),
		Targets: []Target{target},
	}
	applyReleaseMeta(&release, p)
	d.Releases = append(d.Releases, release)
}

func applyReleaseMeta(r *Release, p PackagePatch) {
	if len(p.Authors) > 0 {
		r.Authors = copyStrings(p.Authors)
	}
	if p.License != "" {
		r.License = p.License
	}
	if p.LicenseURL != "" {
		r.LicenseURL = p.LicenseURL
	}
}

// normalizeChannel keeps stable releases channel-free on disk, matching
// the descriptors already in the store.
func normalizeChannel(channel string) string {
	if channel == DefaultChannel {
		return ""
	}
	return channel
}
