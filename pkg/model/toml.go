package model

import (
	"github.com/pelletier/go-toml"
)

// MarshalDescriptor serializes a descriptor to the TOML index file format.
func MarshalDescriptor(d PackageDescriptor) ([]byte, error) {
	return toml.Marshal(d)
}

// UnmarshalDescriptor parses a TOML index file into a descriptor.
func UnmarshalDescriptor(data []byte) (PackageDescriptor, error) {
	var d PackageDescriptor
	if err := toml.Unmarshal(data, &d); err != nil {
		return PackageDescriptor{}, err
	}
	return d, nil
}
