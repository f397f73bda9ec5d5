package gitstore

import "go.uber.org/zap"

// Option is a functor to build a git store with some options
type Option func(*Store)

// Logger provides a logger to the store
func Logger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.l = l
		}
	}
}

// Signature sets the author recorded on every commit
func Signature(name, email string) Option {
	return func(s *Store) {
		s.signatureName = name
		s.signatureEmail = email
	}
}

// Branch sets the branch pushed to origin after a commit
func Branch(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.branch = name
		}
	}
}

// PushToOrigin enables publishing commits to the origin remote
func PushToOrigin(enabled bool) Option {
	return func(s *Store) {
		s.push = enabled
	}
}
