package backend

import "errors"

var (
	// ErrBackendUnavailable is returned by New for a transport kind this
	// build recognizes but does not implement.
	ErrBackendUnavailable = errors.New("backend: transport not available in this build")
	// ErrUnknownScheme is returned by Resolve for a URI scheme it does
	// not recognize at all.
	ErrUnknownScheme = errors.New("backend: unknown URI scheme")
	// ErrUnknownEnvBackend is returned internally when HORUS_BACKEND
	// names a value parseEnvBackend doesn't recognize; callers see a warning and
	// the local fallback instead of this error.
	ErrUnknownEnvBackend = errors.New("backend: unknown HORUS_BACKEND value")
)
