package artifact

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Kind distinguishes the two audio blob flavors the relay stores.
type Kind string

const (
	KindInputRecording    Kind = "input"
	KindSynthesizedSpeech Kind = "speech"
)

// ContentType returns the MIME type served for artifacts of this kind.
// The relay pipeline is WAV end to end.
func (k Kind) ContentType() string {
	return "audio/wav"
}

// Ref is an opaque artifact identifier. Refs are generated, never
// caller-supplied, and are not guessable from conversation content.
type Ref string

// ErrNotFound is returned when a ref is unknown or its artifact expired.
var ErrNotFound = errors.New("artifact not found")

// Store manages ephemeral audio blobs. Artifacts are immutable after
// creation and expire according to the backend's retention policy.
type Store interface {
	Put(ctx context.Context, data []byte, kind Kind) (Ref, error)
	Get(ctx context.Context, ref Ref) ([]byte, Kind, error)
	// Delete removes the artifact. Deleting an unknown ref is a no-op.
	Delete(ctx context.Context, ref Ref) error
	Close() error
}

func newRef() Ref {
	return Ref(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
