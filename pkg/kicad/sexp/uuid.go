package sexp

import (
	"strings"

	"github.com/google/uuid"
)

// Namespace seeds the name-based UUIDs written into generated files.
var Namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/OpenTraceLab/kbmatrix"))

// StableUUID derives a UUID from the given name parts. The same parts
// always give the same UUID, so regenerated files are byte-identical.
func StableUUID(parts ...string) UUID {
	return UUID(uuid.NewSHA1(Namespace, []byte(strings.Join(parts, "/"))).String())
}
