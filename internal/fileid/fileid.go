// Package fileid provides the identifier strategies used for stored entities.
//
// Documents are content-addressed: their hash is the SHA-256 of the uploaded bytes.
// Chunks get a name-based UUID derived from their document, position and text.
// Everything else gets a random UUID.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/google/uuid"
)

// chunkNamespace scopes chunk ids so they never collide with other SHA1 UUIDs.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("shiryo:chunk"))

// ContentHash returns the hex SHA-256 of content. Identical bytes always yield the same hash.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// ChunkID returns a stable id for a chunk. The position is part of the name so a passage
// repeated inside one document still gets distinct ids.
func ChunkID(documentID string, position int, content string) string {
	name := documentID + "\x00" + strconv.Itoa(position) + "\x00" + content
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

// New returns a random id for documents, sessions, messages and presentations.
func New() string {
	return uuid.NewString()
}
