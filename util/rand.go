// Package util contains any functions used across the application that don't match
// any other package
package util

import (
	"crypto/rand"
	"encoding/hex"
	mrand "math/rand/v2"
	"path"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// RandStr returns a random letter string. Only used for request IDs,
// so math/rand is good enough here.
func RandStr(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = charset[mrand.IntN(len(charset))]
	}
	return string(b)
}

// BlobName generates a fresh storage name for a blob, keeping only the
// extension of the original file name
func BlobName(originalName string) string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b) + strings.ToLower(path.Ext(originalName))
}

// ShareTag generates a public share identifier
func ShareTag() string {
	return gonanoid.Must(10)
}

// UploadID generates a staging session identifier. Dashes are swapped for
// underscores so the ID is always safe to use as a directory name
func UploadID() string {
	return strings.ReplaceAll(gonanoid.Must(21), "-", "_")
}

// UnlinkTag generates the revocation token of a notification binding
func UnlinkTag() string {
	return gonanoid.Must(16)
}

// LinkTag generates the single-use activation token of a notification binding
func LinkTag() string {
	return gonanoid.Must(16)
}
