package engine

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// documentIDPrefix marks document ids that were derived from storage paths.
const documentIDPrefix = "f:"

// PathCodec derives canonical lock keys and document ids from storage
// paths. Both the file-event and replication-intake entry points must go
// through the same codec so they can never compute diverging keys for the
// same logical file.
type PathCodec struct {
	// CaseInsensitive folds paths to lower case before any derivation,
	// for storage backends that do not distinguish case.
	CaseInsensitive bool
	// ObfuscationKey, when non-empty, replaces the readable path portion
	// of document ids with an HMAC digest. The plain path still travels
	// inside the document entry, which is what makes the id reversible.
	ObfuscationKey string
}

// Normalize returns the canonical form of a storage path: forward slashes,
// no leading slash, optional case fold.
func (c *PathCodec) Normalize(path string) string {
	p := strings.ReplaceAll(strings.TrimSpace(path), "\\", "/")
	p = strings.TrimPrefix(p, "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if c.CaseInsensitive {
		p = strings.ToLower(p)
	}
	return p
}

// DocumentID derives the stable document id for a storage path.
func (c *PathCodec) DocumentID(path string) string {
	normalized := c.Normalize(path)
	if c.ObfuscationKey == "" {
		return documentIDPrefix + normalized
	}
	mac := hmac.New(sha256.New, []byte(c.ObfuscationKey))
	mac.Write([]byte(normalized))
	return documentIDPrefix + "obf-" + hex.EncodeToString(mac.Sum(nil))
}

// PathOfEntry recovers the logical path of a document entry. Obfuscated ids
// cannot be reversed from the id alone, so the entry's Path field is
// authoritative; the id is only a fallback for legacy plain-path ids.
func (c *PathCodec) PathOfEntry(entry *MetaEntry) string {
	if entry == nil {
		return ""
	}
	if entry.Path != "" {
		return c.Normalize(entry.Path)
	}
	id := strings.TrimPrefix(entry.ID, documentIDPrefix)
	return c.Normalize(id)
}
