package item

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

const fingerprintVersion = "kash:item:v1"

// Fingerprint identifies an item by its type, format and content. It does not
// depend on the title, store path or timestamps, so renaming a file keeps its
// identity while editing the body changes it.
func (it *Item) Fingerprint() string {
	h := sha256.New()
	writeField(h, fingerprintVersion)
	writeField(h, string(it.Type))
	writeField(h, string(it.Format))
	writeField(h, it.identity())
	return hex.EncodeToString(h.Sum(nil))
}

// identity selects the content that defines the item.
func (it *Item) identity() string {
	switch {
	case it.Body != "":
		return "body:" + it.Body
	case it.URL != "":
		return "url:" + CanonicalizeURL(it.URL)
	case it.ContentHash != "":
		return "payload:" + it.ContentHash
	default:
		return "title:" + it.Title
	}
}

// writeField length-prefixes each field so adjacent fields cannot collide.
func writeField(w io.Writer, s string) {
	var n [8]byte
	l := uint64(len(s))
	for i := range n {
		n[i] = byte(l >> (8 * i))
	}
	_, _ = w.Write(n[:])
	_, _ = io.WriteString(w, s)
}

// Short abbreviates a fingerprint for display.
func Short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

// HashBytes returns the hex sha256 of b.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashFile returns the hex sha256 of the file at p.
func HashFile(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
