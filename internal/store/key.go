package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// KeyInputs are the semantic inputs that determine a cache key. Two requests
// with equal KeyInputs must produce the same key regardless of model,
// working directory, or call timing.
type KeyInputs struct {
	Description      string
	DataVariableName string
	DataShape        DataShape
	Contract         Contract
	Theme            string
}

// keyPayload is the canonical JSON form hashed into the cache key. Field
// order is fixed by the struct; map-valued inputs are reduced to signatures
// first so iteration order cannot leak in.
type keyPayload struct {
	Description      string `json:"description"`
	DataVariableName string `json:"data_variable_name"`
	Rows             int    `json:"rows"`
	Cols             int    `json:"cols"`
	ExportsSignature string `json:"exports_signature"`
	ImportsSignature string `json:"imports_signature"`
	ThemeSignature   string `json:"theme_signature"`
}

// CacheKey computes the full hex SHA-256 cache key for a request.
func CacheKey(in KeyInputs) string {
	payload := keyPayload{
		Description:      NormalizeDescription(in.Description),
		DataVariableName: in.DataVariableName,
		Rows:             in.DataShape.Rows,
		Cols:             in.DataShape.Cols,
		ExportsSignature: ContractSignature(in.Contract.Exports),
		ImportsSignature: ContractSignature(in.Contract.Imports),
		ThemeSignature:   ThemeSignature(in.Theme),
	}
	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ShortHash returns the 10-character prefix used in artifact IDs and
// payload file names.
func ShortHash(fullHash string) string {
	if len(fullHash) < 10 {
		return fullHash
	}
	return fullHash[:10]
}

// NormalizeDescription collapses whitespace and lowercases so cosmetic
// edits to a description still hit the cache.
func NormalizeDescription(desc string) string {
	return strings.ToLower(strings.Join(strings.Fields(desc), " "))
}

// ContractSignature hashes a name->description map into a short stable
// signature. Pairs are sorted by name before hashing. Empty or nil maps
// yield an empty signature.
func ContractSignature(decls map[string]string) string {
	if len(decls) == 0 {
		return ""
	}
	names := make([]string, 0, len(decls))
	for name := range decls {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		fmt.Fprintf(h, "%s=%s\n", name, strings.TrimSpace(decls[name]))
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}

// ThemeSignature hashes a normalized theme description. Empty themes yield
// an empty signature.
func ThemeSignature(theme string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(theme), " "))
	if norm == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])[:12]
}

var slugStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "for": true, "with": true,
	"and": true, "or": true, "to": true, "in": true, "on": true, "by": true,
	"that": true, "this": true, "show": true, "showing": true, "display": true,
	"displaying": true, "create": true, "make": true, "me": true, "using": true,
	"please": true, "widget": true,
}

// Slug derives a filesystem-friendly stem from a widget description.
// Stop words are dropped, at most eight tokens survive, and the result is
// capped at 40 characters. Short slugs get the data variable name appended
// for disambiguation. Falls back to "widget" when nothing survives.
func Slug(description, dataVariableName string) string {
	var tokens []string
	for _, word := range strings.Fields(strings.ToLower(description)) {
		word = keepAlnum(word)
		if word == "" || slugStopWords[word] {
			continue
		}
		tokens = append(tokens, word)
		if len(tokens) == 8 {
			break
		}
	}

	slug := strings.Join(tokens, "_")
	if len(slug) > 40 {
		slug = slug[:40]
	}
	// Short slugs get the data variable appended for disambiguation, unless
	// the description already mentions it
	dataVar := keepAlnum(strings.ToLower(dataVariableName))
	if len(slug) < 35 && dataVar != "" && !hasToken(tokens, dataVar) {
		slug = slug + "_" + dataVar
		if len(slug) > 40 {
			slug = slug[:40]
		}
	}
	slug = strings.Trim(slug, "_")
	if slug == "" {
		return "widget"
	}
	return slug
}

func hasToken(tokens []string, want string) bool {
	for _, t := range tokens {
		if t == want {
			return true
		}
	}
	return false
}

func keepAlnum(word string) string {
	var b strings.Builder
	for _, r := range word {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FileNameFor builds the payload file name for an artifact version.
func FileNameFor(slug, shortHash string, version int) string {
	return fmt.Sprintf("%s__%s__v%d.js", slug, shortHash, version)
}
