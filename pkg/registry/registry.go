// Package registry loads the lazily-initialized, read-only cipher-suite,
// compression-method, and rating lookup tables the TLS codec and report
// layer consult. Each table is parsed at most once, behind sync.Once, from
// JSON files embedded in the binary with //go:embed.
package registry

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"
)

//go:embed data/ciphersuites.json data/compressionmethods.json data/ratings.json
var embeddedData embed.FS

// CipherSuiteEntry is one row of data/ciphersuites.json.
type CipherSuiteEntry struct {
	ID   uint16 `json:"-"`
	Name string `json:"name"`
	KX   string `json:"kx"`
	AU   string `json:"au"`
	ENC  string `json:"enc"`
	Bits int    `json:"bits"`
	MAC  string `json:"mac"`
	Ref  string `json:"ref"`
}

// CompressionMethodEntry is one row of data/compressionmethods.json.
type CompressionMethodEntry struct {
	ID   uint8  `json:"-"`
	Name string `json:"name"`
}

// RatingVerdict mirrors data/ratings.json's {status, rating, pfs, children}
// shape, recursively, for the out-of-core rating engine (pkg/ratings).
type RatingVerdict struct {
	Status   string                   `json:"status"`
	Rating   int                      `json:"rating"`
	PFS      bool                     `json:"pfs"`
	Children map[string]RatingVerdict `json:"children,omitempty"`
}

// CipherSuiteTable is a read-only handle over the cipher-suite registry.
type CipherSuiteTable struct {
	byID map[uint16]CipherSuiteEntry
}

// Lookup resolves a 2-byte on-the-wire suite id. Unknown ids synthesize an
// advisory entry rather than failing: this registry is metadata, not a
// validity gate, so a server choosing a GREASE value or a suite absent
// from the static table must not abort the scan.
func (t *CipherSuiteTable) Lookup(id uint16) (CipherSuiteEntry, bool) {
	entry, ok := t.byID[id]
	if !ok {
		return CipherSuiteEntry{ID: id, Name: fmt.Sprintf("UNKNOWN (0x%04x)", id)}, false
	}
	return entry, true
}

// CompressionMethodTable is a read-only handle over the compression
// registry.
type CompressionMethodTable struct {
	byID map[uint8]CompressionMethodEntry
}

// Lookup resolves a 1-byte compression method id.
func (t *CompressionMethodTable) Lookup(id uint8) (CompressionMethodEntry, bool) {
	entry, ok := t.byID[id]
	if !ok {
		return CompressionMethodEntry{ID: id, Name: fmt.Sprintf("UNKNOWN (0x%02x)", id)}, false
	}
	return entry, true
}

// RatingTable is a read-only handle over data/ratings.json's tree.
type RatingTable struct {
	byCategory map[string]map[string]RatingVerdict
}

// Lookup resolves a parameter (e.g. "cipher") + setting (e.g. "AES128")
// pair to its verdict.
func (t *RatingTable) Lookup(parameter, setting string) (RatingVerdict, bool) {
	category, ok := t.byCategory[parameter]
	if !ok {
		return RatingVerdict{}, false
	}
	verdict, ok := category[setting]
	return verdict, ok
}

var (
	cipherSuitesOnce sync.Once
	cipherSuites     *CipherSuiteTable
	cipherSuitesErr  error

	compressionMethodsOnce sync.Once
	compressionMethods     *CompressionMethodTable
	compressionMethodsErr  error

	ratingsOnce sync.Once
	ratings     *RatingTable
	ratingsErr  error
)

// CipherSuites returns the process-wide cipher-suite table, parsing the
// embedded JSON on first call.
func CipherSuites() (*CipherSuiteTable, error) {
	cipherSuitesOnce.Do(func() {
		raw := map[string]CipherSuiteEntry{}
		cipherSuitesErr = loadJSON("data/ciphersuites.json", &raw)
		if cipherSuitesErr != nil {
			return
		}
		byID := make(map[uint16]CipherSuiteEntry, len(raw))
		for hexID, entry := range raw {
			id, err := parseHexID(hexID, 16)
			if err != nil {
				cipherSuitesErr = fmt.Errorf("registry: ciphersuites.json key %q: %w", hexID, err)
				return
			}
			entry.ID = uint16(id)
			byID[uint16(id)] = entry
		}
		cipherSuites = &CipherSuiteTable{byID: byID}
	})
	return cipherSuites, cipherSuitesErr
}

// CompressionMethods returns the process-wide compression-method table.
func CompressionMethods() (*CompressionMethodTable, error) {
	compressionMethodsOnce.Do(func() {
		raw := map[string]CompressionMethodEntry{}
		compressionMethodsErr = loadJSON("data/compressionmethods.json", &raw)
		if compressionMethodsErr != nil {
			return
		}
		byID := make(map[uint8]CompressionMethodEntry, len(raw))
		for hexID, entry := range raw {
			id, err := parseHexID(hexID, 8)
			if err != nil {
				compressionMethodsErr = fmt.Errorf("registry: compressionmethods.json key %q: %w", hexID, err)
				return
			}
			entry.ID = uint8(id)
			byID[uint8(id)] = entry
		}
		compressionMethods = &CompressionMethodTable{byID: byID}
	})
	return compressionMethods, compressionMethodsErr
}

// Ratings returns the process-wide rating table.
func Ratings() (*RatingTable, error) {
	ratingsOnce.Do(func() {
		raw := map[string]map[string]RatingVerdict{}
		ratingsErr = loadJSON("data/ratings.json", &raw)
		if ratingsErr != nil {
			return
		}
		ratings = &RatingTable{byCategory: raw}
	})
	return ratings, ratingsErr
}

func loadJSON(path string, out any) error {
	raw, err := embeddedData.ReadFile(path)
	if err != nil {
		return fmt.Errorf("registry: reading embedded %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("registry: parsing %s: %w", path, err)
	}
	return nil
}

func parseHexID(s string, bits int) (uint64, error) {
	var v uint64
	_, err := fmt.Sscanf(s, "%x", &v)
	if err != nil {
		return 0, err
	}
	if bits < 64 && v >= (uint64(1)<<bits) {
		return 0, fmt.Errorf("value 0x%x overflows %d bits", v, bits)
	}
	return v, nil
}
