package objectkey

import (
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"
)

// DerivedSuffix is appended to the original key's base name to form the
// thumbnail key: photo.jpg becomes photo-th.jpg.
const DerivedSuffix = "-th"

// maxBaseRunes bounds how much of the uploaded filename is kept in a key
const maxBaseRunes = 10

// Generator defines the interface for blob key generation strategies
type Generator interface {
	// OriginalKey creates a fresh, collision-resistant key for an uploaded file
	OriginalKey(fileName string) string

	// DerivedKey maps an original key to its thumbnail key. ext replaces the
	// original extension and includes the leading dot.
	DerivedKey(originalKey, ext string) string
}

// FlatGenerator produces keys of the form <ulid>-<name><ext> at the store root.
// The ULID prefix keeps keys unique and roughly time ordered.
type FlatGenerator struct {
	Now func() time.Time
}

func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{Now: time.Now}
}

func (g *FlatGenerator) OriginalKey(fileName string) string {
	return fmt.Sprintf("%s-%s%s", newID(g.Now), BaseName(fileName), Ext(fileName))
}

func (g *FlatGenerator) DerivedKey(originalKey, ext string) string {
	return derivedName(originalKey, ext)
}

// ShardedGenerator spreads keys over shard directories taken from the end of
// the ULID, which is random, instead of the time-ordered prefix.
// Original: originals/ab/01hx...ab-photo.jpg
// Derived:  derived/ab/01hx...ab-photo-th.jpg
type ShardedGenerator struct {
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
	Now         func() time.Time
}

func NewShardedGenerator() *ShardedGenerator {
	return &ShardedGenerator{ShardLength: 2, Now: time.Now}
}

func (g *ShardedGenerator) OriginalKey(fileName string) string {
	id := newID(g.Now)
	n := g.ShardLength
	if n <= 0 || n > len(id) {
		n = 2
	}
	shard := id[len(id)-n:]
	return fmt.Sprintf("originals/%s/%s-%s%s", shard, id, BaseName(fileName), Ext(fileName))
}

func (g *ShardedGenerator) DerivedKey(originalKey, ext string) string {
	key := derivedName(originalKey, ext)
	if rest, ok := strings.CutPrefix(key, "originals/"); ok {
		return "derived/" + rest
	}
	return key
}

// CustomFuncGenerator allows users to provide their own key generation functions
type CustomFuncGenerator struct {
	OriginalFunc func(fileName string) string
	DerivedFunc  func(originalKey, ext string) string
}

func NewCustomFuncGenerator(original func(string) string, derived func(string, string) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{OriginalFunc: original, DerivedFunc: derived}
}

func (g *CustomFuncGenerator) OriginalKey(fileName string) string {
	return g.OriginalFunc(fileName)
}

func (g *CustomFuncGenerator) DerivedKey(originalKey, ext string) string {
	if g.DerivedFunc == nil {
		return derivedName(originalKey, ext)
	}
	return g.DerivedFunc(originalKey, ext)
}

// NewDefaultGenerator returns the generator used when none is configured
func NewDefaultGenerator() Generator {
	return NewFlatGenerator()
}

// Ext returns the lower-cased extension of fileName, including the dot.
func Ext(fileName string) string {
	return strings.ToLower(path.Ext(baseOf(fileName)))
}

// BaseName returns a key-safe rendition of fileName without its extension:
// at most ten characters, whitespace replaced by '-', and characters that
// are unsafe in paths replaced by '_'.
func BaseName(fileName string) string {
	name := baseOf(fileName)
	name = strings.TrimSuffix(name, path.Ext(name))

	runes := []rune(name)
	if len(runes) > maxBaseRunes {
		runes = runes[:maxBaseRunes]
	}
	for i, r := range runes {
		switch {
		case unicode.IsSpace(r):
			runes[i] = '-'
		case strings.ContainsRune(`/\:*?"<>|%#`, r), r < 0x20:
			runes[i] = '_'
		}
	}
	out := strings.Trim(string(runes), ".")
	if out == "" {
		return "image"
	}
	return out
}

func baseOf(fileName string) string {
	fileName = strings.ReplaceAll(fileName, "\\", "/")
	return path.Base(fileName)
}

func derivedName(originalKey, ext string) string {
	base := strings.TrimSuffix(originalKey, path.Ext(originalKey))
	if ext == "" {
		ext = path.Ext(originalKey)
	}
	return base + DerivedSuffix + ext
}

func newID(now func() time.Time) string {
	t := time.Now()
	if now != nil {
		t = now()
	}
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String())
}
