package tagging

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacvorbis"
	flac "github.com/go-flac/go-flac"
)

// Meta holds the descriptive fields read from an audio file's tags.
// Fields the file does not carry are left empty.
type Meta struct {
	Title  string
	Artist string
}

// Empty reports whether no usable field was found.
func (m Meta) Empty() bool {
	return m.Title == "" && m.Artist == ""
}

// ReadTags extracts title and artist metadata from the audio file at path.
// A recognized file without tags yields a zero Meta and no error; callers
// decide how much an empty result matters.
func ReadTags(path string) (Meta, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".mp3":
		return readMP3(path)
	case ".flac":
		return readFLAC(path)
	default:
		return Meta{}, fmt.Errorf("unsupported file format: %s", ext)
	}
}

// readMP3 reads ID3v2 tags from an MP3 file. Files without an ID3 header
// parse as an empty tag, so untagged MP3s are not an error.
func readMP3(path string) (Meta, error) {
	tag, err := id3v2.Open(path, id3v2.Options{
		Parse:       true,
		ParseFrames: []string{"TIT2", "TPE1"},
	})
	if err != nil {
		return Meta{}, fmt.Errorf("failed to open MP3 file: %w", err)
	}
	defer tag.Close()

	return Meta{
		Title:  firstValue(tag.Title()),
		Artist: firstValue(tag.Artist()),
	}, nil
}

// readFLAC reads Vorbis comments from a FLAC file's metadata blocks.
func readFLAC(path string) (Meta, error) {
	f, err := flac.ParseFile(path)
	if err != nil {
		return Meta{}, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	var m Meta
	for _, block := range f.Meta {
		if block.Type != flac.VorbisComment {
			continue
		}
		cmt, err := flacvorbis.ParseFromMetaDataBlock(*block)
		if err != nil {
			return Meta{}, fmt.Errorf("failed to parse vorbis comment: %w", err)
		}
		if m.Title == "" {
			m.Title = firstComment(cmt, flacvorbis.FIELD_TITLE)
		}
		if m.Artist == "" {
			m.Artist = firstComment(cmt, flacvorbis.FIELD_ARTIST)
		}
	}
	return m, nil
}

// firstComment returns the first value of the named Vorbis comment field.
// Multiple artists are written as individual ARTIST entries, so the first
// one is the primary credit.
func firstComment(cmt *flacvorbis.MetaDataBlockVorbisComment, field string) string {
	vals, err := cmt.Get(field)
	if err != nil || len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}

// firstValue trims an ID3v2 text frame value down to its first entry.
// ID3v2.4 joins multiple values with NUL bytes.
func firstValue(s string) string {
	if i := strings.IndexByte(s, 0); i != -1 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
