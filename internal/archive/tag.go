package archive

import (
	"path/filepath"
	"strings"

	id3v2 "github.com/bogem/id3v2/v2"
	"github.com/rotisserie/eris"
)

// mediaArtist is written into the artist frame of tagged files so a later
// listener can tell the annotation was machine-made.
const mediaArtist = "ARCHIVE AI"

// MediaTagger annotates embedded metadata of an archived media file with
// its classification. Failures never downgrade an archival outcome.
type MediaTagger interface {
	Tag(path, category, subcategory string) error
}

// ID3Tagger writes the category into the genre frame and the subcategory
// into the album frame of MP3 files. Other extensions are ignored.
type ID3Tagger struct{}

func (ID3Tagger) Tag(path, category, subcategory string) error {
	if strings.ToLower(filepath.Ext(path)) != ".mp3" {
		return nil
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return eris.Wrapf(err, "archive: open id3 tag %s", path)
	}
	defer tag.Close()

	tag.SetGenre(category)
	tag.SetAlbum(subcategory)
	tag.SetArtist(mediaArtist)

	if err := tag.Save(); err != nil {
		return eris.Wrapf(err, "archive: save id3 tag %s", path)
	}
	return nil
}
