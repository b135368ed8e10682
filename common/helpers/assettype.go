package helpers

import (
	"mime"
	"net/url"
	"regexp"
	"strings"
	"sync"
)

type AssetType string

const (
	ASSET_TYPE_VIDEO AssetType = "video"
	ASSET_TYPE_AUDIO AssetType = "audio"
	ASSET_TYPE_IMAGE AssetType = "image"
	ASSET_TYPE_OTHER AssetType = "other"
)

var FileExtensionExtractor = regexp.MustCompile("(\\.[^\\./]+)$")
var once sync.Once

/**
works out what kind of media the given asset url refers to, from its file extension.
query strings and fragments are ignored
*/
func AssetTypeForUrl(assetUrl string) AssetType {
	once.Do(func() {
		mime.AddExtensionType(".mp4", "video/mp4")
		mime.AddExtensionType(".webm", "video/webm")
		mime.AddExtensionType(".mov", "video/quicktime")
	})

	path := assetUrl
	if parsed, err := url.Parse(assetUrl); err == nil {
		path = parsed.Path
	}

	matches := FileExtensionExtractor.FindStringSubmatch(path)
	if matches == nil {
		return ASSET_TYPE_OTHER
	}
	return AssetTypeForMime(mime.TypeByExtension(strings.ToLower(matches[1])))
}

func AssetTypeForMime(mimeType string) AssetType {
	if strings.HasPrefix(mimeType, "video/") {
		return ASSET_TYPE_VIDEO
	} else if strings.HasPrefix(mimeType, "audio/") {
		return ASSET_TYPE_AUDIO
	} else if strings.HasPrefix(mimeType, "image/") {
		return ASSET_TYPE_IMAGE
	} else {
		return ASSET_TYPE_OTHER
	}
}
