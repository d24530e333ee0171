package meetinginfo

import (
	"path/filepath"
	"strings"
)

var mimeExtensions = map[string]string{
	"video/mp4":        "mp4",
	"video/quicktime":  "mov",
	"video/webm":       "webm",
	"video/x-matroska": "mkv",
	"video/x-msvideo":  "avi",
	"video/mpeg":       "mpeg",
	"audio/mpeg":       "mp3",
	"audio/mp3":        "mp3",
	"audio/mp4":        "m4a",
	"audio/x-m4a":      "m4a",
	"audio/m4a":        "m4a",
	"audio/aac":        "aac",
	"audio/wav":        "wav",
	"audio/x-wav":      "wav",
	"audio/wave":       "wav",
	"audio/webm":       "webm",
	"audio/ogg":        "ogg",
	"audio/flac":       "flac",
}

// Extensions accepted as recordings when the MIME type is missing or generic.
var mediaExtensions = map[string]struct{}{
	"mp4": {}, "m4v": {}, "mov": {}, "webm": {}, "mkv": {}, "avi": {}, "mpeg": {}, "mpg": {},
	"mp3": {}, "m4a": {}, "aac": {}, "wav": {}, "ogg": {}, "oga": {}, "opus": {}, "flac": {},
}

// Slack filetype tags that do not name a usable extension.
var ambiguousFiletypes = map[string]struct{}{
	"":       {},
	"auto":   {},
	"binary": {},
	"video":  {},
	"audio":  {},
}

// Extension derives a storage file extension. A known MIME type wins, then a usable
// platform filetype tag, then the file name's own extension, then "bin".
func Extension(mimetype, filetype, name string) string {
	if ext, ok := mimeExtensions[baseMIME(mimetype)]; ok {
		return ext
	}
	tag := strings.ToLower(strings.TrimSpace(filetype))
	if _, ambiguous := ambiguousFiletypes[tag]; !ambiguous && isToken(tag) {
		return tag
	}
	if ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")); ext != "" && isToken(ext) {
		return ext
	}
	return "bin"
}

// IsMedia reports whether a shared file looks like an audio or video recording.
func IsMedia(mimetype, filetype, name string) bool {
	mime := baseMIME(mimetype)
	if strings.HasPrefix(mime, "video/") || strings.HasPrefix(mime, "audio/") {
		return true
	}
	_, ok := mediaExtensions[Extension(mimetype, filetype, name)]
	return ok
}

func baseMIME(mimetype string) string {
	mime := strings.ToLower(strings.TrimSpace(mimetype))
	if idx := strings.IndexByte(mime, ';'); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return mime
}

func isToken(value string) bool {
	if value == "" || len(value) > 10 {
		return false
	}
	for _, r := range value {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
