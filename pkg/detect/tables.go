package detect

import "bytes"

// Category classifies binary content for downstream policy decisions
type Category string

const (
	CategoryText     Category = "text"
	CategoryImage    Category = "image"
	CategoryFont     Category = "font"
	CategoryDocument Category = "document"
	CategoryArchive  Category = "archive"
	CategoryAudio    Category = "audio"
	CategoryVideo    Category = "video"
	CategoryOther    Category = "other"
)

// signature is a magic-number prefix and the category it implies
type signature struct {
	name     string
	prefix   []byte
	category Category
}

// signatures is checked in order against the head of the sample.
// Longer and more specific prefixes come first.
var signatures = []signature{
	{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, CategoryImage},
	{"gif", []byte("GIF87a"), CategoryImage},
	{"gif", []byte("GIF89a"), CategoryImage},
	{"jpeg", []byte{0xFF, 0xD8, 0xFF}, CategoryImage},
	{"webp", []byte("RIFF"), CategoryImage}, // refined by riffKind
	{"pdf", []byte("%PDF-"), CategoryDocument},
	{"zip", []byte{0x50, 0x4B, 0x03, 0x04}, CategoryArchive},
	{"gzip", []byte{0x1F, 0x8B}, CategoryArchive},
	{"bzip2", []byte("BZh"), CategoryArchive},
	{"7z", []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}, CategoryArchive},
	{"woff", []byte("wOFF"), CategoryFont},
	{"woff2", []byte("wOF2"), CategoryFont},
	{"otf", []byte("OTTO"), CategoryFont},
	{"ttf", []byte{0x00, 0x01, 0x00, 0x00}, CategoryFont},
	{"elf", []byte{0x7F, 0x45, 0x4C, 0x46}, CategoryOther},
	{"id3", []byte("ID3"), CategoryAudio},
	{"ogg", []byte("OggS"), CategoryAudio},
}

// matchSignature returns the first signature matching the sample head.
// RIFF containers are only reported when they carry a WEBP payload; WAV and
// AVI fall through to the other heuristics.
func matchSignature(sample []byte) (signature, bool) {
	for _, sig := range signatures {
		if !bytes.HasPrefix(sample, sig.prefix) {
			continue
		}
		if sig.name == "webp" {
			if len(sample) < 12 || !bytes.Equal(sample[8:12], []byte("WEBP")) {
				continue
			}
		}
		return sig, true
	}
	return signature{}, false
}

// extensionCategories maps known binary extensions (without dot, lowercase)
// to their category. Text-like formats (svg, csv, source code) are
// intentionally absent so they flow through the textual heuristics.
var extensionCategories = map[string]Category{
	// images
	"png": CategoryImage, "jpg": CategoryImage, "jpeg": CategoryImage,
	"gif": CategoryImage, "bmp": CategoryImage, "webp": CategoryImage,
	"ico": CategoryImage, "tiff": CategoryImage, "tif": CategoryImage,
	"heic": CategoryImage,
	// fonts
	"ttf": CategoryFont, "otf": CategoryFont, "woff": CategoryFont,
	"woff2": CategoryFont, "eot": CategoryFont,
	// documents
	"pdf": CategoryDocument, "doc": CategoryDocument, "docx": CategoryDocument,
	"odt": CategoryDocument, "rtf": CategoryDocument, "pages": CategoryDocument,
	"xls": CategoryDocument, "xlsx": CategoryDocument,
	"ppt": CategoryDocument, "pptx": CategoryDocument,
	// archives
	"zip": CategoryArchive, "gz": CategoryArchive, "tgz": CategoryArchive,
	"tar": CategoryArchive, "bz2": CategoryArchive, "xz": CategoryArchive,
	"7z": CategoryArchive, "rar": CategoryArchive, "jar": CategoryArchive,
	// audio
	"mp3": CategoryAudio, "wav": CategoryAudio, "ogg": CategoryAudio,
	"flac": CategoryAudio, "m4a": CategoryAudio,
	// video
	"mp4": CategoryVideo, "webm": CategoryVideo, "avi": CategoryVideo,
	"mov": CategoryVideo, "mkv": CategoryVideo,
	// executables and object code
	"exe": CategoryOther, "dll": CategoryOther, "so": CategoryOther,
	"dylib": CategoryOther, "bin": CategoryOther, "wasm": CategoryOther,
	"class": CategoryOther, "o": CategoryOther, "a": CategoryOther,
}

// convertibleDocuments lists extensions the document converter understands
var convertibleDocuments = map[string]struct{}{
	"pdf": {}, "doc": {}, "docx": {}, "odt": {}, "rtf": {}, "pages": {},
}

// extensionMimeTypes is consulted before content sniffing for the
// mimeType rule field
var extensionMimeTypes = map[string]string{
	"txt": "text/plain", "md": "text/markdown", "html": "text/html",
	"htm": "text/html", "css": "text/css", "js": "text/javascript",
	"json": "application/json", "xml": "application/xml",
	"csv": "text/csv", "yaml": "application/yaml", "yml": "application/yaml",
	"toml": "application/toml", "go": "text/x-go", "py": "text/x-python",
	"png": "image/png", "jpg": "image/jpeg", "jpeg": "image/jpeg",
	"gif": "image/gif", "svg": "image/svg+xml", "webp": "image/webp",
	"pdf": "application/pdf", "zip": "application/zip", "gz": "application/gzip",
	"mp3": "audio/mpeg", "ogg": "audio/ogg", "mp4": "video/mp4",
	"webm": "video/webm", "woff": "font/woff", "woff2": "font/woff2",
	"ttf": "font/ttf", "otf": "font/otf",
}
