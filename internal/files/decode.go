package files

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Supported input encodings
const (
	EncodingUTF8        = "utf-8"
	EncodingLatin1      = "latin1"
	EncodingWindows1252 = "windows-1252"
)

// decodedFile couples the transforming reader with the file it reads
type decodedFile struct {
	io.Reader
	file *os.File
}

func (d *decodedFile) Close() error {
	return d.file.Close()
}

// OpenDecoded opens path and returns a reader producing UTF-8 text. A leading
// byte order mark is always consumed; legacy single-byte encodings are
// converted. UTF-8 input is otherwise passed through byte for byte, invalid
// sequences included.
func OpenDecoded(path, encoding string) (io.ReadCloser, error) {
	dec, err := decoderFor(encoding)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	return &decodedFile{Reader: transform.NewReader(f, dec), file: f}, nil
}

// CheckEncoding reports whether encoding is one OpenDecoded accepts
func CheckEncoding(encoding string) error {
	_, err := decoderFor(encoding)
	return err
}

// decoderFor maps an encoding name to a transformer
func decoderFor(encoding string) (transform.Transformer, error) {
	switch strings.ToLower(encoding) {
	case "", EncodingUTF8, "utf8":
		return unicode.BOMOverride(transform.Nop), nil
	case EncodingLatin1, "iso-8859-1":
		return unicode.BOMOverride(charmap.ISO8859_1.NewDecoder()), nil
	case EncodingWindows1252, "cp1252":
		return unicode.BOMOverride(charmap.Windows1252.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}
