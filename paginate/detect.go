package paginate

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"
)

type srcEncoding int

const (
	encUnknown srcEncoding = iota
	encUTF8
	encUTF16BigEndian
	encUTF16LittleEndian
	encUTF32BigEndian
	encUTF32LittleEndian
)

func isUTF8BOM3(buf []byte) bool {
	return len(buf) >= 3 && buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF
}

func isUTF16BigEndianBOM2(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == 0xFE && buf[1] == 0xFF
}

func isUTF16LittleEndianBOM2(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == 0xFF && buf[1] == 0xFE
}

func isUTF32BigEndianBOM4(buf []byte) bool {
	return len(buf) >= 4 && buf[0] == 0x00 && buf[1] == 0x00 && buf[2] == 0xFE && buf[3] == 0xFF
}

func isUTF32LittleEndianBOM4(buf []byte) bool {
	return len(buf) >= 4 && buf[0] == 0xFF && buf[1] == 0xFE && buf[2] == 0x00 && buf[3] == 0x00
}

// detectUTF sniffs the byte order mark at the beginning of the buffer. Order
// matters: UTF-32 LE starts with the same two bytes as UTF-16 LE.
func detectUTF(buf []byte) srcEncoding {
	switch {
	case isUTF32BigEndianBOM4(buf):
		return encUTF32BigEndian
	case isUTF32LittleEndianBOM4(buf):
		return encUTF32LittleEndian
	case isUTF8BOM3(buf):
		return encUTF8
	case isUTF16BigEndianBOM2(buf):
		return encUTF16BigEndian
	case isUTF16LittleEndianBOM2(buf):
		return encUTF16LittleEndian
	}
	return encUnknown
}

// selectReader wraps the raw source in a decoder when BOM detection saw a
// multi-byte encoding. The XML parser handles declared single-byte charsets
// itself, so everything else passes through with only the BOM stripped.
func selectReader(r io.Reader, enc srcEncoding) io.Reader {
	var dec *encoding.Decoder
	switch enc {
	case encUTF16BigEndian:
		dec = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
	case encUTF16LittleEndian:
		dec = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
	case encUTF32BigEndian:
		dec = utf32.UTF32(utf32.BigEndian, utf32.ExpectBOM).NewDecoder()
	case encUTF32LittleEndian:
		dec = utf32.UTF32(utf32.LittleEndian, utf32.ExpectBOM).NewDecoder()
	case encUTF8:
		dec = unicode.UTF8BOM.NewDecoder()
	default:
		return r
	}
	return transform.NewReader(r, dec)
}

// hasBookRoot reports whether the buffer looks like the beginning of a book
// source document regardless of leading XML declaration and whitespace.
func hasBookRoot(buf []byte) bool {
	return bytes.Contains(buf, []byte("<book")) || bytes.Contains(buf, []byte("<?xml"))
}

func hasBookExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".book", ".xml":
		return true
	}
	return false
}

// isArchiveFile checks if the file at the given path is a supported (zip)
// archive using content based detection, not just the extension.
func isArchiveFile(path string) (bool, error) {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return false, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, 262)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return false, err
	}
	return filetype.IsType(buf[:n], matchers.TypeZip), nil
}

// isBookFile checks if the file at the given path looks like a book source
// document and detects its unicode encoding.
func isBookFile(path string) (bool, srcEncoding, error) {
	if !hasBookExt(path) {
		return false, encUnknown, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return false, encUnknown, err
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return false, encUnknown, err
	}
	buf = buf[:n]

	enc := detectUTF(buf)
	switch enc {
	case encUnknown, encUTF8:
		if !hasBookRoot(buf) {
			return false, encUnknown, nil
		}
	default:
		// multi-byte encodings cannot be sniffed as plain text, trust the
		// extension and let the parser sort it out
	}
	return true, enc, nil
}

// isBookInArchive performs the same check as isBookFile for a zip entry.
func isBookInArchive(f *zip.File) (bool, srcEncoding, error) {
	if !hasBookExt(f.FileHeader.Name) {
		return false, encUnknown, nil
	}
	r, err := f.Open()
	if err != nil {
		return false, encUnknown, err
	}
	defer r.Close()

	buf := make([]byte, 512)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false, encUnknown, err
	}
	buf = buf[:n]

	enc := detectUTF(buf)
	switch enc {
	case encUnknown, encUTF8:
		if !hasBookRoot(buf) {
			return false, encUnknown, nil
		}
	}
	return true, enc, nil
}
