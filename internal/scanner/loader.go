package scanner

import (
	"bytes"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// LoadText reads a file and decodes its contents to UTF-8 text.
func LoadText(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return DecodeText(raw), nil
}

// DecodeText converts raw file bytes to UTF-8 text. Valid UTF-8 passes
// through with any leading BOM dropped; UTF-16 input is recognized by its
// BOM; everything else is read as Latin-1, which maps every byte, so
// decoding itself never fails.
func DecodeText(raw []byte) string {
	if utf8.Valid(raw) {
		return string(bytes.TrimPrefix(raw, bomUTF8))
	}

	if bytes.HasPrefix(raw, bomUTF16LE) {
		if text, err := decodeUTF16(raw, unicode.LittleEndian); err == nil {
			return text
		}
	}
	if bytes.HasPrefix(raw, bomUTF16BE) {
		if text, err := decodeUTF16(raw, unicode.BigEndian); err == nil {
			return text
		}
	}

	text, _ := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	return string(text)
}

func decodeUTF16(raw []byte, endianness unicode.Endianness) (string, error) {
	decoder := unicode.UTF16(endianness, unicode.UseBOM).NewDecoder()
	out, err := decoder.Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
