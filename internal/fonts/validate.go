package fonts

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mmcdole/covergen/internal/domain"
)

// Container signatures accepted for binary font formats
var magics = [][]byte{
	{0x00, 0x01, 0x00, 0x00}, // TrueType
	[]byte("OTTO"),           // OpenType CFF
	[]byte("true"),           // Apple TrueType
	[]byte("ttcf"),           // TrueType collection
}

// WOFF containers carry a signature but cannot be rasterized
var compressedMagics = [][]byte{
	[]byte("wOFF"),
	[]byte("wOF2"),
}

const sniffLen = 512

// Validate reports whether the file at path looks like a font. Text formats are
// recognized by extension (.svg, .bdf) and checked for their header.
func Validate(path string) error {
	return validateAs(path, filepath.Ext(path))
}

// validateAs checks path as though it carried extension ext, so temporary
// downloads can be judged by their destination name.
func validateAs(path, ext string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrResourceInvalid, err)
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return fmt.Errorf("%w: %v", domain.ErrResourceInvalid, err)
	}
	head = head[:n]
	if len(head) == 0 {
		return fmt.Errorf("%w: %s is empty", domain.ErrResourceInvalid, path)
	}

	for _, m := range compressedMagics {
		if bytes.HasPrefix(head, m) {
			return fmt.Errorf("%w: %s is a WOFF font, which is not supported", domain.ErrResourceInvalid, path)
		}
	}
	if sniff(head, strings.ToLower(ext)) {
		return nil
	}
	return fmt.Errorf("%w: %s has no font signature", domain.ErrResourceInvalid, path)
}

func sniff(head []byte, ext string) bool {
	switch ext {
	case ".svg":
		trimmed := bytes.TrimLeft(head, " \t\r\n\ufeff")
		return bytes.HasPrefix(trimmed, []byte("<svg")) || bytes.HasPrefix(trimmed, []byte("<?xml"))
	case ".bdf":
		return bytes.HasPrefix(head, []byte("STARTFONT"))
	}
	for _, m := range magics {
		if bytes.HasPrefix(head, m) {
			return true
		}
	}
	return false
}
