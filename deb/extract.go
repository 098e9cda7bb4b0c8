package deb

import (
	"archive/tar"
	"fmt"
	"io"
	"strings"

	"github.com/blakesmith/ar"
)

// OpenDataTar locates the data.tar[.gz|.zst] member of a .deb ar archive and
// returns a tar.Reader over its decompressed contents, for callers (the
// fetch cache) that need the raw payload tree rather than a parsed Package.
// The returned closer releases the decompressor, if any, and must be called
// once the caller is done reading.
func OpenDataTar(r io.Reader) (*tar.Reader, func(), error) {
	arR := ar.NewReader(r)
	for {
		header, err := arR.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading ar header: %w", err)
		}
		if strings.HasPrefix(header.Name, "data.tar") {
			return decompressedTarReader(header.Name, arR)
		}
	}
	return nil, nil, fmt.Errorf("data.tar member not found in .deb archive")
}
