package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxInspectBytes caps how much of an asset is buffered for inspection.
const maxInspectBytes = 32 << 20

// AssetMeta is what the API reports about a downloadable file.
type AssetMeta struct {
	Size  int64
	Pages int
}

// Inspect stats key and, for PDFs, counts pages.
func Inspect(ctx context.Context, store ObjectStore, key string) (AssetMeta, error) {
	rc, info, err := store.Get(ctx, key)
	if err != nil {
		return AssetMeta{}, err
	}
	defer rc.Close()
	meta := AssetMeta{Size: info.Size}
	if !strings.EqualFold(strings.TrimSpace(strings.SplitN(info.ContentType, ";", 2)[0]), "application/pdf") &&
		!strings.HasSuffix(strings.ToLower(key), ".pdf") {
		return meta, nil
	}
	data, err := io.ReadAll(io.LimitReader(rc, maxInspectBytes))
	if err != nil {
		return meta, fmt.Errorf("read %s: %w", key, err)
	}
	pages, err := PDFPageCount(data)
	if err != nil {
		return meta, err
	}
	meta.Pages = pages
	return meta, nil
}

// PDFPageCount parses data as a PDF and returns its page count.
func PDFPageCount(data []byte) (n int, err error) {
	defer func() {
		// The parser panics on some malformed inputs.
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pdf: %w", err)
	}
	return reader.NumPage(), nil
}
