// Package codec opens PGN archives, picking a decompressor from the file
// extension.
package codec

import (
	"compress/bzip2"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Kind identifies the compression of an archive.
type Kind int

const (
	Raw Kind = iota
	Zstd
	Gzip
	Bzip2
)

func (k Kind) String() string {
	switch k {
	case Zstd:
		return "zstd"
	case Gzip:
		return "gzip"
	case Bzip2:
		return "bzip2"
	default:
		return "raw"
	}
}

// Extension returns the compressed extension of k, including the dot.
func (k Kind) Extension() string {
	switch k {
	case Zstd:
		return ".zst"
	case Gzip:
		return ".gz"
	case Bzip2:
		return ".bz2"
	default:
		return ""
	}
}

// Detect returns the compression implied by the file name. Unknown
// extensions are read as raw text.
func Detect(name string) Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".zst", ".zstd":
		return Zstd
	case ".gz":
		return Gzip
	case ".bz2":
		return Bzip2
	default:
		return Raw
	}
}

// Stem returns the base name with the compression extension and one more
// extension removed: "lichess_2024-01.pgn.zst" -> "lichess_2024-01".
func Stem(name string) string {
	base := filepath.Base(name)
	if Detect(base) != Raw {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsArchive reports whether name looks like a PGN file, compressed or not.
func IsArchive(name string) bool {
	base := filepath.Base(name)
	if ext := filepath.Ext(base); Detect(base) != Raw {
		base = strings.TrimSuffix(base, ext)
	}
	return strings.EqualFold(filepath.Ext(base), ".pgn")
}

// Open opens path and returns a stream of decompressed bytes.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	rc, err := NewReader(f, Detect(path))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s stream %s: %w", Detect(path), path, err)
	}
	return &fileReader{ReadCloser: rc, f: f}, nil
}

// NewReader wraps r with the decompressor for kind. Closing the result does
// not close r.
func NewReader(r io.Reader, kind Kind) (io.ReadCloser, error) {
	switch kind {
	case Zstd:
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(0), zstd.WithDecoderMaxWindow(1<<31))
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case Gzip:
		// Multistream is on by default, so concatenated members read through.
		return gzip.NewReader(r)
	case Bzip2:
		// compress/bzip2 continues across concatenated streams.
		return io.NopCloser(bzip2.NewReader(r)), nil
	default:
		return io.NopCloser(r), nil
	}
}

type fileReader struct {
	io.ReadCloser
	f *os.File
}

func (r *fileReader) Close() error {
	err := r.ReadCloser.Close()
	if errF := r.f.Close(); err == nil {
		err = errF
	}
	return err
}
