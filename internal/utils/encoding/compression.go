package encoding

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// CompressionLevel defines compression levels
type CompressionLevel int

const (
	CompressionLevelDefault CompressionLevel = iota
	CompressionLevelFast
	CompressionLevelBest
	CompressionLevelNone
)

// Compressor compresses whole payloads in memory
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Level() CompressionLevel
}

// GZIPCompressor implements GZIP compression
type GZIPCompressor struct {
	level int
}

// NewGZIPCompressor creates a new GZIP compressor
func NewGZIPCompressor(level CompressionLevel) *GZIPCompressor {
	var gzipLevel int
	switch level {
	case CompressionLevelFast:
		gzipLevel = gzip.BestSpeed
	case CompressionLevelBest:
		gzipLevel = gzip.BestCompression
	case CompressionLevelNone:
		gzipLevel = gzip.NoCompression
	default:
		gzipLevel = gzip.DefaultCompression
	}
	return &GZIPCompressor{level: gzipLevel}
}

// Compress compresses data using GZIP
func (g *GZIPCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, g.level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress decompresses GZIP data
func (g *GZIPCompressor) Decompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer reader.Close()

	result, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read decompressed data: %w", err)
	}

	return result, nil
}

// Level returns the compression level
func (g *GZIPCompressor) Level() CompressionLevel {
	switch g.level {
	case gzip.BestSpeed:
		return CompressionLevelFast
	case gzip.BestCompression:
		return CompressionLevelBest
	case gzip.NoCompression:
		return CompressionLevelNone
	default:
		return CompressionLevelDefault
	}
}

// NewGZIPReader wraps r so reads yield decompressed bytes. The caller closes it.
func NewGZIPReader(r io.Reader) (io.ReadCloser, error) {
	reader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	return reader, nil
}

// NewGZIPWriter wraps w so writes are compressed. Close flushes the trailer.
func NewGZIPWriter(w io.Writer, level CompressionLevel) (io.WriteCloser, error) {
	return gzip.NewWriterLevel(w, NewGZIPCompressor(level).level)
}

// CalculateCompressionRatio returns compressed/original, or 0 for empty input
func CalculateCompressionRatio(originalSize, compressedSize int64) float64 {
	if originalSize == 0 {
		return 0
	}
	return float64(compressedSize) / float64(originalSize)
}
