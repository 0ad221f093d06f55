package genotype

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/h2non/filetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// sniffLen is the number of leading bytes inspected to detect compression.
const sniffLen = 262

// Reader streams raw genotype lines from a 23andMe export.
// Plain text, gzip and zip inputs are supported.
type Reader struct {
	reader     *bufio.Reader
	closers    []io.Closer
	lineNumber int
	shortLines int
}

// Open opens a genotype file for reading. Use "-" for stdin.
// Compression is detected from the file content, not its name.
func Open(path string) (*Reader, error) {
	if path == "-" {
		return NewReader(os.Stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open genotype file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat genotype file: %w", err)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		file.Close()
		return nil, fmt.Errorf("read genotype header: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("seek genotype file: %w", err)
	}

	r := &Reader{closers: []io.Closer{file}}

	switch detectFormat(head[:n]) {
	case "zip":
		entry, err := openZipEntry(file, stat.Size())
		if err != nil {
			file.Close()
			return nil, err
		}
		r.closers = append(r.closers, entry)
		r.reader = bufio.NewReader(entry)
	case "gz":
		gz, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		r.closers = append(r.closers, gz)
		r.reader = bufio.NewReader(gz)
	default:
		r.reader = bufio.NewReader(file)
	}

	return r, nil
}

// NewReader creates a Reader from an io.Reader (e.g., stdin).
// Zip archives are buffered in memory since they need random access.
func NewReader(in io.Reader) (*Reader, error) {
	br := bufio.NewReader(in)
	head, _ := br.Peek(sniffLen)

	r := &Reader{}
	switch detectFormat(head) {
	case "zip":
		data, err := io.ReadAll(br)
		if err != nil {
			return nil, fmt.Errorf("read zip archive: %w", err)
		}
		entry, err := openZipEntry(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, entry)
		r.reader = bufio.NewReader(entry)
	case "gz":
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		r.closers = append(r.closers, gz)
		r.reader = bufio.NewReader(gz)
	default:
		r.reader = br
	}

	return r, nil
}

// detectFormat returns "zip", "gz" or "" for plain text.
func detectFormat(head []byte) string {
	kind, err := filetype.Match(head)
	if err != nil {
		return ""
	}
	switch kind.Extension {
	case "zip", "gz":
		return kind.Extension
	}
	return ""
}

// openZipEntry opens the first regular file inside a zip archive.
// 23andMe delivers exports as a zip holding a single text file.
func openZipEntry(ra io.ReaderAt, size int64) (io.ReadCloser, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("open zip archive: %w", err)
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open zip entry %s: %w", f.Name, err)
		}
		return rc, nil
	}
	return nil, &ParseError{Line: 0, Message: "zip archive contains no files"}
}

// Next reads the next data line.
// Comment and blank lines are skipped, as are lines with fewer than four
// tab-separated fields. Returns nil, nil when there are no more lines.
func (r *Reader) Next() (*RawLine, error) {
	for {
		line, err := r.reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				return nil, fmt.Errorf("read genotype line: %w", err)
			}
			if line == "" {
				return nil, nil
			}
		}
		r.lineNumber++
		if r.lineNumber == 1 {
			line = strings.TrimPrefix(line, utf8BOM)
		}

		line = strings.TrimSpace(line)
		if line == "" || line[0] == '#' {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 4 {
			r.shortLines++
			continue
		}

		return &RawLine{
			RSID:     fields[0],
			Chrom:    fields[1],
			Pos:      fields[2],
			Genotype: fields[3],
			Line:     r.lineNumber,
		}, nil
	}
}

// LineNumber returns the number of lines consumed so far.
func (r *Reader) LineNumber() int {
	return r.lineNumber
}

// ShortLines returns how many lines were skipped for having fewer than four fields.
func (r *Reader) ShortLines() int {
	return r.shortLines
}

// Close closes the reader and any underlying decompressors and files.
func (r *Reader) Close() error {
	var firstErr error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.closers = nil
	return firstErr
}

const utf8BOM = "\ufeff"

// ParseError represents an error reading genotype input with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("genotype parse error at line %d: %s", e.Line, e.Message)
}
