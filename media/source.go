package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
)

// ErrNoData is returned when a FileSource has nothing to read from.
var ErrNoData = errors.New("file source has no data")

// FileSource is the byte source of one upload together with its file name and type.
type FileSource struct {
	// Name is the original file name; its extension is kept in the object key.
	Name     string
	MimeType string
	Size     int64
	Data     io.ReaderAt
}

// NewBytesSource wraps an in-memory file.
func NewBytesSource(name, mimeType string, data []byte) FileSource {
	return FileSource{
		Name:     name,
		MimeType: mimeType,
		Size:     int64(len(data)),
		Data:     bytes.NewReader(data),
	}
}

// OpenFileSource opens the file at path. When mimeType is empty it is guessed from the extension.
// The returned closer releases the file.
func OpenFileSource(path, mimeType string) (FileSource, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileSource{}, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return FileSource{}, nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return FileSource{}, nil, fmt.Errorf("%s is a directory", path)
	}

	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(path))
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return FileSource{
		Name:     filepath.Base(path),
		MimeType: mimeType,
		Size:     info.Size(),
		Data:     f,
	}, f, nil
}

func (f FileSource) validate() error {
	if f.Data == nil {
		return ErrNoData
	}
	if f.Size < 0 {
		return fmt.Errorf("file size should not be negative, got: %d", f.Size)
	}
	return nil
}
