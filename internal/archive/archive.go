// Package archive implements the directory-of-modules ZIP container:
// module.json manifest, bytecode/<name>.qbc entries, optional
// native/<platform>/<lib> entries, optional resources/. A faster DEFLATE
// compressor from klauspost/compress is registered for every archive this
// package writes; archive/zip itself remains the container format.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"sync"

	"github.com/klauspost/compress/flate"
)

var registerCompressorOnce sync.Once

func ensureCompressorRegistered() {
	registerCompressorOnce.Do(func() {
		zip.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(w, flate.DefaultCompression)
		})
		zip.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
			return flate.NewReader(r)
		})
	})
}

const (
	ManifestEntry = "module.json"
)

// BytecodeEntry returns the archive path for a sub-module's compiled
// bytecode.
func BytecodeEntry(moduleName string) string {
	return path.Join("bytecode", moduleName+".qbc")
}

// NativeEntry returns the archive path for a native library targeting
// platform.
func NativeEntry(platform, libName string) string {
	return path.Join("native", platform, libName)
}

// Writer builds a ZIP archive in memory; Finalize returns the completed
// bytes atomically -- nothing is observable on disk until the caller writes
// the returned slice, so a writer that errors midway never leaves a partial
// archive behind.
type Writer struct {
	buf *bytes.Buffer
	zw  *zip.Writer
	err error
}

// NewWriter starts a new archive.
func NewWriter() *Writer {
	ensureCompressorRegistered()
	buf := &bytes.Buffer{}
	return &Writer{buf: buf, zw: zip.NewWriter(buf)}
}

func (w *Writer) writeEntry(name string, data []byte) {
	if w.err != nil {
		return
	}
	fw, err := w.zw.Create(name)
	if err != nil {
		w.err = err
		return
	}
	if _, err := fw.Write(data); err != nil {
		w.err = err
	}
}

// AddFile copies localPath's contents into the archive at archivePath.
func (w *Writer) AddFile(localPath, archivePath string) {
	if w.err != nil {
		return
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		w.err = fmt.Errorf("archive: add file %s: %w", localPath, err)
		return
	}
	w.writeEntry(archivePath, data)
}

// AddBytecode stores compiled bytecode for moduleName.
func (w *Writer) AddBytecode(moduleName string, data []byte) {
	w.writeEntry(BytecodeEntry(moduleName), data)
}

// AddJSON writes the manifest entry verbatim.
func (w *Writer) AddJSON(content []byte) {
	w.writeEntry(ManifestEntry, content)
}

// AddEntry writes data at an arbitrary archive-relative path, for
// containers (such as bundles) that layer additional root-level entries
// on top of the base module archive layout.
func (w *Writer) AddEntry(name string, data []byte) {
	w.writeEntry(name, data)
}

// AddNativeLib copies a native shared object for platform.
func (w *Writer) AddNativeLib(localPath, platform string) {
	if w.err != nil {
		return
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		w.err = fmt.Errorf("archive: add native lib %s: %w", localPath, err)
		return
	}
	w.writeEntry(NativeEntry(platform, path.Base(localPath)), data)
}

// AddResource stores an arbitrary resource file under resources/.
func (w *Writer) AddResource(name string, data []byte) {
	w.writeEntry(path.Join("resources", name), data)
}

// Finalize closes the ZIP writer and returns the complete archive bytes.
func (w *Writer) Finalize() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	if err := w.zw.Close(); err != nil {
		return nil, err
	}
	return w.buf.Bytes(), nil
}

// Reader reads entries back out of a finalized archive.
type Reader struct {
	zr *zip.Reader
}

// OpenReader wraps data as a Reader.
func OpenReader(data []byte) (*Reader, error) {
	ensureCompressorRegistered()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	return &Reader{zr: zr}, nil
}

func (r *Reader) find(name string) (*zip.File, bool) {
	for _, f := range r.zr.File {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

func readAll(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// ExtractJSON returns the module.json manifest bytes.
func (r *Reader) ExtractJSON() ([]byte, error) {
	f, ok := r.find(ManifestEntry)
	if !ok {
		return nil, fmt.Errorf("archive: missing %s", ManifestEntry)
	}
	return readAll(f)
}

// ExtractBytecode returns moduleName's compiled bytecode.
func (r *Reader) ExtractBytecode(moduleName string) ([]byte, error) {
	f, ok := r.find(BytecodeEntry(moduleName))
	if !ok {
		return nil, fmt.Errorf("archive: no bytecode entry for %s", moduleName)
	}
	return readAll(f)
}

// ExtractNativeLib extracts a native library for platform to outputPath.
func (r *Reader) ExtractNativeLib(platform, libName, outputPath string) error {
	f, ok := r.find(NativeEntry(platform, libName))
	if !ok {
		return fmt.Errorf("archive: no native library %s/%s", platform, libName)
	}
	data, err := readAll(f)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0755)
}

// Entries lists every entry path in the archive.
func (r *Reader) Entries() []string {
	out := make([]string, 0, len(r.zr.File))
	for _, f := range r.zr.File {
		out = append(out, f.Name)
	}
	return out
}

// ExtractEntry returns the raw bytes of an arbitrary entry path.
func (r *Reader) ExtractEntry(name string) ([]byte, error) {
	f, ok := r.find(name)
	if !ok {
		return nil, fmt.Errorf("archive: no entry %s", name)
	}
	return readAll(f)
}
