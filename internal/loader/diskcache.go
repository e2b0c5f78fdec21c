package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"

	"github.com/sunholo/quillmod/internal/chunk"
)

// cachedModule is the disk-cache envelope: the BCDS chunk bytes plus the
// export/import tables Compile produced alongside it. Only function-free
// chunks are cached -- closures are never persisted by chunk.Serialize
// (see chunk.go), so caching a chunk with Functions would silently drop
// every function body on the next cache hit.
type cachedModule struct {
	Bytecode []byte                   `json:"bytecode"`
	Exports  []chunk.ExportDescriptor `json:"exports"`
	Imports  []chunk.Import           `json:"imports"`
}

func (l *Loader) cacheDir() string {
	if l.Config.CacheDir != "" {
		return l.Config.CacheDir
	}
	return filepath.Join(l.homeFallback(), ".quill", "cache")
}

func (l *Loader) homeFallback() string {
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return h
	}
	return "."
}

func diskCacheKey(path, src string) string {
	base := filepath.Base(path)
	sum := xxhash.Sum64String(src)
	mtime := int64(0)
	if info, err := os.Stat(path); err == nil {
		mtime = info.ModTime().UnixNano()
	}
	return fmt.Sprintf("%s-%d-%016x", base, mtime, sum)
}

// loadCompiledWithDiskCache compiles src, consulting (and populating) a
// per-file disk cache keyed by name, mtime, and content hash so repeated
// loads of an unchanged file skip the parse+compile pass.
func (l *Loader) loadCompiledWithDiskCache(path, src string) (*chunk.CompileResult, bool, error) {
	cachePath := filepath.Join(l.cacheDir(), diskCacheKey(path, src)+"."+BytecodeExt)

	if data, err := os.ReadFile(cachePath); err == nil {
		if result, err := decodeCached(data); err == nil {
			return result, true, nil
		}
	}

	result, err := compileSource(src)
	if err != nil {
		return nil, false, err
	}

	if len(result.Chunk.Functions) == 0 {
		if encoded, err := encodeCached(result); err == nil {
			if err := os.MkdirAll(l.cacheDir(), 0755); err == nil {
				_ = os.WriteFile(cachePath, encoded, 0644)
			}
		}
	}
	return result, false, nil
}

func encodeCached(result *chunk.CompileResult) ([]byte, error) {
	cm := cachedModule{
		Bytecode: result.Chunk.Serialize(),
		Exports:  result.Exports,
		Imports:  result.Imports,
	}
	return json.Marshal(cm)
}

func decodeCached(data []byte) (*chunk.CompileResult, error) {
	var cm cachedModule
	if err := json.Unmarshal(data, &cm); err != nil {
		return nil, err
	}
	c, err := chunk.Deserialize(cm.Bytecode)
	if err != nil {
		return nil, err
	}
	return &chunk.CompileResult{Chunk: c, Exports: cm.Exports, Imports: cm.Imports}, nil
}
