package wasmdeploy

import (
	"bytes"
	"fmt"
	"os"

	"github.com/CosmWasm/wasmd/x/wasm/ioutils"
	"github.com/klauspost/compress/gzip"
)

// CompressWasm gzips raw wasm bytecode for upload. Input that is already
// gzipped is returned unchanged.
func CompressWasm(code []byte) ([]byte, error) {
	if isGzip(code) {
		return code, nil
	}
	if !isWasm(code) {
		return nil, ErrInvalidWasm
	}

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("gzip writer: %w", err)
	}
	if _, err := zw.Write(code); err != nil {
		return nil, fmt.Errorf("gzip wasm: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("gzip wasm: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadWasm loads a contract binary from disk and checks it is wasm or
// gzipped wasm.
func ReadWasm(path string) ([]byte, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wasm: %w", err)
	}
	if !isWasm(code) && !isGzip(code) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWasm, path)
	}
	return code, nil
}

// ioutils indexes the header without a length check.
func isWasm(code []byte) bool {
	return len(code) >= 4 && ioutils.IsWasm(code)
}

func isGzip(code []byte) bool {
	return len(code) >= 3 && ioutils.IsGzip(code)
}
