package pyruntime

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"testing"
)

// noopModule is a wasm module whose _start returns immediately.
var noopModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// type: () -> ()
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
	// function 0 has type 0
	0x03, 0x02, 0x01, 0x00,
	// export "_start" = function 0
	0x07, 0x0a, 0x01, 0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x00,
	// body: end
	0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b,
}

// exitModule is a wasm module whose _start calls proc_exit(3).
var exitModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// types: () -> (), (i32) -> ()
	0x01, 0x08, 0x02, 0x60, 0x00, 0x00, 0x60, 0x01, 0x7f, 0x00,
	// import wasi_snapshot_preview1.proc_exit with type 1
	0x02, 0x24, 0x01,
	0x16, 'w', 'a', 's', 'i', '_', 's', 'n', 'a', 'p', 's', 'h', 'o', 't', '_', 'p', 'r', 'e', 'v', 'i', 'e', 'w', '1',
	0x09, 'p', 'r', 'o', 'c', '_', 'e', 'x', 'i', 't',
	0x00, 0x01,
	// function 1 has type 0
	0x03, 0x02, 0x01, 0x00,
	// export "_start" = function 1
	0x07, 0x0a, 0x01, 0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x01,
	// body: i32.const 3; call 0; end
	0x0a, 0x08, 0x01, 0x06, 0x00, 0x41, 0x03, 0x10, 0x00, 0x0b,
}

// spinModule is a wasm module whose _start loops forever.
var spinModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x0a, 0x01, 0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x00,
	// body: loop; br 0; end; end
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x03, 0x40, 0x0c, 0x00, 0x0b, 0x0b,
}

type tarEntry struct {
	name     string
	body     []byte
	typeflag byte
	linkname string
}

func makeTarGz(t *testing.T, entries ...tarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)

	for _, e := range entries {
		typeflag := e.typeflag
		if typeflag == 0 {
			typeflag = tar.TypeReg
		}
		hdr := &tar.Header{
			Name:     e.name,
			Typeflag: typeflag,
			Linkname: e.linkname,
			Mode:     0644,
			Size:     int64(len(e.body)),
		}
		if typeflag == tar.TypeDir {
			hdr.Mode = 0755
			hdr.Size = 0
		}
		if typeflag == tar.TypeSymlink {
			hdr.Size = 0
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("WriteHeader() error: %v", err)
		}
		if hdr.Size > 0 {
			if _, err := tw.Write(e.body); err != nil {
				t.Fatalf("Write() error: %v", err)
			}
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("tar Close() error: %v", err)
	}
	if err := gzw.Close(); err != nil {
		t.Fatalf("gzip Close() error: %v", err)
	}
	return buf.Bytes()
}
