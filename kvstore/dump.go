package kvstore

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// Dump writes every key of src to w as a snapshot.
func Dump(src Reader, w io.Writer, o *SnapshotOptions) error {
	sw := NewSnapshotWriter(w, o)
	if err := src.Iterate(nil, sw.Append); err != nil {
		return err
	}
	return sw.Close()
}

// Restore copies every key of a snapshot into dst.
func Restore(dst Store, r *SnapshotReader) error {
	return Copy(dst, r)
}

// DumpFile writes a snapshot of src to a file at path.
func DumpFile(src Reader, path string, o *SnapshotOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "kvstore: create snapshot")
	}
	defer f.Close()

	if err := Dump(src, f, o); err != nil {
		return err
	}
	return f.Close()
}

// RestoreFile restores a snapshot file at path into dst.
func RestoreFile(dst Store, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "kvstore: open snapshot")
	}
	defer f.Close()

	fs, err := f.Stat()
	if err != nil {
		return errors.Wrap(err, "kvstore: stat snapshot")
	}

	r, err := NewSnapshotReader(f, fs.Size())
	if err != nil {
		return errors.Wrap(err, "kvstore: read snapshot")
	}
	return Restore(dst, r)
}
