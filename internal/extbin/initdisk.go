package extbin

import (
	"context"
	"os"
	"path/filepath"

	"github.com/virshle/virshle/internal/virrors"
)

// BuildInitDisk creates a small VFAT image at path, mounts it with loop,
// copies the files in userData (destination-relative-path -> contents) into
// it, and unmounts. All steps must succeed; per spec.md §4.3 a failure at
// any step is reported with the command's stderr as help text.
func BuildInitDisk(ctx context.Context, path string, sizeMB int, userData map[string][]byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return virrors.Wrap(err, "couldn't create init disk directory", "")
	}

	f, err := os.Create(path)
	if err != nil {
		return virrors.Wrap(err, "couldn't create init disk image", "")
	}
	if err := f.Truncate(int64(sizeMB) * 1024 * 1024); err != nil {
		f.Close()
		return virrors.Wrap(err, "couldn't size init disk image", "")
	}
	f.Close()

	if _, err := Run(ctx, "mkfs.vfat", path); err != nil {
		return err
	}

	mountPoint, err := os.MkdirTemp("", "virshle-init-disk-*")
	if err != nil {
		return virrors.Wrap(err, "couldn't create mount point", "")
	}
	defer os.RemoveAll(mountPoint)

	if _, err := Run(ctx, "mount", "-o", "loop", path, mountPoint); err != nil {
		return err
	}
	defer Run(ctx, "umount", mountPoint)

	for name, contents := range userData {
		dest := filepath.Join(mountPoint, name)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return virrors.Wrap(err, "couldn't create init disk subdirectory", name)
		}
		if err := os.WriteFile(dest, contents, 0o644); err != nil {
			return virrors.Wrap(err, "couldn't write init disk file", name)
		}
	}

	return nil
}
