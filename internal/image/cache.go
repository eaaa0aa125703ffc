// Package image resolves an OCI image reference into a digest-cached,
// ready-to-attach VM disk: pull the image, unpack its layers into a rootfs
// directory, then convert that rootfs into a raw disk image virshle can
// copy straight into {root}/vm/{uuid}/disk/ (SPEC_FULL.md §10 "OCI-sourced
// disk templates" — VmTemplate.Disk[].ImageRef). Grounded on the teacher's
// internal/image/cache.go digest-keyed cache (ref→digest index, atomic
// rename-into-place), generalised from caching an unpacked container rootfs
// to caching a VM disk built from one.
package image

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/virshle/virshle/internal/extbin"
)

// Cache provides digest-keyed caching of OCI-sourced disk images.
// Cache layout: {cacheDir}/sha256_{digest}.img — a populated ext4 disk.
//
// A local ref→digest index avoids hitting the registry on every vm create.
// The index is populated on first pull and reused for subsequent lookups.
type Cache struct {
	mu       sync.Mutex
	cacheDir string
	arch     string // guest CPU architecture for OCI pulls (e.g. "arm64", "amd64")
	refIndex map[string]string
}

// NewCache creates a new image cache rooted at cacheDir.
func NewCache(cacheDir string, arch string) *Cache {
	return &Cache{
		cacheDir: cacheDir,
		arch:     arch,
		refIndex: make(map[string]string),
	}
}

// DiskSizeMB is the fixed size of disks built from an OCI image. Images
// exceeding this unpacked size fail at mkfs time. A template disk's size
// field is not applied to disks built from an image.
const DiskSizeMB = 2048

// GetOrPull returns the path to a ready-to-copy disk image built from
// imageRef. If a disk already exists for that image's digest, it is
// returned without any network call.
func (c *Cache) GetOrPull(ctx context.Context, imageRef string) (diskPath, digest string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d, ok := c.refIndex[imageRef]; ok {
		if p := c.diskPathForDigest(d); fileExists(p) {
			log.Printf("image: local cache hit for %s (%s)", imageRef, d)
			return p, d, nil
		}
		delete(c.refIndex, imageRef)
	}

	if len(c.refIndex) == 0 {
		c.rebuildIndex()
		if d, ok := c.refIndex[imageRef]; ok {
			if p := c.diskPathForDigest(d); fileExists(p) {
				log.Printf("image: disk cache hit for %s (%s)", imageRef, d)
				return p, d, nil
			}
		}
	}

	log.Printf("image: resolving %s (network)", imageRef)
	result, err := Pull(ctx, imageRef, c.arch)
	if err != nil {
		return "", "", fmt.Errorf("pull %s: %w", imageRef, err)
	}
	digest = result.Digest
	c.refIndex[imageRef] = digest

	diskPath = c.diskPathForDigest(digest)
	if fileExists(diskPath) {
		log.Printf("image: cache hit for %s (%s)", imageRef, digest)
		c.writeRefFile(digest, imageRef)
		return diskPath, digest, nil
	}

	rootfsDir, err := os.MkdirTemp(c.cacheDir, "rootfs-*")
	if err != nil {
		return "", "", fmt.Errorf("create rootfs tmp dir: %w", err)
	}
	defer os.RemoveAll(rootfsDir)

	log.Printf("image: unpacking %s (%s)", imageRef, digest)
	if err := Unpack(result.Image, rootfsDir); err != nil {
		return "", "", fmt.Errorf("unpack %s: %w", imageRef, err)
	}

	tmpDisk := diskPath + ".tmp"
	os.Remove(tmpDisk)
	if err := buildDiskFromRootfs(ctx, rootfsDir, tmpDisk, DiskSizeMB); err != nil {
		os.Remove(tmpDisk)
		return "", "", fmt.Errorf("build disk for %s: %w", imageRef, err)
	}
	if err := os.Rename(tmpDisk, diskPath); err != nil {
		os.Remove(tmpDisk)
		return "", "", fmt.Errorf("rename disk into place: %w", err)
	}
	c.writeRefFile(digest, imageRef)

	log.Printf("image: cached %s at %s", imageRef, diskPath)
	return diskPath, digest, nil
}

func (c *Cache) diskPathForDigest(digest string) string {
	return filepath.Join(c.cacheDir, digestToDirName(digest)+".img")
}

func (c *Cache) writeRefFile(digest, imageRef string) {
	os.WriteFile(c.diskPathForDigest(digest)+".ref", []byte(imageRef), 0o644)
}

// rebuildIndex scans the cache directory and rebuilds ref→digest from the
// .ref sidecar files, so a restarted daemon doesn't lose its index.
func (c *Cache) rebuildIndex() {
	entries, err := os.ReadDir(c.cacheDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".img.ref") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(c.cacheDir, e.Name()))
		if err != nil {
			continue
		}
		ref := strings.TrimSpace(string(data))
		digest := strings.Replace(strings.TrimSuffix(e.Name(), ".img.ref"), "_", ":", 1)
		c.refIndex[ref] = digest
	}
	if len(c.refIndex) > 0 {
		log.Printf("image: rebuilt index from disk (%d entries)", len(c.refIndex))
	}
}

// buildDiskFromRootfs formats a sizeMB raw disk and populates it from
// rootfsDir in one step via mkfs.ext4's -d (populate-from-directory) flag,
// the same "external binary does the real work" idiom extbin uses for OVS
// and ip.
func buildDiskFromRootfs(ctx context.Context, rootfsDir, diskPath string, sizeMB int) error {
	f, err := os.Create(diskPath)
	if err != nil {
		return fmt.Errorf("create disk file: %w", err)
	}
	if err := f.Truncate(int64(sizeMB) * 1024 * 1024); err != nil {
		f.Close()
		return fmt.Errorf("truncate disk file: %w", err)
	}
	f.Close()

	if _, err := extbin.Run(ctx, "mkfs.ext4", "-q", "-d", rootfsDir, "-F", diskPath); err != nil {
		return fmt.Errorf("mkfs.ext4: %w", err)
	}
	return nil
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// digestToDirName converts a digest like "sha256:abc123" to "sha256_abc123".
func digestToDirName(digest string) string {
	return strings.Replace(digest, ":", "_", 1)
}
