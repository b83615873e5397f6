// Package archive builds reproducible compressed archives with
// collision-safe destination handling. Members are enumerated in a
// stable lexical order, archives are assembled in a temp file and
// published atomically, and an existing destination is never
// overwritten.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/google/uuid"

	"github.com/mpataki/saferun/internal/exitcode"
)

type Format string

const (
	TarGz  Format = "tar.gz"
	TarBz2 Format = "tar.bz2"
	Zip    Format = "zip"
)

// Job is one archive request, consumed synchronously.
type Job struct {
	SourceDir string
	DestPath  string
	// Format overrides extension sniffing when non-empty.
	Format Format
	// Strict aborts on any destination collision instead of
	// auto-suffixing.
	Strict bool
}

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case TarGz, TarBz2, Zip:
		return Format(s), nil
	default:
		return "", exitcode.New(exitcode.Usage, "unsupported archive format %q (want tar.gz, tar.bz2 or zip)", s)
	}
}

// Build creates the archive and returns the path actually written,
// which differs from Job.DestPath when auto-suffixing resolved a
// collision. Failures carry taxonomy codes: 2 for bad input, 40 for a
// strict-mode collision, 50 for traversal or compression IO errors.
func Build(job Job) (string, error) {
	info, err := os.Stat(job.SourceDir)
	if errors.Is(err, fs.ErrNotExist) {
		return "", exitcode.New(exitcode.Usage, "source does not exist: %s", job.SourceDir)
	}
	if err != nil {
		return "", exitcode.New(exitcode.Usage, "cannot stat source %s: %v", job.SourceDir, err)
	}
	if !info.IsDir() {
		return "", exitcode.New(exitcode.Usage, "source is not a directory: %s", job.SourceDir)
	}

	format := job.Format
	if format == "" {
		format, err = sniffFormat(job.DestPath)
		if err != nil {
			return "", err
		}
	}

	// Fail early in strict mode; the atomic publish below still
	// protects against a collision that appears after this check.
	if job.Strict {
		if _, err := os.Lstat(job.DestPath); err == nil {
			return "", exitcode.New(exitcode.ArchiveCollision, "destination already exists (strict mode): %s", job.DestPath)
		}
	}

	members, err := enumerate(job.SourceDir)
	if err != nil {
		return "", err
	}

	destDir := filepath.Dir(job.DestPath)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", exitcode.New(exitcode.ArchiveIO, "create destination directory %s: %v", destDir, err)
	}

	tmp := filepath.Join(destDir, fmt.Sprintf(".%s.tmp-%s", filepath.Base(job.DestPath), uuid.NewString()))
	if err := writeArchive(tmp, job.SourceDir, members, format); err != nil {
		os.Remove(tmp)
		return "", err
	}
	defer os.Remove(tmp)

	final, err := publish(tmp, job.DestPath, job.Strict)
	if err != nil {
		return "", err
	}
	return final, nil
}

// publish links the finished temp file into place. os.Link fails when
// the destination exists, which makes the collision check and the
// create one atomic operation even across concurrent invocations.
func publish(tmp, dest string, strict bool) (string, error) {
	stem, ext := splitArchiveExt(dest)
	candidate := dest
	for n := 1; ; n++ {
		err := os.Link(tmp, candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", exitcode.New(exitcode.ArchiveIO, "publish %s: %v", candidate, err)
		}
		if strict {
			return "", exitcode.New(exitcode.ArchiveCollision, "destination already exists (strict mode): %s", candidate)
		}
		candidate = fmt.Sprintf("%s.%d%s", stem, n, ext)
	}
}

// enumerate walks the source and returns member paths relative to it,
// slash-separated and lexically sorted, so identical trees always yield
// identical member order.
func enumerate(sourceDir string) ([]string, error) {
	var members []string
	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return exitcode.New(exitcode.ArchiveIO, "traverse %s: %v", path, err)
		}
		if path == sourceDir {
			return nil
		}
		if !d.IsDir() && !d.Type().IsRegular() {
			// Sockets, devices, symlinks: not representable in all
			// three formats, so not archived in any.
			return nil
		}
		rel, rerr := filepath.Rel(sourceDir, path)
		if rerr != nil {
			return exitcode.New(exitcode.ArchiveIO, "relativize %s: %v", path, rerr)
		}
		members = append(members, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(members)
	return members, nil
}

func sniffFormat(dest string) (Format, error) {
	lower := strings.ToLower(dest)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return TarGz, nil
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"):
		return TarBz2, nil
	case strings.HasSuffix(lower, ".zip"):
		return Zip, nil
	default:
		return "", exitcode.New(exitcode.Usage, "unsupported archive extension (want .tar.gz, .tar.bz2 or .zip): %s", dest)
	}
}

// splitArchiveExt splits a destination into stem and archive extension,
// treating the compound tar extensions as one unit so suffixes land
// before them: out.tar.gz -> out.1.tar.gz.
func splitArchiveExt(dest string) (stem, ext string) {
	lower := strings.ToLower(dest)
	for _, known := range []string{".tar.gz", ".tar.bz2", ".tgz", ".tbz2", ".zip"} {
		if strings.HasSuffix(lower, known) {
			return dest[:len(dest)-len(known)], dest[len(dest)-len(known):]
		}
	}
	e := filepath.Ext(dest)
	return dest[:len(dest)-len(e)], e
}

func writeArchive(tmp, sourceDir string, members []string, format Format) error {
	f, err := os.Create(tmp)
	if err != nil {
		return exitcode.New(exitcode.ArchiveIO, "create %s: %v", tmp, err)
	}

	switch format {
	case TarGz:
		gz := gzip.NewWriter(f)
		if err := writeTar(gz, sourceDir, members); err != nil {
			gz.Close()
			f.Close()
			return err
		}
		if err := gz.Close(); err != nil {
			f.Close()
			return exitcode.New(exitcode.ArchiveIO, "finalize gzip stream: %v", err)
		}
	case TarBz2:
		bz, err := bzip2.NewWriter(f, nil)
		if err != nil {
			f.Close()
			return exitcode.New(exitcode.ArchiveIO, "initialize bzip2 stream: %v", err)
		}
		if err := writeTar(bz, sourceDir, members); err != nil {
			bz.Close()
			f.Close()
			return err
		}
		if err := bz.Close(); err != nil {
			f.Close()
			return exitcode.New(exitcode.ArchiveIO, "finalize bzip2 stream: %v", err)
		}
	case Zip:
		if err := writeZip(f, sourceDir, members); err != nil {
			f.Close()
			return err
		}
	}

	if err := f.Close(); err != nil {
		return exitcode.New(exitcode.ArchiveIO, "close %s: %v", tmp, err)
	}
	return nil
}

func writeTar(w io.Writer, sourceDir string, members []string) error {
	tw := tar.NewWriter(w)
	for _, rel := range members {
		full := filepath.Join(sourceDir, filepath.FromSlash(rel))
		info, err := os.Stat(full)
		if err != nil {
			return exitcode.New(exitcode.ArchiveIO, "stat %s: %v", full, err)
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return exitcode.New(exitcode.ArchiveIO, "header for %s: %v", full, err)
		}
		hdr.Name = rel
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return exitcode.New(exitcode.ArchiveIO, "write header for %s: %v", rel, err)
		}
		if info.IsDir() {
			continue
		}
		if err := copyInto(tw, full); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return exitcode.New(exitcode.ArchiveIO, "finalize tar stream: %v", err)
	}
	return nil
}

func writeZip(w io.Writer, sourceDir string, members []string) error {
	zw := zip.NewWriter(w)
	for _, rel := range members {
		full := filepath.Join(sourceDir, filepath.FromSlash(rel))
		info, err := os.Stat(full)
		if err != nil {
			return exitcode.New(exitcode.ArchiveIO, "stat %s: %v", full, err)
		}

		fh, err := zip.FileInfoHeader(info)
		if err != nil {
			return exitcode.New(exitcode.ArchiveIO, "header for %s: %v", full, err)
		}
		fh.Name = rel
		if info.IsDir() {
			fh.Name += "/"
			if _, err := zw.CreateHeader(fh); err != nil {
				return exitcode.New(exitcode.ArchiveIO, "add directory %s: %v", rel, err)
			}
			continue
		}
		fh.Method = zip.Deflate
		entry, err := zw.CreateHeader(fh)
		if err != nil {
			return exitcode.New(exitcode.ArchiveIO, "add file %s: %v", rel, err)
		}
		if err := copyInto(entry, full); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return exitcode.New(exitcode.ArchiveIO, "finalize zip stream: %v", err)
	}
	return nil
}

func copyInto(dst io.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return exitcode.New(exitcode.ArchiveIO, "open %s: %v", path, err)
	}
	defer src.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return exitcode.New(exitcode.ArchiveIO, "read %s: %v", path, err)
	}
	return nil
}
