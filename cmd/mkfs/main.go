// Command mkfs builds the tar archive cmd/kernel loads as its initramfs: it
// walks a host skeleton directory and writes every file and directory
// found there into a tar stream, the archive format package initramfs
// already knows how to unpack at boot.
//
// Grounded on the teacher's mkfs/mkfs.go, which walks a skeleton directory
// the same way and copies each file into a freshly formatted on-disk
// filesystem image (biscuit/ufs.MkDisk + Ufs_t.MkFile/MkDir/Append); this
// kernel's boot-time root is a tar archive unpacked into tmpfs rather than
// a custom on-disk format (see fs/initramfs's package doc), so the walk
// step is identical but the output step is archive/tar instead of ufs
// block writes.
package main

import (
	"archive/tar"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
)

type options struct {
	Positional struct {
		SkelDir string `positional-arg-name:"skeldir" description:"host directory tree to archive"`
		Out     string `positional-arg-name:"out" description:"output initramfs archive path"`
	} `positional-args:"yes" required:"yes"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	out, err := os.Create(opts.Positional.Out)
	if err != nil {
		log.Fatalf("mkfs: %v", err)
	}
	defer out.Close()

	tw := tar.NewWriter(out)
	if err := addTree(tw, opts.Positional.SkelDir); err != nil {
		log.Fatalf("mkfs: %v", err)
	}
	if err := tw.Close(); err != nil {
		log.Fatalf("mkfs: %v", err)
	}
	log.Infof("mkfs: wrote %s from %s", opts.Positional.Out, opts.Positional.SkelDir)
}

// addTree walks skeldir and writes every regular file and directory into
// tw, with paths relative to skeldir the way tar archives name their
// members (no leading "/", no skeldir prefix).
func addTree(tw *tar.Writer, skeldir string) error {
	return filepath.WalkDir(skeldir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(path, skeldir)
		rel = strings.TrimPrefix(rel, string(filepath.Separator))
		if rel == "" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if d.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = tw.Write(data)
		return err
	})
}
