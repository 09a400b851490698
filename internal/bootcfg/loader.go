/*************************************************************************
 * Copyright 2024 ContinuumOS Authors. All rights reserved.
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package bootcfg loads the kernel's boot descriptor: which disk image
// backs the FAT32 mount, the VFS mount table, framebuffer preferences,
// and the PIT frequency. It is parsed with the same gcfg (INI-style)
// library the teacher uses for ingester configuration files.
package bootcfg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gravwell/gcfg"
)

const maxConfigSize int64 = 1 << 20 // a boot descriptor is never more than 1MiB
const confExt = `.conf`

var (
	ErrConfigFileTooLarge = errors.New("boot config file is too large")
	ErrFailedFileRead     = errors.New("failed to read entire boot config file")
	ErrIsNotDirectory     = errors.New("path is not a directory")
)

// LoadFile opens a boot config file and parses it into v.
func LoadFile(v interface{}, p string) (err error) {
	var fin *os.File
	var fi os.FileInfo
	if fin, err = os.Open(p); err != nil {
		return
	}
	defer fin.Close()
	if fi, err = fin.Stat(); err != nil {
		return
	} else if fi.Size() > maxConfigSize {
		return ErrConfigFileTooLarge
	}
	bb := bytes.NewBuffer(nil)
	n, err := io.Copy(bb, fin)
	if err != nil {
		return
	} else if n != fi.Size() {
		return ErrFailedFileRead
	}
	return LoadBytes(v, bb.Bytes())
}

// LoadOverlays scans pth for *.conf fragments (extra mount declarations
// dropped in by an installer) and merges them into v in directory order.
func LoadOverlays(v interface{}, pth string) (err error) {
	if pth == `` || v == nil {
		return nil
	}
	fi, err := os.Stat(pth)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	} else if !fi.IsDir() {
		return ErrIsNotDirectory
	}
	dents, err := os.ReadDir(pth)
	if err != nil {
		return err
	}
	for _, dent := range dents {
		if !dent.Type().IsRegular() || filepath.Ext(dent.Name()) != confExt {
			continue
		}
		p := filepath.Join(pth, dent.Name())
		if err = LoadFile(v, p); err != nil {
			return fmt.Errorf("failed to load %q: %w", p, err)
		}
	}
	return nil
}

// LoadBytes parses the contents of b (an INI-style document) into v.
func LoadBytes(v interface{}, b []byte) error {
	if int64(len(b)) > maxConfigSize {
		return ErrConfigFileTooLarge
	}
	return gcfg.ReadStringInto(v, string(b))
}
