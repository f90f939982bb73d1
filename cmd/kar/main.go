// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/korustream/core"
	"github.com/devblok/korustream/utility/kar"
)

func currentUser() string {
	u, err := user.Current()
	if err != nil || u.Name == "" {
		return "unknown"
	}
	return u.Name
}

var (
	author   = flag.String("author", currentUser(), "Set the author of the package when compressing")
	version  = flag.Int64("version", 1, "Archive version number to create it with")
	extract  = flag.String("e", "", "Extract the archive given")
	list     = flag.String("l", "", "List the contents of the archive given")
	compress = flag.String("c", "", "Compress the given file/folder")
	dstFile  = flag.String("f", "out.kar", "Destination file")
	outDir   = flag.String("o", ".", "Directory to extract into")
	silent   = flag.Bool("s", false, "Silent")
)

var errOneOperation = errors.New("only one operation at a time")

func main() {
	flag.Parse()

	logCfg := core.DefaultConfiguration().Log
	if *silent {
		logCfg.Level = "warning"
	}
	logger := core.NewLogger(logCfg)

	var ops int
	for _, op := range []string{*extract, *list, *compress} {
		if op != "" {
			ops++
		}
	}

	var err error
	switch {
	case ops > 1:
		err = errOneOperation
	case *compress != "":
		err = compressFiles(*compress, *dstFile, logger)
	case *extract != "":
		err = extractFiles(*extract, *outDir, logger)
	case *list != "":
		err = listFiles(*list, os.Stdout)
	default:
		flag.PrintDefaults()
		return
	}
	if err != nil {
		logger.WithError(err).Fatal("kar failed")
	}
}

func compressFiles(src, dst string, logger log.FieldLogger) error {
	if _, err := os.Stat(dst); err == nil {
		return errors.New("destination file exists, will not overwrite")
	}

	var filesToCompress []string
	err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		filesToCompress = append(filesToCompress, path)
		return nil
	})
	if err != nil {
		return err
	}

	karBuilder, err := kar.NewBuilder(kar.Header{
		Author:      *author,
		DateCreated: time.Now().Unix(),
		Version:     *version,
	})
	if err != nil {
		return err
	}
	defer karBuilder.Close()

	for _, ftc := range filesToCompress {
		name, err := filepath.Rel(src, ftc)
		if err != nil {
			return err
		}
		if name == "." {
			name = filepath.Base(ftc)
		}
		if err := addFile(karBuilder, filepath.ToSlash(name), ftc); err != nil {
			return err
		}
		logger.WithField("name", name).Debug("added")
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	n, err := karBuilder.WriteTo(out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return err
	}

	logger.WithFields(log.Fields{
		"archive": dst,
		"files":   len(filesToCompress),
		"bytes":   n,
	}).Info("archive written")
	return nil
}

func addFile(b *kar.Builder, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return b.Add(name, f)
}

func extractFiles(archive, dst string, logger log.FieldLogger) error {
	ar, err := kar.OpenFile(archive)
	if err != nil {
		return err
	}
	defer ar.Close()

	for _, name := range ar.Names() {
		target := filepath.Join(dst, filepath.FromSlash(name))
		if !isInside(dst, target) {
			return fmt.Errorf("%s: escapes the destination directory", name)
		}
		if err := extractFile(ar.Archive, name, target); err != nil {
			return err
		}
		logger.WithField("name", name).Debug("extracted")
	}
	logger.WithFields(log.Fields{
		"archive": archive,
		"files":   len(ar.Names()),
	}).Info("archive extracted")
	return nil
}

func isInside(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func extractFile(ar *kar.Archive, name, target string) error {
	r, err := ar.Open(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("%s: %w", name, err)
	}
	return out.Close()
}

func listFiles(archive string, w io.Writer) error {
	ar, err := kar.OpenFile(archive)
	if err != nil {
		return err
	}
	defer ar.Close()

	h := ar.Header()
	fmt.Fprintf(w, "author: %s, version: %d, created: %s\n",
		h.Author, h.Version, time.Unix(h.DateCreated, 0).UTC().Format(time.RFC3339))
	for _, name := range ar.Names() {
		entry, err := ar.Stat(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%10d %s\n", entry.Size, name)
	}
	return nil
}
