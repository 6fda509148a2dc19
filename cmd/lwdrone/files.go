// Copyright 2020 The Cacophony Project. All rights reserved.
// Use of this source code is governed by the Apache License Version 2.0;
// see the LICENSE file for further details.

package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

type PicCmd struct {
	Take *PicTakeCmd `arg:"subcommand:take" help:"take a picture"`
	List *PicListCmd `arg:"subcommand:list" help:"list the pictures on the SD card"`
}

type PicTakeCmd struct {
	OutFile string `arg:"-o,--out-file" help:"file to save the JPEG to, - for stdout (default: named after the time)"`
}

type PicListCmd struct {
	Count int `arg:"-n,--count" help:"number of pictures to list, up to 512 (default: the camera's choice)"`
}

type FileCmd struct {
	Get    *FileGetCmd    `arg:"subcommand:get" help:"download a file"`
	Delete *FileDeleteCmd `arg:"subcommand:delete" help:"delete a file"`
}

type FileGetCmd struct {
	Path     string `arg:"positional,required" help:"path on the camera"`
	SaveRoot string `arg:"--saveroot" default:"." help:"directory the camera's file tree is mirrored into"`
}

type FileDeleteCmd struct {
	Path string `arg:"positional,required" help:"path on the camera"`
}

func (a *app) pic(cmd *PicCmd) error {
	switch {
	case cmd.Take != nil:
		return a.picTake(cmd.Take)
	case cmd.List != nil:
		return a.picList(cmd.List)
	}
	return errUsage
}

func (a *app) picTake(cmd *PicTakeCmd) error {
	jpeg, err := a.dev.TakePicture()
	if err != nil {
		return err
	}
	name := cmd.OutFile
	if name == "" {
		name = a.now().Format("20060102-150405") + ".jpg"
	}
	w, err := a.create(name)
	if err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		w.Close()
		return err
	}
	return w.Commit()
}

func (a *app) picList(cmd *PicListCmd) error {
	entries, err := a.dev.ListPictures(cmd.Count)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(a.out, "%8d  %s\n", e.Size, e.Path)
	}
	return nil
}

func (a *app) file(cmd *FileCmd) error {
	switch {
	case cmd.Get != nil:
		return a.fileGet(cmd.Get)
	case cmd.Delete != nil:
		return a.dev.DeleteFile(cmd.Delete.Path)
	}
	return errUsage
}

// savePath mirrors a camera path under root. Paths stepping out of root
// are refused.
func savePath(root, path string) (string, error) {
	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return "", fmt.Errorf("refusing to save %q outside %s", path, root)
		}
	}
	return filepath.Join(root, strings.TrimLeft(path, "/")), nil
}

func (a *app) fileGet(cmd *FileGetCmd) error {
	dest, err := savePath(cmd.SaveRoot, cmd.Path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	w, err := newBufferedFile(dest)
	if err != nil {
		return err
	}
	n, err := a.dev.Download(cmd.Path, w)
	if err != nil {
		w.Close()
		log.Printf("incomplete file left at %s", dest+partialSuffix)
		return err
	}
	if err := w.Commit(); err != nil {
		return err
	}
	log.Printf("saved %d bytes to %s", n, dest)
	return nil
}
