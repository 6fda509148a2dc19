// Copyright 2020 The Cacophony Project. All rights reserved.
// Use of this source code is governed by the Apache License Version 2.0;
// see the LICENSE file for further details.

package main

import (
	"bufio"
	"io"
	"os"
)

const partialSuffix = ".partial"

// output is where a command writes video or file data. Commit marks the
// data complete; Close alone abandons it.
type output interface {
	io.Writer
	Commit() error
	Close() error
}

// create returns an output for filename, or stdout for "" and "-".
func (a *app) create(filename string) (output, error) {
	if filename == "" || filename == "-" {
		return stdout{a.out}, nil
	}
	return newBufferedFile(filename)
}

type stdout struct {
	io.Writer
}

func (stdout) Commit() error { return nil }
func (stdout) Close() error  { return nil }

// newBufferedFile writes to filename+".partial", which Commit renames to
// filename.
func newBufferedFile(filename string) (*bufferedFile, error) {
	f, err := os.Create(filename + partialSuffix)
	if err != nil {
		return nil, err
	}
	return &bufferedFile{
		name: filename,
		f:    f,
		w:    bufio.NewWriterSize(f, 1024*1024),
	}, nil
}

type bufferedFile struct {
	name string
	f    *os.File
	w    *bufio.Writer
}

func (bf *bufferedFile) Write(p []byte) (int, error) {
	return bf.w.Write(p)
}

// Close flushes and closes the partial file, leaving it in place.
func (bf *bufferedFile) Close() error {
	if err := bf.w.Flush(); err != nil {
		bf.f.Close()
		return err
	}
	return bf.f.Close()
}

func (bf *bufferedFile) Commit() error {
	if err := bf.Close(); err != nil {
		return err
	}
	return os.Rename(bf.f.Name(), bf.name)
}
