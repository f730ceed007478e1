// Copyright 2025 The QMC Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package field

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pointlander/lattice/internal/lattice"
)

// ErrMalformedLine is returned by Decode for a line that is not "x y z t re im"
var ErrMalformedLine = errors.New("malformed field line")

// Encode writes one "x y z t re im" line per site
func (f *Field) Encode(w io.Writer) error {
	out := bufio.NewWriter(w)
	buffer := make([]byte, 0, 96)
	var err error
	f.geometry.Sites(func(s lattice.Site) {
		if err != nil {
			return
		}
		v := f.values[f.geometry.IndexOf(s)]
		buffer = buffer[:0]
		buffer = strconv.AppendInt(buffer, int64(s.X), 10)
		buffer = append(buffer, ' ')
		buffer = strconv.AppendInt(buffer, int64(s.Y), 10)
		buffer = append(buffer, ' ')
		buffer = strconv.AppendInt(buffer, int64(s.Z), 10)
		buffer = append(buffer, ' ')
		buffer = strconv.AppendInt(buffer, int64(s.T), 10)
		buffer = append(buffer, ' ')
		buffer = strconv.AppendFloat(buffer, real(v), 'f', -1, 64)
		buffer = append(buffer, ' ')
		buffer = strconv.AppendFloat(buffer, imag(v), 'f', -1, 64)
		buffer = append(buffer, '\n')
		_, err = out.Write(buffer)
	})
	if err != nil {
		return fmt.Errorf("write field: %w", err)
	}
	if err := out.Flush(); err != nil {
		return fmt.Errorf("flush field: %w", err)
	}
	return nil
}

type entry struct {
	index int
	value complex128
}

// Decode reads "x y z t re im" lines into f. Lines may come in any order and
// coordinates wrap; sites not mentioned keep their value. The whole input is
// parsed before f is touched, so a malformed line leaves f unchanged.
func (f *Field) Decode(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	entries := make([]entry, 0, len(f.values))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		e, err := f.parse(text)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read field: %w", err)
	}
	for _, e := range entries {
		f.values[e.index] = e.value
	}
	return nil
}

func (f *Field) parse(text string) (entry, error) {
	parts := strings.Fields(text)
	if len(parts) != 6 {
		return entry{}, fmt.Errorf("%w: %d fields in %q", ErrMalformedLine, len(parts), text)
	}
	var coords [4]int
	for i := range coords {
		c, err := strconv.Atoi(parts[i])
		if err != nil {
			return entry{}, fmt.Errorf("%w: coordinate %q", ErrMalformedLine, parts[i])
		}
		coords[i] = c
	}
	re, err := strconv.ParseFloat(parts[4], 64)
	if err != nil {
		return entry{}, fmt.Errorf("%w: real part %q", ErrMalformedLine, parts[4])
	}
	im, err := strconv.ParseFloat(parts[5], 64)
	if err != nil {
		return entry{}, fmt.Errorf("%w: imaginary part %q", ErrMalformedLine, parts[5])
	}
	x, y, z, t := coords[0], coords[1], coords[2], coords[3]
	return entry{
		index: f.geometry.Index(t, x, y, z),
		value: complex(re, im),
	}, nil
}
