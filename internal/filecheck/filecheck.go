// Package filecheck validates uploaded attachments by extension, size and magic number.
package filecheck

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// HeaderSize is the number of leading bytes inspected by Detect.
const HeaderSize = 16

// DefaultMaxSize applies when Validate is called with maxSize <= 0.
const DefaultMaxSize int64 = 10 << 20

var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file exceeds the size limit")
	ErrUnsupportedType = errors.New("file type is not allowed")
	ErrContentMismatch = errors.New("file content does not match its extension")
)

// Kind is a detected file family.
type Kind string

const (
	KindPDF       Kind = "pdf"
	KindPNG       Kind = "png"
	KindJPEG      Kind = "jpeg"
	KindOfficeZip Kind = "office-zip"
	KindOfficeOLE Kind = "office-ole"
)

type signature struct {
	kind        Kind
	magic       []byte
	contentType string
}

var signatures = []signature{
	{KindPDF, []byte("%PDF-"), "application/pdf"},
	{KindPNG, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
	{KindJPEG, []byte{0xFF, 0xD8, 0xFF}, "image/jpeg"},
	{KindOfficeZip, []byte{0x50, 0x4B, 0x03, 0x04}, "application/zip"},
	{KindOfficeOLE, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, "application/x-ole-storage"},
}

var extensions = map[string]struct {
	kind        Kind
	contentType string
}{
	".pdf":  {KindPDF, "application/pdf"},
	".png":  {KindPNG, "image/png"},
	".jpg":  {KindJPEG, "image/jpeg"},
	".jpeg": {KindJPEG, "image/jpeg"},
	".docx": {KindOfficeZip, "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	".xlsx": {KindOfficeZip, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	".doc":  {KindOfficeOLE, "application/msword"},
	".xls":  {KindOfficeOLE, "application/vnd.ms-excel"},
}

// Detect matches the header against the magic-number table.
func Detect(header []byte) (Kind, bool) {
	for _, s := range signatures {
		if bytes.HasPrefix(header, s.magic) {
			return s.kind, true
		}
	}
	return "", false
}

// Result describes an accepted file.
type Result struct {
	Kind        Kind
	Extension   string
	ContentType string
}

// Validate accepts a file only when its extension is allowed, its size is within
// (0, maxSize] and the detected content kind agrees with the extension.
func Validate(filename string, header []byte, size, maxSize int64) (Result, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if size == 0 || len(header) == 0 {
		return Result{}, ErrEmptyFile
	}
	if size > maxSize {
		return Result{}, fmt.Errorf("%w: %d bytes > %d", ErrFileTooLarge, size, maxSize)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	want, ok := extensions[ext]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}

	got, ok := Detect(header)
	if !ok || got != want.kind {
		return Result{}, fmt.Errorf("%w: %s", ErrContentMismatch, filepath.Base(filename))
	}
	return Result{Kind: got, Extension: ext, ContentType: want.contentType}, nil
}

// Sniff reads up to HeaderSize bytes and returns them with a reader that replays
// the full stream from the beginning.
func Sniff(r io.Reader) ([]byte, io.Reader, error) {
	buf := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, nil, err
	}
	header := buf[:n]
	return header, io.MultiReader(bytes.NewReader(header), r), nil
}

// Allowed lists the accepted extensions, for error messages and API docs.
func Allowed() []string {
	return []string{".pdf", ".png", ".jpg", ".jpeg", ".doc", ".docx", ".xls", ".xlsx"}
}
