package main

import (
	"fmt"
	"io"
	"os"

	"github.com/h2non/filetype"
)

/**
checks that the file the renderer produced exists and really is a video before we report success
*/
func VerifyVideoFile(fileName string) error {
	f, openErr := os.Open(fileName)
	if openErr != nil {
		return fmt.Errorf("rendered file is missing: %w", openErr)
	}
	defer f.Close()

	head := make([]byte, 262)
	n, readErr := io.ReadFull(f, head)
	if readErr != nil && readErr != io.ErrUnexpectedEOF {
		return fmt.Errorf("could not read rendered file: %w", readErr)
	}
	if !filetype.IsVideo(head[:n]) {
		return fmt.Errorf("%s is not a video", fileName)
	}
	return nil
}
