package tool

import (
	"bytes"
	"io"
	"strings"
)

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }

func stringReader(s string) io.Reader { return strings.NewReader(s) }
